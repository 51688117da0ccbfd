package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	minMarketFactor = 0.8
	maxMarketFactor = 1.5
)

// PlayerStats is the season line used to weight a player's market
type PlayerStats struct {
	PassingYards    float64 `json:"passing_yards"`
	Touchdowns      float64 `json:"touchdowns"`
	QBRating        float64 `json:"qb_rating"`
	TeamSuccess     float64 `json:"team_success"`
	MarketSentiment float64 `json:"market_sentiment"`
}

// PlayerStatsProvider looks up stats by player name. A nil result with a nil
// error means the player is unknown.
type PlayerStatsProvider interface {
	PlayerStats(ctx context.Context, player string) (*PlayerStats, error)
}

// MarketFactor scales forecasts by on-field performance, bounded to [0.8, 1.5].
// Unknown players are neutral.
func MarketFactor(s *PlayerStats) float64 {
	if s == nil {
		return 1.0
	}
	score := s.PassingYards/5000*0.25 +
		s.Touchdowns/35*0.25 +
		s.QBRating/110*0.2 +
		s.TeamSuccess*0.15 +
		s.MarketSentiment*0.15
	return clamp(score, minMarketFactor, maxMarketFactor)
}

// StatsTable is an in-memory PlayerStatsProvider keyed by lower-case name
type StatsTable map[string]PlayerStats

// LoadStatsTable reads a JSON object of player name to stats
func LoadStatsTable(path string) (StatsTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read player stats: %w", err)
	}
	var raw map[string]PlayerStats
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse player stats: %w", err)
	}
	table := make(StatsTable, len(raw))
	for name, s := range raw {
		table[normalizePlayer(name)] = s
	}
	return table, nil
}

// PlayerStats implements PlayerStatsProvider
func (t StatsTable) PlayerStats(_ context.Context, player string) (*PlayerStats, error) {
	s, ok := t[normalizePlayer(player)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func normalizePlayer(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// playerFromTitle guesses the player from the first two words of a listing title
func playerFromTitle(title string) string {
	words := strings.Fields(title)
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}
