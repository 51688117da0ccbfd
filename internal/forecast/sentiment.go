package forecast

import (
	"sync"

	"github.com/jonreiter/govader"
)

// the analyzer loads its lexicon on construction; share one per process
var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// TitlePolarity scores a listing title in [-1, 1] using VADER's compound score
func TitlePolarity(title string) float64 {
	if title == "" {
		return 0
	}
	return clamp(analyzer().PolarityScores(title).Compound, -1, 1)
}

// Sentiment averages title polarity and maps it into [0, 1] with 0.5 neutral
func Sentiment(titles []string) float64 {
	if len(titles) == 0 {
		return 0.5
	}
	var sum float64
	for _, t := range titles {
		sum += TitlePolarity(t)
	}
	return (sum/float64(len(titles)) + 1) / 2
}

// SentimentFactor turns a [0, 1] sentiment into a multiplier within ±10% of 1
func SentimentFactor(sentiment float64) float64 {
	return 1 + (clamp(sentiment, 0, 1)-0.5)*0.2
}
