package tags

import "strings"

// Matches reports whether a card's tags satisfy a filter.
//
// Filter tokens are AND-ed. An exclusion token whose value the card carries
// rejects the card outright. A category:value token requires the card to
// carry that category with exactly that value. Empty card tags or an empty
// filter never match.
func Matches(cardTags, filterTags interface{}) bool {
	card := Set(cardTags)
	filter := Normalize(filterTags)
	if len(card) == 0 || len(filter) == 0 {
		return false
	}

	var required []string
	for _, tok := range filter {
		if value, ok := strings.CutPrefix(tok, ExcludePrefix); ok {
			if _, present := card[value]; present {
				return false
			}
			continue
		}
		required = append(required, tok)
	}

	for _, tok := range required {
		category, value, hierarchical := strings.Cut(tok, ":")
		if !hierarchical {
			if _, present := card[tok]; !present {
				return false
			}
			continue
		}

		values := categoryValues(card, category)
		if len(values) == 0 {
			return false
		}
		if _, present := values[value]; !present {
			return false
		}
	}
	return true
}

// MatchesLiteral reports whether the card carries tag verbatim, without
// interpreting exclusion or category syntax
func MatchesLiteral(cardTags interface{}, tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return false
	}
	for _, raw := range rawTokens(cardTags) {
		if strings.ToLower(strings.TrimSpace(raw)) == tag {
			return true
		}
	}
	return false
}

// categoryValues collects the values a card carries for one category
func categoryValues(card map[string]struct{}, category string) map[string]struct{} {
	prefix := category + ":"
	values := make(map[string]struct{})
	for tok := range card {
		if v, ok := strings.CutPrefix(tok, prefix); ok {
			values[v] = struct{}{}
		}
	}
	return values
}

// Categories groups hierarchical tags by category, for tag pickers
func Categories(tagList []string) map[string][]string {
	out := make(map[string][]string)
	for _, tok := range tagList {
		if strings.HasPrefix(tok, ExcludePrefix) {
			continue
		}
		if category, value, ok := strings.Cut(tok, ":"); ok {
			out[category] = append(out[category], value)
		}
	}
	return out
}
