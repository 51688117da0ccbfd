package services

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer strips markup from user supplied free text (names, notes, descriptions)
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer creates a sanitizer that removes every HTML tag
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean removes markup and surrounding whitespace
func (s *TextSanitizer) Clean(input string) string {
	if s == nil || s.policy == nil {
		return strings.TrimSpace(input)
	}
	return strings.TrimSpace(s.policy.Sanitize(input))
}
