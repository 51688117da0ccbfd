package models

import "strings"

// Condition is the grading state of a physical card
type Condition string

const (
	ConditionRaw   Condition = "Raw"
	ConditionPSA9  Condition = "PSA 9"
	ConditionPSA10 Condition = "PSA 10"
	ConditionSGC10 Condition = "SGC 10"
	ConditionSGC95 Condition = "SGC 9.5"
	ConditionSGC9  Condition = "SGC 9"
	ConditionBGS10 Condition = "BGS 10"
	ConditionBGS95 Condition = "BGS 9.5"
	ConditionBGS9  Condition = "BGS 9"
)

// AllConditions returns every supported condition
func AllConditions() []Condition {
	return []Condition{
		ConditionRaw,
		ConditionPSA9,
		ConditionPSA10,
		ConditionSGC10,
		ConditionSGC95,
		ConditionSGC9,
		ConditionBGS10,
		ConditionBGS95,
		ConditionBGS9,
	}
}

// NormalizeCondition maps free-form input to a supported condition.
// Unknown values become Raw.
func NormalizeCondition(s string) Condition {
	key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	for _, c := range AllConditions() {
		if strings.ToLower(string(c)) == key {
			return c
		}
	}
	// "psa10" style without the space
	for _, c := range AllConditions() {
		if strings.ReplaceAll(strings.ToLower(string(c)), " ", "") == strings.ReplaceAll(key, " ", "") {
			return c
		}
	}
	return ConditionRaw
}

// IsGraded reports whether the card was slabbed by a grading company
func (c Condition) IsGraded() bool {
	return c != ConditionRaw && c != ""
}
