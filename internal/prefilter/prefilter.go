// Package prefilter implements the cheap heuristic gate that decides whether
// a record is worth sending to the LLM classifier. False negatives are
// acceptable: the pipeline commits them with a fixed low confidence so they
// stay identifiable downstream.
package prefilter

import (
	"regexp"
	"strings"
)

// englishHints are matched case-insensitively as substrings.
var englishHints = []string{
	"elderly", "senior", "older adult", "grandma", "grandpa",
	"grandmother", "grandfather", "aging parent",
	"nursing home", "retirement home", "assisted living", "dementia",
	"alzheimer", "parkinson", "65-year-old", "70-year-old",
}

// chineseHints are matched exactly as substrings.
var chineseHints = []string{
	"老人", "老年", "长者", "独居老人", "空巢老人", "养老院", "老人院",
	"护理院", "赡养", "看护", "照护", "失智", "阿尔茨海默", "帕金森",
	"高龄", "爷爷", "奶奶", "外公", "外婆", "祖父", "祖母", "岁",
}

// Age patterns: "72-year-old", "68 yo", "83岁" and similar, 60-99 only.
var (
	englishAge = regexp.MustCompile(`\b([6-9][0-9])[-\s]*(?:years?|yrs|yo|y/o)?[-\s]?old\b`)
	chineseAge = regexp.MustCompile(`([6-9][0-9])\s*岁`)
)

// MaybeRelevant reports whether text could plausibly describe an elderly
// self-disclosure or care scenario. A true result means the record goes to
// the LLM for a real verdict; false short-circuits the expensive path.
func MaybeRelevant(text string) bool {
	lower := strings.ToLower(text)
	for _, hint := range englishHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	for _, hint := range chineseHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	if englishAge.MatchString(lower) {
		return true
	}
	return chineseAge.MatchString(text)
}
