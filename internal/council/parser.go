// internal/council/parser.go
package council

import (
	"regexp"
	"strings"
)

// labelPattern matches explicit label mentions in free-form ranking text:
// "Response A", "response b", "1. Response C: solid reasoning", etc.
var labelPattern = regexp.MustCompile(`(?i)\bresponse\s+([A-Za-z]{1,2})\b`)

// ParseRanking extracts an ordered label sequence from free-form ranking
// text. It tolerates numbered lists, "best to worst" phrasing and inline
// prose: labels are taken in order of first mention, duplicates and unknown
// labels discarded. An empty result means the rater produced nothing usable.
func ParseRanking(text string, m AnonymizationMap) []string {
	valid := make(map[string]bool, len(m.labels))
	for _, label := range m.labels {
		valid[label] = true
	}

	var ordered []string
	seen := make(map[string]bool)
	for _, match := range labelPattern.FindAllStringSubmatch(text, -1) {
		label := "Response " + strings.ToUpper(match[1])
		if !valid[label] || seen[label] {
			continue
		}
		seen[label] = true
		ordered = append(ordered, label)
	}
	return ordered
}
