// internal/council/anonymize.go
package council

import (
	"math/rand"
	"strings"
)

// AnonymizationMap is the per-turn bijection between opaque labels
// ("Response A", "Response B", …) and member identities. It is created once
// per turn, shared by the ranking fan-out and the de-anonymization step, and
// never persisted beyond the turn.
type AnonymizationMap struct {
	labels        []string
	labelToResult map[string]Stage1Result
	memberToLabel map[string]string
}

// NewAnonymizationMap shuffles the Stage-1 results once and labels them
// sequentially, so label order carries no identity signal across turns.
func NewAnonymizationMap(results []Stage1Result) AnonymizationMap {
	shuffled := make([]Stage1Result, len(results))
	copy(shuffled, results)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return newAnonymizationMap(shuffled)
}

func newAnonymizationMap(ordered []Stage1Result) AnonymizationMap {
	m := AnonymizationMap{
		labelToResult: make(map[string]Stage1Result, len(ordered)),
		memberToLabel: make(map[string]string, len(ordered)),
	}
	for i, res := range ordered {
		label := labelForIndex(i)
		m.labels = append(m.labels, label)
		m.labelToResult[label] = res
		m.memberToLabel[res.MemberID] = label
	}
	return m
}

// labelForIndex yields "Response A" … "Response Z", then "Response AA" and on.
func labelForIndex(i int) string {
	var letters []byte
	for {
		letters = append([]byte{'A' + byte(i%26)}, letters...)
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return "Response " + string(letters)
}

// Labels returns every label in assignment order.
func (m AnonymizationMap) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// ResultFor returns the Stage-1 result a label was assigned to.
func (m AnonymizationMap) ResultFor(label string) (Stage1Result, bool) {
	res, ok := m.labelToResult[label]
	return res, ok
}

// LabelFor returns the label assigned to a member.
func (m AnonymizationMap) LabelFor(memberID string) (string, bool) {
	label, ok := m.memberToLabel[memberID]
	return label, ok
}

// LabelToMember exposes the forward mapping for event payloads and the
// persisted turn record.
func (m AnonymizationMap) LabelToMember() map[string]string {
	out := make(map[string]string, len(m.labels))
	for label, res := range m.labelToResult {
		out[label] = res.MemberID
	}
	return out
}

// Deanonymize replaces every label in text with the member's model
// identifier. Longer labels are replaced first so "Response AA" never
// partially matches as "Response A".
func (m AnonymizationMap) Deanonymize(text string) string {
	for i := len(m.labels) - 1; i >= 0; i-- {
		label := m.labels[i]
		res := m.labelToResult[label]
		text = strings.ReplaceAll(text, label, res.Model)
	}
	return text
}

// Anonymize replaces every model identifier in text with its label: the
// inverse of Deanonymize for any text produced by it.
func (m AnonymizationMap) Anonymize(text string) string {
	for i := len(m.labels) - 1; i >= 0; i-- {
		label := m.labels[i]
		res := m.labelToResult[label]
		text = strings.ReplaceAll(text, res.Model, label)
	}
	return text
}
