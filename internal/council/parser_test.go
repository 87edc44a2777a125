// internal/council/parser_test.go
package council

import (
	"reflect"
	"testing"
)

func TestParseRanking(t *testing.T) {
	m := newAnonymizationMap(sampleResults())

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "numbered list",
			text: "1. Response B\n2. Response A\n3. Response C",
			want: []string{"Response B", "Response A", "Response C"},
		},
		{
			name: "prose with commentary",
			text: "After careful review, Response C stands out for depth. Response A is solid but shallow, and Response B contains an error.",
			want: []string{"Response C", "Response A", "Response B"},
		},
		{
			name: "lowercase labels",
			text: "best to worst: response b, response c, response a",
			want: []string{"Response B", "Response C", "Response A"},
		},
		{
			name: "duplicates keep first mention",
			text: "Response A wins. As noted, Response A beats Response B.",
			want: []string{"Response A", "Response B"},
		},
		{
			name: "unknown labels dropped",
			text: "1. Response D\n2. Response B\n3. Response Q",
			want: []string{"Response B"},
		},
		{
			name: "partial ranking",
			text: "Only Response C was worth reading.",
			want: []string{"Response C"},
		},
		{
			name: "nothing usable",
			text: "I refuse to rank my peers.",
			want: nil,
		},
		{
			name: "empty reply",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRanking(tt.text, m)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRanking(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseRankingDoubleLetterLabels(t *testing.T) {
	results := make([]Stage1Result, 28)
	for i := range results {
		results[i] = Stage1Result{MemberID: labelForIndex(i), Response: "answer"}
	}
	m := newAnonymizationMap(results)

	got := ParseRanking("1. Response AB\n2. Response A\n3. Response AA", m)
	want := []string{"Response AB", "Response A", "Response AA"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
