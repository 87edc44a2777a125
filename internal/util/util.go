// internal/util/util.go
package util

import (
	"strings"
	"unicode/utf8"
)

// TruncateRunes truncates a string to a maximum number of runes,
// appending an ellipsis if truncated.
func TruncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}

// Preview collapses text onto a single line and truncates it. Used for log
// lines and tool-result summaries where full model output would be noise.
func Preview(text string, maxRunes int) string {
	flat := strings.Join(strings.Fields(text), " ")
	return TruncateRunes(flat, maxRunes)
}

// WrapToWidth wraps the given text to a specified width, breaking long words.
func WrapToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			out = append(out, "")
			continue
		}
		var cur strings.Builder
		runeCount := 0
		for wi, w := range strings.Fields(line) {
			wLen := utf8.RuneCountInString(w)
			space := 0
			if wi > 0 {
				space = 1
			}
			if runeCount+space+wLen <= width {
				if wi > 0 {
					cur.WriteByte(' ')
					runeCount++
				}
				cur.WriteString(w)
				runeCount += wLen
				continue
			}
			if runeCount > 0 {
				out = append(out, cur.String())
				cur.Reset()
				runeCount = 0
			}
			for wLen > width {
				runes := []rune(w)
				out = append(out, string(runes[:width]))
				w = string(runes[width:])
				wLen -= width
			}
			cur.WriteString(w)
			runeCount = wLen
		}
		out = append(out, cur.String())
	}
	return strings.Join(out, "\n")
}
