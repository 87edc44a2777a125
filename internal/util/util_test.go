package util

import (
	"strings"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("hello", 10); got != "hello" {
		t.Fatalf("no-op truncate changed string: %s", got)
	}
	if got := TruncateRunes("hello world", 5); got != "hello…" {
		t.Fatalf("truncate: %s", got)
	}
	if got := TruncateRunes("héllo wörld", 5); got != "héllo…" {
		t.Fatalf("multibyte truncate: %s", got)
	}
}

func TestPreview(t *testing.T) {
	got := Preview("line one\n\n  line   two\t\tend", 100)
	if got != "line one line two end" {
		t.Fatalf("preview collapse: %q", got)
	}
	if got := Preview(strings.Repeat("a ", 100), 10); len([]rune(got)) != 11 {
		t.Fatalf("preview truncate length: %q", got)
	}
}

func TestWrapToWidth(t *testing.T) {
	if got := WrapToWidth("abc", 0); got != "abc" {
		t.Fatalf("zero width should be a no-op: %s", got)
	}
	got := WrapToWidth("one two three", 7)
	if got != "one two\nthree" {
		t.Fatalf("wrap: %q", got)
	}
	got = WrapToWidth("abcdefghij", 4)
	for _, line := range strings.Split(got, "\n") {
		if len([]rune(line)) > 4 {
			t.Fatalf("long word not broken: %q", got)
		}
	}
}
