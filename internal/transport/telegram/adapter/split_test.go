package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTelegramTextShort(t *testing.T) {
	got := splitTelegramText("hello", 10, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	line := strings.Repeat("a", 30)
	text := strings.Join([]string{line, line, line, line}, "\n")
	got := splitTelegramText(text, 70, "")
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	for i, c := range got {
		if utf8.RuneCountInString(c) > 70 {
			t.Fatalf("chunk %d too long: %d", i, utf8.RuneCountInString(c))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d has stray newline: %q", i, c)
		}
	}
	if strings.Join(got, "\n") != text {
		t.Fatalf("chunks do not reassemble into the input")
	}
}

func TestSplitTelegramTextKeepsHTMLTags(t *testing.T) {
	text := strings.Repeat("x", 16) + "<b>bold</b>"
	got := splitTelegramText(text, 18, "HTML")
	for i, c := range got {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("chunk %d cuts a tag: %q", i, c)
		}
	}
}
