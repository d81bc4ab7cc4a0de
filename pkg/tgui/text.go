package tgui

import "strings"

// Preview flattens line breaks and cuts s to at most n runes, appending "…" when cut.
func Preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "…"
		}
		count++
	}
	return s
}
