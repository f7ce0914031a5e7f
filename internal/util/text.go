package util

import "strings"

// TruncateTranscript cuts a transcript to at most maxChars runes, preserving
// the prefix. The same budget must be applied on every run so repeated
// ingestions of a video produce identical model input.
func TruncateTranscript(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

// SanitizeText removes bytes and control characters that Postgres text
// columns reject (NUL in particular).
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}
