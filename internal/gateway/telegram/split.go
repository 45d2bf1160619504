package telegram

import (
	"strings"
	"unicode/utf8"
)

const textLimit = 4000

// splitText cuts s into parts of at most limit runes. A cut prefers the last
// line break past the first third of the window and, in HTML mode, never
// lands inside a tag. Blank parts are dropped.
func splitText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = textLimit
	}
	html := strings.EqualFold(parseMode, "HTML")

	var parts []string
	for utf8.RuneCountInString(s) > limit {
		cut := cutPoint(s, limit, html)
		if p := strings.TrimRight(s[:cut], "\n"); p != "" {
			parts = append(parts, p)
		}
		s = strings.TrimLeft(s[cut:], "\n")
	}
	if s != "" || len(parts) == 0 {
		parts = append(parts, s)
	}
	return parts
}

// cutPoint returns the byte offset to cut s at; always > 0.
func cutPoint(s string, limit int, html bool) int {
	cut := runeOffset(s, limit)
	head := s[:cut]
	if nl := strings.LastIndexByte(head, '\n'); nl >= 0 && utf8.RuneCountInString(head[:nl]) >= limit/3 {
		cut = nl + 1
	}
	if html {
		head = s[:cut]
		if lt := strings.LastIndexByte(head, '<'); lt > 1 && lt > strings.LastIndexByte(head, '>') {
			cut = lt
		}
	}
	return cut
}

// runeOffset is the byte offset just past the first n runes of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
