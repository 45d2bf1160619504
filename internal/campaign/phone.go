package campaign

import "strings"

// NormalizePhone strips every non-digit and makes sure the number starts with
// countryCode: a leading trunk "0" is replaced, otherwise the code is prefixed.
// Empty input (or input without digits) yields "".
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	if n == "" || countryCode == "" || strings.HasPrefix(n, countryCode) {
		return n
	}
	if strings.HasPrefix(n, "0") {
		return countryCode + n[1:]
	}
	return countryCode + n
}
