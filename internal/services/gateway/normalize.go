package gateway

import "strings"

// MemoPrefix starts every bank-transfer memo the service issues.
const MemoPrefix = "OCR"

// NormalizeMemo uppercases s and drops everything outside [A-Za-z0-9],
// matching what banks do to transfer descriptions.
func NormalizeMemo(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		}
	}
	return b.String()
}
