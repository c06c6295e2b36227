// Package jsonenc contains append-style JSON encoding helpers.
package jsonenc

import "slices"

// AppendString appends s to b as a quoted JSON string.
func AppendString[T ~[]byte | ~string](b []byte, s T) []byte {
	b = slices.Grow(b, len(s)+2)
	b = append(b, '"')
	x := 0 // note: this won't break utf-8 since we only check for < 0x20
	for i := 0; i < len(s); {
		if c := s[i]; c < 0x20 || c == '\\' || c == '"' {
			b = append(b, s[x:i]...)
			switch c {
			case '\\', '"':
				b = append(b, '\\', c)
			case '\n':
				b = append(b, '\\', 'n')
			case '\r':
				b = append(b, '\\', 'r')
			case '\t':
				b = append(b, '\\', 't')
			default:
				b = append(b, '\\', 'u', '0', '0', "0123456789abcdef"[c>>4], "0123456789abcdef"[c&0xF])
			}
			i++
			x = i
			continue
		}
		i++
	}
	b = append(b, s[x:]...)
	b = append(b, '"')
	return b
}
