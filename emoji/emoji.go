// Package emoji converts emoji to and from the bracket escape form the
// content API stores in comment bodies: each emoji code point becomes
// "[e-<lowercase hex>]".
package emoji

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const prefix = "[e-"

// Table lists the code points sent as escapes. Joiners, variation selectors,
// skin tone modifiers and tag characters are included so multi code point
// sequences survive intact.
var Table = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00a9, Hi: 0x00a9, Stride: 1},
		{Lo: 0x00ae, Hi: 0x00ae, Stride: 1},
		{Lo: 0x200d, Hi: 0x200d, Stride: 1},
		{Lo: 0x203c, Hi: 0x203c, Stride: 1},
		{Lo: 0x2049, Hi: 0x2049, Stride: 1},
		{Lo: 0x20e3, Hi: 0x20e3, Stride: 1},
		{Lo: 0x2122, Hi: 0x2122, Stride: 1},
		{Lo: 0x2139, Hi: 0x2139, Stride: 1},
		{Lo: 0x2194, Hi: 0x21aa, Stride: 1},
		{Lo: 0x2300, Hi: 0x23ff, Stride: 1},
		{Lo: 0x24c2, Hi: 0x24c2, Stride: 1},
		{Lo: 0x25aa, Hi: 0x25fe, Stride: 1},
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1},
		{Lo: 0x2934, Hi: 0x2935, Stride: 1},
		{Lo: 0x2b00, Hi: 0x2bff, Stride: 1},
		{Lo: 0x3030, Hi: 0x3030, Stride: 1},
		{Lo: 0x303d, Hi: 0x303d, Stride: 1},
		{Lo: 0x3297, Hi: 0x3297, Stride: 1},
		{Lo: 0x3299, Hi: 0x3299, Stride: 1},
		{Lo: 0xfe0f, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f000, Hi: 0x1faff, Stride: 1},
		{Lo: 0xe0020, Hi: 0xe007f, Stride: 1},
	},
}

var escapeRegex = regexp.MustCompile(`\[e-([0-9a-fA-F]+)\]`)

// IsEmoji reports whether r is sent as an escape.
func IsEmoji(r rune) bool {
	return unicode.Is(Table, r)
}

// Encode replaces every emoji code point in s with its escape. A literal
// "[e-" already present in s has its bracket escaped too, so Decode always
// returns the original text.
func Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r == '[' && strings.HasPrefix(s[i:], prefix):
			writeEscape(&b, r)
		case IsEmoji(r):
			writeEscape(&b, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeEscape(b *strings.Builder, r rune) {
	b.WriteString(prefix)
	b.WriteString(strconv.FormatInt(int64(r), 16))
	b.WriteByte(']')
}

// Decode turns escapes back into their code points. Escapes that do not name
// a valid code point are left untouched.
func Decode(s string) string {
	if !strings.Contains(s, prefix) {
		return s
	}
	return escapeRegex.ReplaceAllStringFunc(s, func(m string) string {
		hex := m[len(prefix) : len(m)-1]
		n, err := strconv.ParseInt(hex, 16, 32)
		if err != nil || n > unicode.MaxRune || (n >= 0xd800 && n <= 0xdfff) {
			return m
		}
		return string(rune(n))
	})
}
