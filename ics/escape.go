package ics

import (
	"strings"
	"unicode/utf8"
)

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", "",
)

// EscapeText escapes a TEXT property value (RFC 5545 §3.3.11). Line breaks
// become the two characters `\n` and stray carriage returns are dropped.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// maxLineOctets is the longest content line allowed before folding.
const maxLineOctets = 75

// FoldLine splits a content line longer than 75 octets into continuation
// lines (CRLF followed by one space). Splits never cut a UTF-8 sequence.
func FoldLine(line string) string {
	if len(line) <= maxLineOctets {
		return line
	}

	var b strings.Builder
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		// Continuation lines lose one octet to the leading space.
		limit = maxLineOctets - 1
	}
	b.WriteString(line)
	return b.String()
}
