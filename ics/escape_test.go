package ics_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/nurse-pay/ics"
)

// unescapeText reverses RFC 5545 TEXT escaping.
func unescapeText(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func TestEscapeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a;b", `a\;b`},
		{"a,b", `a\,b`},
		{`a\b`, `a\\b`},
		{"a\nb", `a\nb`},
		{"a\r\nb", `a\nb`},
		{"a\rb", "ab"},
		{`\n`, `\\n`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ics.EscapeText(tt.in), "input %q", tt.in)
	}
}

func TestEscapeText_RoundTrips(t *testing.T) {
	inputs := []string{
		"",
		"Clinique A",
		"CHU; Rennes, Sud",
		`C:\path\to`,
		"line1\nline2\nline3",
		`tricky \; already escaped \, and \n`,
		"émoji ✅ and, commas; semis\nnewline",
	}
	for _, in := range inputs {
		escaped := ics.EscapeText(in)
		assert.NotContains(t, escaped, "\n")
		assert.Equal(t, in, unescapeText(escaped))
	}
}

func TestFoldLine(t *testing.T) {
	short := strings.Repeat("a", 75)
	assert.Equal(t, short, ics.FoldLine(short))

	long := strings.Repeat("a", 200)
	folded := ics.FoldLine(long)
	parts := strings.Split(folded, "\r\n")
	assert.Len(t, parts[0], 75)
	for _, p := range parts[1:] {
		assert.True(t, strings.HasPrefix(p, " "))
		assert.LessOrEqual(t, len(p), 75)
	}
	assert.Equal(t, long, strings.ReplaceAll(folded, "\r\n ", ""))
}

func TestFoldLine_KeepsMultiByteRunesWhole(t *testing.T) {
	// GIVEN: 74 ASCII octets then a 3-octet rune straddling the limit
	line := strings.Repeat("a", 74) + "€€"

	folded := ics.FoldLine(line)

	parts := strings.Split(folded, "\r\n")
	assert.Equal(t, strings.Repeat("a", 74), parts[0])
	assert.Equal(t, " €€", parts[1])
}
