package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

func hexWidth(c byte) int {
	switch c {
	case 'x':
		return 2
	case 'u':
		return 4
	case 'U':
		return 8
	}
	return 0
}

// hexRune decodes the n hex digits at the start of s. Values past the Unicode
// range become U+FFFD.
func hexRune(s string, c byte) (rune, int, error) {
	n := hexWidth(c)
	if len(s) < n {
		return 0, 0, fmt.Errorf("invalid escape %q", `\`+string(c)+s)
	}
	v, err := strconv.ParseUint(s[:n], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid escape %q", `\`+string(c)+s[:n])
	}
	if v > unicode.MaxRune {
		return unicode.ReplacementChar, n, nil
	}
	return rune(v), n, nil
}

// unescape resolves backslash escapes in the body of a quoted string.
func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i+1:])
		i += 1 + size
		switch r {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\n':
		case '\r':
			if i < len(s) && s[i] == '\n' {
				i++
			} else {
				b.WriteByte('\r')
			}
		case 'x', 'u', 'U':
			v, n, err := hexRune(s[i:], byte(r))
			if err != nil {
				return "", err
			}
			i += n
			b.WriteRune(v)
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// regexpSource rewrites the body of a /.../ literal into RE2 syntax. Only \/
// and the \u and \U escapes are resolved; everything else is left to RE2.
func regexpSource(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		switch c := s[i+1]; c {
		case '/':
			b.WriteByte('/')
			i += 2
		case 'u', 'U':
			v, n, err := hexRune(s[i+2:], c)
			if err != nil {
				return "", err
			}
			b.WriteString(regexp.QuoteMeta(string(v)))
			i += 2 + n
		default:
			b.WriteString(s[i : i+2])
			i += 2
		}
	}
	return b.String(), nil
}
