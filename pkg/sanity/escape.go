package sanity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// escapeQuery percent-encodes s for use as a query string value. It leaves the same
// characters unescaped as JavaScript's encodeURIComponent, which is what GROQ clients send.
func escapeQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3 / 2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepUnescaped(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func keepUnescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// buildQueryURL composes "{base}?query={query}" followed by "&$name={json}" for each
// param in name order.
func buildQueryURL(base, query string, params map[string]any) (string, error) {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("?query=")
	b.WriteString(escapeQuery(query))

	if len(params) == 0 {
		return b.String(), nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !validParamName(name) {
			return "", fmt.Errorf("%w: %q", ErrInvalidParam, name)
		}
		raw, err := json.Marshal(params[name])
		if err != nil {
			return "", fmt.Errorf("%w: encode %q: %v", ErrInvalidParam, name, err)
		}
		b.WriteString("&$")
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(escapeQuery(string(raw)))
	}
	return b.String(), nil
}

func validParamName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
