// Package urlcodec implements percent-decoding and
// application/x-www-form-urlencoded parsing, per spec.md §4.2: decoding
// is byte-oriented, `+` decodes to space only in the form/query context
// (never in a path), and the decoded bytes are then interpreted in a
// caller-supplied charset, defaulting to UTF-8.
package urlcodec

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"github.com/mxvdev/embedhttp/internal/headers"
)

// PercentDecode maps "%HH" escapes to their byte value. When
// plusAsSpace is true (query-string / form context) a literal '+'
// decodes to a space; when false (path context) '+' passes through
// unchanged.
func PercentDecode(s string, plusAsSpace bool) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '%':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("urlcodec: incomplete percent-escape at %d", i)
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("urlcodec: invalid percent-escape %q", s[i:i+3])
			}
			out = append(out, byte(hi<<4|lo))
			i += 2
		case '+':
			if plusAsSpace {
				out = append(out, ' ')
			} else {
				out = append(out, '+')
			}
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

func hexVal(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	default:
		return 0, false
	}
}

// DecodeCharset interprets raw decoded bytes as the named charset,
// defaulting to UTF-8 passthrough when charsetName is empty or
// unresolvable. Grounded on golang.org/x/net/html/charset's name lookup
// paired with golang.org/x/text/encoding's decoder, the same pairing
// Mgrdich-myHttpServer's go.mod carries (golang.org/x/net + golang.org/x/text).
func DecodeCharset(raw []byte, charsetName string) (string, error) {
	if charsetName == "" || strings.EqualFold(charsetName, "utf-8") || strings.EqualFold(charsetName, "utf8") {
		return string(raw), nil
	}

	enc, _ := charset.Lookup(charsetName)
	if enc == nil {
		return string(raw), nil
	}

	dec := enc.NewDecoder()
	out, err := decoderString(dec, raw)
	if err != nil {
		return string(raw), err
	}
	return out, nil
}

func decoderString(dec *encoding.Decoder, raw []byte) (string, error) {
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseForm splits raw on '&', then each pair on the first '=' (a
// missing '=' yields an empty value), percent-decoding both key and
// value with '+' treated as space, and returns an ordered multimap that
// preserves repeated keys and insertion order.
func ParseForm(raw string) (*headers.OrderedMultimap, error) {
	m := headers.NewOrderedMultimap()
	if raw == "" {
		return m, nil
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}

		var rawKey, rawValue string
		if idx := strings.IndexByte(pair, '='); idx == -1 {
			rawKey = pair
		} else {
			rawKey = pair[:idx]
			rawValue = pair[idx+1:]
		}

		keyBytes, err := PercentDecode(rawKey, true)
		if err != nil {
			return nil, err
		}
		valueBytes, err := PercentDecode(rawValue, true)
		if err != nil {
			return nil, err
		}

		m.Add(string(keyBytes), string(valueBytes))
	}

	return m, nil
}

// EncodeForm renders m back into application/x-www-form-urlencoded
// form, in insertion order. It is the inverse of ParseForm and is used
// by tests.
func EncodeForm(m *headers.OrderedMultimap) string {
	var b strings.Builder
	for i, p := range m.Pairs() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(percentEncodeFormComponent(p.Key))
		b.WriteByte('=')
		b.WriteString(percentEncodeFormComponent(p.Value))
	}
	return b.String()
}

func percentEncodeFormComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isUnreservedFormByte(c):
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteString(strings.ToUpper(fmt.Sprintf("%02x", c)))
		}
	}
	return b.String()
}

func isUnreservedFormByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}
