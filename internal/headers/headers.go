// Package headers implements the case-insensitive header maps used for
// request headers (last-write-wins) and the ordered multimaps used for
// response headers, query parameters, and post parameters.
package headers

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Map is a case-insensitive string->string map where a repeated header
// overwrites the previous value ("last write wins"), matching spec.md's
// Request.Headers contract. It preserves the casing of the first Set
// call for a given key when iterated via Keys.
type Map struct {
	values map[string]string
	order  []string // original-case keys, in first-seen order
}

// NewMap returns an empty header Map.
func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[strings.ToLower(key)]
	return v, ok
}

// Set stores value for key, overwriting any previous value — "last write
// wins", per spec.md §3.
func (m *Map) Set(key, value string) {
	lk := strings.ToLower(key)
	if _, exists := m.values[lk]; !exists {
		m.order = append(m.order, key)
	}
	m.values[lk] = value
}

// Del removes key.
func (m *Map) Del(key string) {
	lk := strings.ToLower(key)
	delete(m.values, lk)
	for i, k := range m.order {
		if strings.EqualFold(k, key) {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Keys returns header names in first-seen order, original casing.
func (m *Map) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len reports the number of distinct headers.
func (m *Map) Len() int {
	return len(m.values)
}

// ErrObsoleteLineFolding is returned by ParseLine when a continuation
// line (leading whitespace) is encountered; spec.md §4.5 rejects it.
var ErrObsoleteLineFolding = fmt.Errorf("headers: obsolete line folding not supported")

// ParseLine splits one already-CRLF-stripped header line into a
// (name, value) pair, trimming the value and validating the name is a
// well-formed HTTP token. Returns an error if there's no colon, the name
// contains whitespace, or the name has non-token characters.
func ParseLine(line string) (name, value string, err error) {
	if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
		return "", "", ErrObsoleteLineFolding
	}

	idx := strings.IndexByte(line, ':')
	if idx == -1 {
		return "", "", fmt.Errorf("headers: malformed header %q: no colon", line)
	}

	rawName := line[:idx]
	rawValue := line[idx+1:]

	if strings.ContainsAny(rawName, " \t") {
		return "", "", fmt.Errorf("headers: whitespace in header name %q", rawName)
	}
	if strings.IndexFunc(rawName, isNotTokenByte) != -1 {
		return "", "", fmt.Errorf("headers: invalid character in header name %q", rawName)
	}

	return rawName, strings.TrimSpace(rawValue), nil
}

func isNotTokenByte(r rune) bool {
	return !httpguts.IsTokenRune(r)
}

// ValidMethod reports whether method is a valid HTTP token, per
// httpguts.IsTokenRune (grounded on Mgrdich-myHttpServer/pkg/util.go's
// ValidMethod/isNotToken).
func ValidMethod(method string) bool {
	return len(method) > 0 && strings.IndexFunc(method, isNotTokenByte) == -1
}

// HasToken reports whether token appears in a comma/space separated
// header value v, ASCII case-insensitively — used for Expect and
// Transfer-Encoding header matching (spec.md §4.5).
func HasToken(v, token string) bool {
	return httpguts.HeaderValuesContainsToken([]string{v}, token)
}

// --- ordered multimap, for response headers / query / post params ---

// Pair is one key/value entry in an OrderedMultimap, preserving insertion
// order even across repeated keys.
type Pair struct {
	Key   string
	Value string
}

// OrderedMultimap is an insertion-ordered, case-insensitive-by-key
// multimap: repeated Add calls for the same key append rather than
// overwrite, and iteration order matches insertion order.
type OrderedMultimap struct {
	pairs []Pair
}

// NewOrderedMultimap returns an empty OrderedMultimap.
func NewOrderedMultimap() *OrderedMultimap {
	return &OrderedMultimap{}
}

// Add appends a (key, value) pair.
func (m *OrderedMultimap) Add(key, value string) {
	m.pairs = append(m.pairs, Pair{Key: key, Value: value})
}

// Get returns the first value for key, case-insensitively.
func (m *OrderedMultimap) Get(key string) (string, bool) {
	for _, p := range m.pairs {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// All returns every value for key, in insertion order.
func (m *OrderedMultimap) All(key string) []string {
	var out []string
	for _, p := range m.pairs {
		if strings.EqualFold(p.Key, key) {
			out = append(out, p.Value)
		}
	}
	return out
}

// Pairs returns the full ordered (key, value) sequence.
func (m *OrderedMultimap) Pairs() []Pair {
	return m.pairs
}

// Len reports the number of pairs (not distinct keys).
func (m *OrderedMultimap) Len() int {
	return len(m.pairs)
}

// Equal reports whether m and other hold the same ordered pairs — used by
// the form-decoder round-trip property test.
func (m *OrderedMultimap) Equal(other *OrderedMultimap) bool {
	if len(m.pairs) != len(other.pairs) {
		return false
	}
	for i, p := range m.pairs {
		if p != other.pairs[i] {
			return false
		}
	}
	return true
}

// ParseHeaderBlock reads (name, value) lines from data until a blank
// line, calling add for each one, and returns the number of bytes
// consumed and whether the blank-line terminator was seen. It accepts
// both CRLF and bare-LF line endings, matching spec.md §4.5's input
// tolerance. Used for multipart part headers, handed over as one slice
// rather than streamed through buf.Buffer.ReadLine.
func ParseHeaderBlock(data []byte, add func(name, value string)) (consumed int, done bool, err error) {
	read := 0
	for {
		rest := data[read:]
		idx := bytes.IndexByte(rest, '\n')
		if idx == -1 {
			break
		}

		lineEnd := idx
		consumedLine := idx + 1
		if lineEnd > 0 && rest[lineEnd-1] == '\r' {
			lineEnd--
		}

		if lineEnd == 0 {
			done = true
			read += consumedLine
			break
		}

		name, value, perr := ParseLine(string(rest[:lineEnd]))
		if perr != nil {
			return read, false, perr
		}
		add(name, value)
		read += consumedLine
	}
	return read, done, nil
}
