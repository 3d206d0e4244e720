package bodyparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/mxvdev/embedhttp/internal/buf"
	"github.com/mxvdev/embedhttp/internal/headers"
	"github.com/mxvdev/embedhttp/internal/urlcodec"
)

// MultipartItem is one part of a parsed multipart/form-data body: its
// headers, and exactly one of an inline string value or an open
// seekable stream, per spec.md §3.
type MultipartItem struct {
	Headers *headers.Map
	Value   *string
	Stream  io.ReadSeekCloser
}

// IsFile reports whether this item carries a file-backed stream rather
// than an inline value.
func (it *MultipartItem) IsFile() bool {
	return it.Stream != nil
}

// FieldName returns the form field name from Content-Disposition.
func (it *MultipartItem) FieldName() string {
	return dispositionParam(it.dispositionHeader(), "name")
}

// Filename returns the uploaded filename from Content-Disposition, or
// "" for non-file parts.
func (it *MultipartItem) Filename() string {
	return dispositionParam(it.dispositionHeader(), "filename")
}

func (it *MultipartItem) dispositionHeader() string {
	v, _ := it.Headers.Get("Content-Disposition")
	return v
}

// MultipartParser implements streaming-by-contract (exactly
// Content-Length bytes across one or more Feed calls) multipart/form-data
// parsing: the raw body is accumulated, then split on the boundary in
// one pass once fully received, so each part's file-ness can be
// determined from its own Content-Disposition before deciding whether to
// spill it to disk.
type MultipartParser struct {
	remaining      int64
	boundary       string
	spillThreshold int
	acc            bytes.Buffer
	items          []*MultipartItem
}

// NewMultipartParser returns a MultipartParser expecting exactly length
// bytes of multipart/form-data body delimited by boundary.
func NewMultipartParser(length int64, boundary string, spillThreshold int) *MultipartParser {
	return &MultipartParser{remaining: length, boundary: boundary, spillThreshold: spillThreshold}
}

// Feed implements Parser.
func (p *MultipartParser) Feed(b *buf.Buffer) (bool, error) {
	for p.remaining > 0 && b.DataAvailable() {
		chunk := b.Unread()
		if int64(len(chunk)) > p.remaining {
			chunk = chunk[:p.remaining]
		}
		p.acc.Write(chunk)
		b.Consume(len(chunk))
		p.remaining -= int64(len(chunk))
	}

	if p.remaining > 0 {
		return false, nil
	}

	items, err := parseMultipartBody(p.acc.Bytes(), p.boundary, p.spillThreshold)
	if err != nil {
		return false, err
	}
	p.items = items
	return true, nil
}

// Items returns the parsed parts. Valid only after Feed reports done.
func (p *MultipartParser) Items() []*MultipartItem {
	return p.items
}

func parseMultipartBody(raw []byte, boundary string, spillThreshold int) ([]*MultipartItem, error) {
	rawParts, err := splitMultipartParts(raw, boundary)
	if err != nil {
		return nil, err
	}

	items := make([]*MultipartItem, 0, len(rawParts))
	for _, partBytes := range rawParts {
		item, err := parsePart(partBytes, spillThreshold)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// splitMultipartParts splits raw into the byte ranges for each part's
// headers+body block, per spec.md §4.3's boundary grammar: a leading
// "--boundary" line, each part separated by "\r\n--boundary", and a
// terminating "--boundary--".
func splitMultipartParts(raw []byte, boundary string) ([][]byte, error) {
	delim := []byte("--" + boundary)

	first := bytes.Index(raw, delim)
	if first == -1 {
		return nil, fmt.Errorf("bodyparse: multipart boundary %q not found in body", boundary)
	}
	pos := first + len(delim)

	var parts [][]byte
	for {
		if pos+1 < len(raw) && raw[pos] == '-' && raw[pos+1] == '-' {
			return parts, nil
		}

		lineEnd, ok := skipLineBreak(raw, pos)
		if !ok {
			return nil, fmt.Errorf("bodyparse: malformed boundary line in multipart body")
		}

		rel := bytes.Index(raw[lineEnd:], delim)
		if rel == -1 {
			return nil, ErrIncompleteBody
		}
		nextDelimPos := lineEnd + rel

		bodyEnd := trimTrailingLineBreak(raw, nextDelimPos)
		parts = append(parts, raw[lineEnd:bodyEnd])
		pos = nextDelimPos + len(delim)
	}
}

func skipLineBreak(raw []byte, pos int) (int, bool) {
	if pos+1 < len(raw) && raw[pos] == '\r' && raw[pos+1] == '\n' {
		return pos + 2, true
	}
	if pos < len(raw) && raw[pos] == '\n' {
		return pos + 1, true
	}
	return pos, false
}

func trimTrailingLineBreak(raw []byte, pos int) int {
	if pos >= 2 && raw[pos-2] == '\r' && raw[pos-1] == '\n' {
		return pos - 2
	}
	if pos >= 1 && raw[pos-1] == '\n' {
		return pos - 1
	}
	return pos
}

func parsePart(partBytes []byte, spillThreshold int) (*MultipartItem, error) {
	hm := headers.NewMap()
	consumed, _, err := headers.ParseHeaderBlock(partBytes, func(name, value string) {
		hm.Set(name, value)
	})
	if err != nil {
		return nil, err
	}

	body := partBytes[consumed:]
	item := &MultipartItem{Headers: hm}

	disposition, _ := hm.Get("Content-Disposition")
	if dispositionParam(disposition, "filename") != "" {
		spill := NewSpillWriter(spillThreshold)
		if _, err := spill.Write(body); err != nil {
			return nil, err
		}
		stream, err := spill.Reader()
		if err != nil {
			return nil, err
		}
		item.Stream = stream
		return item, nil
	}

	contentType, _ := hm.Get("Content-Type")
	charsetName := dispositionParam(contentType, "charset")
	decoded, err := urlcodec.DecodeCharset(body, charsetName)
	if err != nil {
		return nil, err
	}
	item.Value = &decoded
	return item, nil
}

// dispositionParam extracts a `key="value"` or `key=value` parameter
// from a header value like `form-data; name="f"; filename="x.txt"` or
// `text/plain; charset=utf-8`.
func dispositionParam(header, key string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		prefix := key + "="
		if !strings.HasPrefix(strings.ToLower(part), strings.ToLower(prefix)) {
			continue
		}
		v := part[len(prefix):]
		return strings.Trim(v, `"`)
	}
	return ""
}
