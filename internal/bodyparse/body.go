// Package bodyparse implements the three body-parser variants spec.md
// §4.3 names — opaque, url-encoded, and multipart — sharing a common
// Feed(buffer) contract: each consumes exactly the declared
// Content-Length bytes across one or more calls and signals completion.
package bodyparse

import (
	"errors"
	"strings"

	"github.com/mxvdev/embedhttp/internal/buf"
)

// ErrIncompleteBody reports a body that ended early: the socket closed
// before the declared Content-Length bytes were read, or a multipart body
// ends without its next boundary delimiter.
var ErrIncompleteBody = errors.New("bodyparse: connection closed before body was fully read")

// ErrMissingBoundary is returned when a multipart/form-data
// Content-Type carries no boundary parameter.
var ErrMissingBoundary = errors.New("bodyparse: multipart/form-data without boundary")

// Parser is the shared shape of the three body-parser variants: feed it
// the read buffer and it reports whether the body is now fully
// consumed. data_available on the buffer may be false between calls —
// the caller re-invokes Feed once more bytes have been read in.
type Parser interface {
	// Feed consumes as many currently-buffered bytes as it can use,
	// returning done once the full declared length has been parsed.
	Feed(b *buf.Buffer) (done bool, err error)
}

// SelectParser picks a body parser by the Content-Type's first token, per
// spec.md §4.3: unknown content types fall back to the opaque parser.
// contentLength must be the parsed, non-negative Content-Length.
func SelectParser(contentType string, contentLength int64, spillThreshold int) Parser {
	mediaType := firstToken(contentType)

	switch {
	case strings.EqualFold(mediaType, "application/x-www-form-urlencoded"):
		return NewURLEncodedParser(contentLength)
	case strings.EqualFold(mediaType, "multipart/form-data"):
		boundary := boundaryParam(contentType)
		if boundary == "" {
			return errorParser{err: ErrMissingBoundary}
		}
		return NewMultipartParser(contentLength, boundary, spillThreshold)
	default:
		return NewOpaqueParser(contentLength, spillThreshold)
	}
}

func firstToken(contentType string) string {
	if idx := strings.IndexByte(contentType, ';'); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

func boundaryParam(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(strings.ToLower(part), "boundary=") {
			continue
		}
		v := part[len("boundary="):]
		v = strings.Trim(v, `"`)
		return v
	}
	return ""
}

// errorParser immediately fails Feed; used to surface a selection-time
// error (e.g. missing boundary) through the same Parser contract.
type errorParser struct{ err error }

func (p errorParser) Feed(b *buf.Buffer) (bool, error) { return false, p.err }
