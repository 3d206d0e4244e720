package bodyparse

import (
	"io"

	"github.com/mxvdev/embedhttp/internal/buf"
)

// OpaqueParser exposes the body as a seekable input stream without any
// further parsing, per spec.md §4.3. Bytes are streamed through a
// SpillWriter (in-memory up to a threshold, then a temp file).
type OpaqueParser struct {
	remaining int64
	spill     *SpillWriter
	stream    io.ReadSeekCloser
}

// NewOpaqueParser returns an OpaqueParser expecting exactly length bytes.
func NewOpaqueParser(length int64, spillThreshold int) *OpaqueParser {
	return &OpaqueParser{
		remaining: length,
		spill:     NewSpillWriter(spillThreshold),
	}
}

// Feed implements Parser.
func (p *OpaqueParser) Feed(b *buf.Buffer) (bool, error) {
	for p.remaining > 0 && b.DataAvailable() {
		chunk := b.Unread()
		if int64(len(chunk)) > p.remaining {
			chunk = chunk[:p.remaining]
		}
		n, err := p.spill.Write(chunk)
		b.Consume(n)
		p.remaining -= int64(n)
		if err != nil {
			return false, err
		}
	}

	if p.remaining > 0 {
		return false, nil
	}

	stream, err := p.spill.Reader()
	if err != nil {
		return false, err
	}
	p.stream = stream
	return true, nil
}

// Stream returns the completed body stream. Valid only after Feed
// reports done.
func (p *OpaqueParser) Stream() io.ReadSeekCloser {
	return p.stream
}
