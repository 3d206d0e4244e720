package bodyparse

import (
	"bytes"

	"github.com/mxvdev/embedhttp/internal/buf"
	"github.com/mxvdev/embedhttp/internal/headers"
	"github.com/mxvdev/embedhttp/internal/urlcodec"
)

// URLEncodedParser accumulates the whole body in memory, then decodes it
// into an ordered post-parameter multimap, per spec.md §4.3.
type URLEncodedParser struct {
	remaining int64
	acc       bytes.Buffer
	params    *headers.OrderedMultimap
}

// NewURLEncodedParser returns a URLEncodedParser expecting exactly
// length bytes.
func NewURLEncodedParser(length int64) *URLEncodedParser {
	return &URLEncodedParser{remaining: length}
}

// Feed implements Parser.
func (p *URLEncodedParser) Feed(b *buf.Buffer) (bool, error) {
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

	params, err := urlcodec.ParseForm(p.acc.String())
	if err != nil {
		return false, err
	}
	p.params = params
	return true, nil
}

// Params returns the decoded post parameters. Valid only after Feed
// reports done.
func (p *URLEncodedParser) Params() *headers.OrderedMultimap {
	return p.params
}
