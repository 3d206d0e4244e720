package embedhttp

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mxvdev/embedhttp/internal/headers"
	"github.com/mxvdev/embedhttp/internal/statustext"
)

// responseBuffer is the in-memory seekable output buffer a Response
// owns, per spec.md §3. The host writes to it via Response.Write; the
// connection drains it via outputReader once headers are emitted.
type responseBuffer struct {
	buf []byte
	pos int64
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *responseBuffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *responseBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = b.pos + offset
	case io.SeekEnd:
		newPos = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("embedhttp: invalid seek whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("embedhttp: negative seek position")
	}
	b.pos = newPos
	return b.pos, nil
}

// Response is mutable until the headers are serialized, per spec.md §3.
type Response struct {
	StatusCode        int
	StatusDescription string
	ContentType       string
	Charset           string
	CacheControl      string
	ExpiresAbsolute   time.Time
	RedirectLocation  string
	Headers           *headers.OrderedMultimap
	Cookies           []Cookie

	out *responseBuffer
}

// newResponse returns a Response with spec.md §3's defaults: status 200
// "OK", content type text/html, charset utf-8, cache-control private,
// expires at the minimum timestamp.
func newResponse() *Response {
	return &Response{
		StatusCode:        200,
		StatusDescription: "OK",
		ContentType:       "text/html",
		Charset:           "utf-8",
		CacheControl:      "private",
		ExpiresAbsolute:   time.Time{},
		Headers:           headers.NewOrderedMultimap(),
		out:               &responseBuffer{},
	}
}

// Write appends to the response body, implementing io.Writer.
func (resp *Response) Write(p []byte) (int, error) {
	return resp.out.Write(p)
}

// WriteString appends s to the response body.
func (resp *Response) WriteString(s string) (int, error) {
	return resp.out.Write([]byte(s))
}

// BodyLen reports the current body length in bytes.
func (resp *Response) BodyLen() int {
	return len(resp.out.buf)
}

// SetCookie appends a cookie to be emitted as a Set-Cookie header.
func (resp *Response) SetCookie(c Cookie) {
	resp.Cookies = append(resp.Cookies, c)
}

// outputReader returns a reader positioned at the start of the body,
// ready to be drained to the socket. Ownership stays with the
// Response; the connection only borrows it for the duration of the
// write, per Design Note 9 (response output stream owned by the
// response, borrowed by the connection at write time).
func (resp *Response) outputReader() io.ReadSeeker {
	resp.out.pos = 0
	return resp.out
}

// reset clears the Response back to its defaults so it can be reused
// across a keep-alive connection's next cycle.
func (resp *Response) reset() {
	resp.StatusCode = 200
	resp.StatusDescription = "OK"
	resp.ContentType = "text/html"
	resp.Charset = "utf-8"
	resp.CacheControl = "private"
	resp.ExpiresAbsolute = time.Time{}
	resp.RedirectLocation = ""
	resp.Headers = headers.NewOrderedMultimap()
	resp.Cookies = nil
	resp.out = &responseBuffer{}
}

// Redirect sets status 301 (permanent) or 302 with description "Moved"
// and a resolved Location header, per spec.md §4.4. A location without
// a scheme (no ':') is resolved against req's URL: absolute paths
// (leading '/') become scheme://host[:port]/path; relative paths
// resolve against the request path's directory.
func (resp *Response) Redirect(req *Request, location string, permanent bool) {
	if permanent {
		resp.StatusCode = 301
	} else {
		resp.StatusCode = 302
	}
	resp.StatusDescription = "Moved"
	resp.RedirectLocation = resolveRedirectLocation(req.URL, location)
}

func resolveRedirectLocation(reqURL RequestURL, location string) string {
	if strings.Contains(location, ":") {
		return location
	}

	authority := reqURL.Host
	if reqURL.Port != "" {
		authority += ":" + reqURL.Port
	}

	if strings.HasPrefix(location, "/") {
		return fmt.Sprintf("%s://%s%s", reqURL.Scheme, authority, location)
	}

	dir := reqURL.Path
	if idx := strings.LastIndexByte(dir, '/'); idx != -1 {
		dir = dir[:idx+1]
	} else {
		dir = "/"
	}
	return fmt.Sprintf("%s://%s%s%s", reqURL.Scheme, authority, dir, location)
}

// WriteHeaderBlock emits exactly the header block shown in spec.md
// §4.4, in field order, then leaves w positioned for the body to
// follow. Newlines within any header value are a protocol error.
func (resp *Response) WriteHeaderBlock(w io.Writer, protocol string) error {
	var b bytes.Buffer

	description := resp.StatusDescription
	if description == "" {
		description = statustext.Of(resp.StatusCode)
	}
	if description != "" {
		fmt.Fprintf(&b, "%s %d %s\r\n", protocol, resp.StatusCode, description)
	} else {
		fmt.Fprintf(&b, "%s %d\r\n", protocol, resp.StatusCode)
	}

	if resp.CacheControl != "" {
		if err := writeHeaderLine(&b, "Cache-Control", resp.CacheControl); err != nil {
			return err
		}
	}
	if resp.ContentType != "" {
		ct := resp.ContentType
		if resp.Charset != "" {
			ct = fmt.Sprintf("%s; charset=%s", ct, resp.Charset)
		}
		if err := writeHeaderLine(&b, "Content-Type", ct); err != nil {
			return err
		}
	}
	if err := writeHeaderLine(&b, "Expires", resp.ExpiresAbsolute.UTC().Format(rfc1123)); err != nil {
		return err
	}
	if resp.RedirectLocation != "" {
		if err := writeHeaderLine(&b, "Location", resp.RedirectLocation); err != nil {
			return err
		}
	}
	for _, p := range resp.Headers.Pairs() {
		if strings.EqualFold(p.Key, "Content-Length") {
			continue
		}
		if err := writeHeaderLine(&b, p.Key, p.Value); err != nil {
			return err
		}
	}
	if err := writeHeaderLine(&b, "Content-Length", strconv.Itoa(resp.BodyLen())); err != nil {
		return err
	}
	for _, c := range resp.Cookies {
		if err := writeHeaderLine(&b, "Set-Cookie", c.String()); err != nil {
			return err
		}
	}
	b.WriteString("\r\n")

	_, err := w.Write(b.Bytes())
	return err
}

func writeHeaderLine(b *bytes.Buffer, name, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return &ProtocolError{Op: "WriteHeaderBlock", Err: fmt.Errorf("newline in header %q value", name)}
	}
	fmt.Fprintf(b, "%s: %s\r\n", name, value)
	return nil
}
