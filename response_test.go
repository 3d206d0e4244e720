package embedhttp

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResponseDefaults(t *testing.T) {
	r := newResponse()
	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, "OK", r.StatusDescription)
	assert.Equal(t, "text/html", r.ContentType)
	assert.Equal(t, "utf-8", r.Charset)
	assert.Equal(t, "private", r.CacheControl)
	assert.True(t, r.ExpiresAbsolute.IsZero())
}

func TestWriteHeaderBlockFieldOrder(t *testing.T) {
	r := newResponse()
	r.WriteString("hello")
	r.Headers.Add("X-Custom", "v1")
	r.SetCookie(Cookie{Name: "a", Value: "b"})

	var buf bytes.Buffer
	require.NoError(t, r.WriteHeaderBlock(&buf, "HTTP/1.1"))

	out := buf.String()
	lines := []string{
		"HTTP/1.1 200 OK\r\n",
		"Cache-Control: private\r\n",
		"Content-Type: text/html; charset=utf-8\r\n",
		"Expires: ",
		"X-Custom: v1\r\n",
		"Content-Length: 5\r\n",
		"Set-Cookie: a=b\r\n",
		"\r\n",
	}
	idx := 0
	for _, want := range lines {
		found := bytes.Index([]byte(out[idx:]), []byte(want))
		require.GreaterOrEqualf(t, found, 0, "expected %q to appear after offset %d in %q", want, idx, out)
		idx += found + len(want)
	}
}

func TestWriteHeaderBlockOverridesUserContentLength(t *testing.T) {
	r := newResponse()
	r.WriteString("abc")
	r.Headers.Add("Content-Length", "999")

	var buf bytes.Buffer
	require.NoError(t, r.WriteHeaderBlock(&buf, "HTTP/1.1"))

	out := buf.String()
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte("Content-Length:")))
	assert.Contains(t, out, "Content-Length: 3\r\n")
}

func TestWriteHeaderBlockRejectsNewlineInValue(t *testing.T) {
	r := newResponse()
	r.Headers.Add("X-Bad", "line1\r\nline2")

	var buf bytes.Buffer
	err := r.WriteHeaderBlock(&buf, "HTTP/1.1")
	require.Error(t, err)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestRedirectPermanentAndTemporary(t *testing.T) {
	req := newRequest()
	req.URL = RequestURL{Scheme: "http", Host: "h", Port: "81", Path: "/a/b"}

	r := newResponse()
	r.Redirect(req, "c", false)
	assert.Equal(t, 302, r.StatusCode)
	assert.Equal(t, "Moved", r.StatusDescription)
	assert.Equal(t, "http://h:81/a/c", r.RedirectLocation)

	r2 := newResponse()
	r2.Redirect(req, "c", true)
	assert.Equal(t, 301, r2.StatusCode)
}

func TestResolveRedirectLocationAbsolutePath(t *testing.T) {
	u := RequestURL{Scheme: "https", Host: "host", Port: "", Path: "/x/y"}
	got := resolveRedirectLocation(u, "/top")
	assert.Equal(t, "https://host/top", got)
}

func TestResolveRedirectLocationPassthroughWhenAbsolute(t *testing.T) {
	u := RequestURL{Scheme: "http", Host: "host"}
	got := resolveRedirectLocation(u, "https://other.example/z")
	assert.Equal(t, "https://other.example/z", got)
}

func TestResponseBufferSeekRoundTrip(t *testing.T) {
	r := newResponse()
	r.WriteString("0123456789")

	reader := r.outputReader()
	buf := make([]byte, 4)
	n, err := reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))

	pos, err := reader.Seek(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	n, err = reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))
}

func TestResponseResetRestoresDefaults(t *testing.T) {
	r := newResponse()
	r.WriteString("x")
	r.StatusCode = 500
	r.ExpiresAbsolute = time.Now()
	r.reset()

	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, 0, r.BodyLen())
	assert.True(t, r.ExpiresAbsolute.IsZero())
}
