package embedhttp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, onRequest func(ctx *Context)) (*Server, net.Conn) {
	t.Helper()
	srv := New(Config{
		Endpoint:        "127.0.0.1:0",
		ReadTimeout:     2 * time.Second,
		WriteTimeout:    2 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	})
	srv.OnRequestReceived = onRequest
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Stop() })

	conn, err := net.Dial("tcp", srv.Endpoint())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func readResponse(t *testing.T, r *bufio.Reader) (status string, headers map[string]string, body string) {
	t.Helper()
	statusLine, err := r.ReadString('\n')
	require.NoError(t, err)
	status = strings.TrimRight(statusLine, "\r\n")

	headers = make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		kv := strings.SplitN(line, ":", 2)
		headers[kv[0]] = strings.TrimSpace(kv[1])
	}

	if cl, ok := headers["Content-Length"]; ok {
		var n int
		fmt.Sscanf(cl, "%d", &n)
		buf := make([]byte, n)
		_, err := io.ReadFull(r, buf)
		require.NoError(t, err)
		body = string(buf)
	}
	return status, headers, body
}

func TestE2ESimpleGetKeepAlive(t *testing.T) {
	var seenQuery, secondPath string
	_, conn := startTestServer(t, func(ctx *Context) {
		if ctx.Request.URL.Path == "/a" {
			v, _ := ctx.Request.QueryParams().Get("x")
			seenQuery = v
		} else {
			secondPath = ctx.Request.URL.Path
		}
		ctx.Response.WriteString("ok")
	})

	_, err := conn.Write([]byte("GET /a?x=1 HTTP/1.1\r\nHost: h\r\nConnection: keep-alive\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status1, _, _ := readResponse(t, r)
	require.Equal(t, "HTTP/1.1 200 OK", status1)

	_, err = conn.Write([]byte("GET /b HTTP/1.1\r\nHost: h\r\n\r\n"))
	require.NoError(t, err)
	status2, _, _ := readResponse(t, r)
	require.Equal(t, "HTTP/1.1 200 OK", status2)

	require.Equal(t, "1", seenQuery)
	require.Equal(t, "/b", secondPath)

	// No keep-alive on the second response: socket should close.
	_, err = r.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestE2EURLEncodedPost(t *testing.T) {
	var a, b, merged string
	_, conn := startTestServer(t, func(ctx *Context) {
		a, _ = ctx.Request.PostParams().Get("a")
		b, _ = ctx.Request.PostParams().Get("b")
		merged = ctx.GetParam("a")
		ctx.Response.WriteString("ok")
	})

	body := "a=1&b=hi%20u"
	req := fmt.Sprintf("POST /f HTTP/1.1\r\nHost: h\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
	_, err := conn.Write([]byte(req))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, _, _ := readResponse(t, r)
	require.Equal(t, "HTTP/1.1 200 OK", status)
	require.Equal(t, "1", a)
	require.Equal(t, "hi u", b)
	require.Equal(t, "1", merged)
}

func TestE2EMultipartUpload(t *testing.T) {
	var gotContent string
	var gotDisposition bool
	_, conn := startTestServer(t, func(ctx *Context) {
		items := ctx.Request.MultipartItems()
		require.Len(t, items, 1)
		disp, ok := items[0].Headers.Get("Content-Disposition")
		gotDisposition = ok && strings.Contains(disp, "filename=\"x.txt\"")
		data, _ := io.ReadAll(items[0].Stream)
		gotContent = string(data)
		ctx.Response.WriteString("ok")
	})

	part := "--XYZ\r\nContent-Disposition: form-data; name=\"f\"; filename=\"x.txt\"\r\nContent-Type: text/plain\r\n\r\nHELLO\r\n--XYZ--\r\n"
	req := fmt.Sprintf("POST /u HTTP/1.1\r\nHost: h\r\nContent-Type: multipart/form-data; boundary=XYZ\r\nContent-Length: %d\r\n\r\n%s", len(part), part)
	_, err := conn.Write([]byte(req))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, _, _ := readResponse(t, r)
	require.Equal(t, "HTTP/1.1 200 OK", status)
	require.True(t, gotDisposition)
	require.Equal(t, "HELLO", gotContent)
}

func TestE2EExpectContinue(t *testing.T) {
	var gotBody string
	_, conn := startTestServer(t, func(ctx *Context) {
		data, _ := io.ReadAll(ctx.Request.Body())
		gotBody = string(data)
		ctx.Response.WriteString("ok")
	})

	_, err := conn.Write([]byte("POST /e HTTP/1.1\r\nHost: h\r\nExpect: 100-continue\r\nContent-Length: 4\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	continueLine, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1 100 Continue\r\n", continueLine)

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
	}

	_, err = conn.Write([]byte("DATA"))
	require.NoError(t, err)

	status, _, _ := readResponse(t, r)
	require.Equal(t, "HTTP/1.1 200 OK", status)
	require.Equal(t, "DATA", gotBody)
}

func TestE2EBadPrologClosesWithNoResponse(t *testing.T) {
	_, conn := startTestServer(t, func(ctx *Context) {
		ctx.Response.WriteString("should not run")
	})

	_, err := conn.Write([]byte("NOT A REQUEST\r\n\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	require.Equal(t, 0, n)
	require.True(t, err == io.EOF || err != nil)
}

func TestE2ERedirectResolution(t *testing.T) {
	_, conn := startTestServer(t, func(ctx *Context) {
		ctx.Redirect("c", false)
	})

	_, err := conn.Write([]byte("GET /a/b HTTP/1.1\r\nHost: h:81\r\n\r\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	status, hdrs, _ := readResponse(t, r)
	require.Equal(t, "HTTP/1.1 302 Moved", status)
	require.Equal(t, "http://h:81/a/c", hdrs["Location"])
}
