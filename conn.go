package embedhttp

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mxvdev/embedhttp/internal/bodyparse"
	"github.com/mxvdev/embedhttp/internal/bufpool"
	"github.com/mxvdev/embedhttp/internal/buf"
	"github.com/mxvdev/embedhttp/internal/headers"
	"github.com/mxvdev/embedhttp/internal/statustext"
)

// builtin500Body is the HTML body emitted for an unrecovered handler
// panic or a best-effort 500, per spec.md §7.
const builtin500Body = "<html><body><h1>500 Internal Server Error</h1></body></html>"

// connection drives one TCP (or TLS-wrapped) stream's whole keep-alive
// lifetime on a single goroutine, per spec.md §3/§4.5. Invariant: at
// most one outstanding read or one outstanding write at any time, never
// both — enforced simply by never issuing one while the other is in
// flight on this goroutine.
type connection struct {
	server *Server
	stream net.Conn
	tls    bool

	readBuf *buf.Buffer

	req  *Request
	resp *Response

	bodyParser bodyparse.Parser

	state        atomic.Int32
	shuttingDown atomic.Bool
	closeOnce    sync.Once
}

func newConnection(s *Server, stream net.Conn, tlsEnabled bool) *connection {
	c := &connection{
		server:  s,
		stream:  stream,
		tls:     tlsEnabled,
		readBuf: buf.New(s.cfg.readBufferSize(), s.cfg.readBufferMax()),
		req:     newRequest(),
		resp:    newResponse(),
	}
	c.state.Store(int32(stateReadingProlog))
	return c
}

// serve drives the connection through its whole keep-alive lifetime,
// per spec.md §4.5's numbered transition list.
func (c *connection) serve() {
	c.server.registry.add(c)
	c.server.metrics.ActiveConnections.Add(1)
	defer func() {
		c.server.metrics.ActiveConnections.Add(-1)
		c.server.registry.remove(c)
		c.req.closeArtifacts()
		c.stream.Close()
	}()

	for {
		if !c.readProlog() {
			return
		}
		if !c.readHeaders() {
			return
		}
		if !c.readContent() {
			return
		}

		start := time.Now()
		c.dispatch()
		c.server.metrics.RecordRequest(c.resp.StatusCode, time.Since(start))

		if !c.writeResponse() {
			return
		}
		if c.shouldClose() {
			c.dispose(nil)
			return
		}
		c.resetForKeepAlive()
	}
}

// fillBuffer issues one read, registered with the read timeout queue
// for the duration of the call, per spec.md §4.6.
func (c *connection) fillBuffer() (int, error) {
	item := c.server.timeouts.Read.Enqueue(time.Now(), func() {
		c.dispose(&IOError{Op: "read-timeout", Err: fmt.Errorf("read deadline exceeded")})
	})
	n, err := c.readBuf.FillFrom(c.stream)
	item.MarkDone()
	return n, err
}

func (c *connection) readLine() (string, error) {
	for {
		if line, ok := c.readBuf.ReadLine(); ok {
			return line, nil
		}
		if _, err := c.fillBuffer(); err != nil {
			return "", err
		}
	}
}

// readProlog implements spec.md §4.5 transition 1.
func (c *connection) readProlog() bool {
	c.state.Store(int32(stateReadingProlog))

	line, err := c.readLine()
	if err != nil {
		// A peer that closes without ever sending a prolog is the
		// ordinary end of a keep-alive connection, not a protocol
		// error worth a best-effort response.
		c.dispose(nil)
		return false
	}

	method, target, protocol, ok := parseRequestLine(line)
	if !ok {
		// spec.md §8 scenario 5: bad prolog closes with no response.
		c.dispose(&ProtocolError{Op: "prolog", Err: fmt.Errorf("malformed request line %q", line)})
		return false
	}

	c.req.Method = method
	c.req.RawTarget = target
	c.req.Protocol = protocol
	c.state.Store(int32(stateReadingHeaders))
	return true
}

func parseRequestLine(line string) (method, target, protocol string, ok bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	method, target, protocol = parts[0], parts[1], parts[2]
	if !isUppercaseToken(method) {
		return "", "", "", false
	}
	if target == "" || strings.ContainsAny(target, " \t") {
		return "", "", "", false
	}
	if !strings.HasPrefix(protocol, "HTTP/") || strings.ContainsAny(protocol, " \t") {
		return "", "", "", false
	}
	return method, target, protocol, true
}

func isUppercaseToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// readHeaders implements spec.md §4.5 transition 2.
func (c *connection) readHeaders() bool {
	c.state.Store(int32(stateReadingHeaders))

	for {
		line, err := c.readLine()
		if err != nil {
			c.dispose(&IOError{Op: "read-headers", Err: err})
			return false
		}
		if line == "" {
			break
		}
		name, value, perr := headers.ParseLine(line)
		if perr != nil {
			c.dispose(&ProtocolError{Op: "headers", Err: perr})
			return false
		}
		c.req.Headers.Set(name, value)
	}

	c.readBuf.Reset()
	host, port := c.server.fallbackHostPort()
	c.req.parseTarget(c.tls, host, port)
	c.state.Store(int32(stateReadingContent))
	return true
}

// readContent implements spec.md §4.5 transition 3, including the
// Expect: 100-continue reprocess rule.
func (c *connection) readContent() bool {
	c.state.Store(int32(stateReadingContent))

	if expect, ok := c.req.Headers.Get("Expect"); ok {
		if !headers.HasToken(expect, "100-continue") {
			c.dispose(&ProtocolError{Op: "expect", Err: fmt.Errorf("unsupported Expect: %s", expect)})
			return false
		}
		c.req.Headers.Del("Expect")
		if err := c.writeContinue(); err != nil {
			c.dispose(&IOError{Op: "write-continue", Err: err})
			return false
		}
		return c.readContent()
	}

	if te, ok := c.req.Headers.Get("Transfer-Encoding"); ok && headers.HasToken(te, "chunked") {
		c.dispose(&ProtocolError{Op: "transfer-encoding", Err: fmt.Errorf("chunked request bodies are not supported")})
		return false
	}

	clStr, hasCL := c.req.Headers.Get("Content-Length")
	if !hasCL {
		c.req.setBody(noBody{})
		return true
	}

	contentLength, err := strconv.ParseInt(clStr, 10, 64)
	if err != nil || contentLength < 0 {
		c.dispose(&ProtocolError{Op: "content-length", Err: fmt.Errorf("invalid Content-Length %q", clStr)})
		return false
	}

	contentType, _ := c.req.Headers.Get("Content-Type")
	parser := bodyparse.SelectParser(contentType, contentLength, c.server.cfg.spillThreshold())
	c.bodyParser = parser

	for {
		done, perr := parser.Feed(c.readBuf)
		if perr != nil {
			c.dispose(&ProtocolError{Op: "body", Err: perr})
			return false
		}
		if done {
			break
		}
		if _, rerr := c.fillBuffer(); rerr != nil {
			if rerr == io.EOF {
				c.dispose(&ProtocolError{Op: "body", Err: bodyparse.ErrIncompleteBody})
				return false
			}
			c.dispose(&IOError{Op: "body-read", Err: rerr})
			return false
		}
	}

	switch p := parser.(type) {
	case *bodyparse.URLEncodedParser:
		c.req.setPostParams(p.Params())
	case *bodyparse.MultipartParser:
		c.req.setMultipartItems(p.Items())
	case *bodyparse.OpaqueParser:
		c.req.setBody(p.Stream())
	}

	return true
}

// dispatch implements spec.md §4.5 transition 4: raise the
// request-received event synchronously, routing a handler panic to the
// unhandled-exception observer and falling back to the built-in 500.
func (c *connection) dispatch() {
	ctx := &Context{Request: c.req, Response: c.resp}

	func() {
		defer func() {
			if r := recover(); r != nil {
				var herr error
				if e, ok := r.(error); ok {
					herr = e
				} else {
					herr = fmt.Errorf("%v", r)
				}
				c.server.logger.Error("handler panic", F("error", herr.Error()))
				c.handleUnhandled(ctx, &HandlerError{Err: herr})
			}
		}()
		c.server.notifyRequestReceived(ctx)
	}()
}

func (c *connection) handleUnhandled(ctx *Context, herr error) {
	handled := c.server.notifyUnhandled(ctx, herr)
	if handled {
		return
	}
	c.resp.reset()
	c.resp.StatusCode = 500
	c.resp.StatusDescription = statustext.Of(500)
	c.resp.ContentType = "text/html"
	c.resp.WriteString(builtin500Body)
}

// writeResponse implements spec.md §4.5 transition 5.
func (c *connection) writeResponse() bool {
	c.state.Store(int32(stateWritingHeaders))

	var headerBlock bytes.Buffer
	if err := c.resp.WriteHeaderBlock(&headerBlock, c.req.Protocol); err != nil {
		c.writeBestEffort500(err)
		return false
	}
	if _, err := c.writeAll(headerBlock.Bytes()); err != nil {
		c.dispose(&IOError{Op: "write-headers", Err: err})
		return false
	}

	c.state.Store(int32(stateWritingContent))
	reader := c.resp.outputReader()
	scratch := bufpool.Get(32768)
	defer bufpool.Put(scratch)

	for {
		n, err := reader.Read(scratch)
		if n > 0 {
			if _, werr := c.writeAll(scratch[:n]); werr != nil {
				c.dispose(&IOError{Op: "write-body", Err: werr})
				return false
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			c.dispose(&IOError{Op: "read-body", Err: err})
			return false
		}
	}
	return true
}

// writeBestEffort500 attempts a 500 response after a failure whose
// request line was at least parsed, per spec.md §7's propagation
// policy. If even that fails, it closes silently.
func (c *connection) writeBestEffort500(cause error) {
	if c.req.Method == "" {
		c.dispose(&ProtocolError{Op: "write-header-block", Err: cause})
		return
	}

	c.resp.reset()
	c.resp.StatusCode = 500
	c.resp.StatusDescription = statustext.Of(500)
	c.resp.WriteString(builtin500Body)

	var headerBlock bytes.Buffer
	if err := c.resp.WriteHeaderBlock(&headerBlock, c.req.Protocol); err != nil {
		c.dispose(&ProtocolError{Op: "best-effort-500", Err: err})
		return
	}
	if _, err := c.writeAll(headerBlock.Bytes()); err != nil {
		c.dispose(&IOError{Op: "best-effort-500", Err: err})
		return
	}
	reader := c.resp.outputReader()
	body, _ := io.ReadAll(reader)
	if _, err := c.writeAll(body); err != nil {
		c.dispose(&IOError{Op: "best-effort-500", Err: err})
		return
	}
	c.dispose(&ProtocolError{Op: "write-header-block", Err: cause})
}

// writeAll issues one write, registered with the write timeout queue
// for the duration of the call, per spec.md §4.6.
func (c *connection) writeAll(p []byte) (int, error) {
	item := c.server.timeouts.Write.Enqueue(time.Now(), func() {
		c.dispose(&IOError{Op: "write-timeout", Err: fmt.Errorf("write deadline exceeded")})
	})
	defer item.MarkDone()

	total := 0
	for total < len(p) {
		n, err := c.stream.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *connection) writeContinue() error {
	line := fmt.Sprintf("%s 100 Continue\r\nServer: %s\r\nDate: %s\r\n\r\n",
		c.req.Protocol, c.server.cfg.banner(), time.Now().UTC().Format(rfc1123))
	_, err := c.writeAll([]byte(line))
	return err
}

// shouldClose implements spec.md §4.5 transition 6's keep-alive check.
func (c *connection) shouldClose() bool {
	if c.shuttingDown.Load() {
		return true
	}
	if c.server.State() != serverStarted {
		return true
	}
	conn, _ := c.req.Headers.Get("Connection")
	return !strings.EqualFold(strings.TrimSpace(conn), "keep-alive")
}

// resetForKeepAlive implements spec.md §4.5's keep-alive reset rule.
func (c *connection) resetForKeepAlive() {
	c.bodyParser = nil
	c.req.reset()
	c.resp.reset()
	c.state.Store(int32(stateReadingProlog))
}

// dispose tears down the connection exactly once: closes the stream
// (unblocking any outstanding Read/Write on this goroutine from another
// goroutine's call), logs the cause, and transitions to Closed. A nil
// err means an ordinary close (peer hung up cleanly, or keep-alive
// declined) and is not logged.
func (c *connection) dispose(err error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(stateClosed))
		if err != nil {
			c.server.logger.Warn("connection disposed",
				F("remote", c.stream.RemoteAddr().String()), F("error", err.Error()))
		}
		c.stream.Close()
	})
}

// requestClose implements spec.md §4.7's graceful-shutdown contract: a
// connection sitting in ReadingProlog is torn down immediately
// (aborting its blocked read); any other connection is just marked so
// its next keep-alive check closes instead of resetting, letting the
// in-flight request finish.
func (c *connection) requestClose() {
	if connState(c.state.Load()) == stateReadingProlog {
		c.dispose(&IOError{Op: "shutdown", Err: fmt.Errorf("server shutting down")})
		return
	}
	c.shuttingDown.Store(true)
}

// forceClose is requestClose's escalation once ShutdownTimeout has
// elapsed: tear down immediately regardless of state.
func (c *connection) forceClose() {
	c.dispose(&IOError{Op: "force-close", Err: fmt.Errorf("shutdown timeout exceeded")})
}

// noBody is the empty io.ReadSeekCloser used when a request carries no
// Content-Length.
type noBody struct{}

func (noBody) Read(p []byte) (int, error)               { return 0, io.EOF }
func (noBody) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (noBody) Close() error                               { return nil }
