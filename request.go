package embedhttp

import (
	"io"
	"strings"

	"github.com/mxvdev/embedhttp/internal/bodyparse"
	"github.com/mxvdev/embedhttp/internal/headers"
	"github.com/mxvdev/embedhttp/internal/urlcodec"
)

// RequestURL is the request's parsed URL, per spec.md §3: the scheme is
// "https" iff the connection is TLS, the host comes from the Host
// header (or the endpoint's own host when absent).
type RequestURL struct {
	Scheme   string
	Host     string
	Port     string
	Path     string
	RawQuery string
}

// Request is immutable after the request-received callback starts
// reading it, per spec.md §3. Fields set by the state machine during
// parsing; query params are parsed lazily on first access.
type Request struct {
	Method    string
	RawTarget string
	Protocol  string
	Headers   *headers.Map
	URL       RequestURL

	postParams     *headers.OrderedMultimap
	multipartItems []*bodyparse.MultipartItem
	bodyStream     io.ReadSeeker
	bodyCloser     io.Closer

	queryParams *headers.OrderedMultimap
}

// newRequest returns a zeroed Request ready to be populated by the
// per-connection state machine across one request cycle.
func newRequest() *Request {
	return &Request{Headers: headers.NewMap()}
}

// QueryParams parses RawQuery on first access and caches the result.
func (r *Request) QueryParams() *headers.OrderedMultimap {
	if r.queryParams == nil {
		m, err := urlcodec.ParseForm(r.URL.RawQuery)
		if err != nil {
			m = headers.NewOrderedMultimap()
		}
		r.queryParams = m
	}
	return r.queryParams
}

// PostParams returns the body parser's decoded post parameters, or an
// empty multimap if the body wasn't url-encoded form data.
func (r *Request) PostParams() *headers.OrderedMultimap {
	if r.postParams == nil {
		return headers.NewOrderedMultimap()
	}
	return r.postParams
}

// setPostParams is called by the connection state machine once the
// url-encoded body parser completes.
func (r *Request) setPostParams(m *headers.OrderedMultimap) {
	r.postParams = m
}

// MultipartItems returns the parsed multipart/form-data parts, empty if
// the body wasn't multipart.
func (r *Request) MultipartItems() []*bodyparse.MultipartItem {
	return r.multipartItems
}

func (r *Request) setMultipartItems(items []*bodyparse.MultipartItem) {
	r.multipartItems = items
}

// Body returns the request's input body stream, seekable, possibly
// empty. Valid for opaque and unrecognized content types; url-encoded
// and multipart bodies are exposed through PostParams/MultipartItems
// instead.
func (r *Request) Body() io.ReadSeeker {
	return r.bodyStream
}

func (r *Request) setBody(s io.ReadSeekCloser) {
	r.bodyStream = s
	r.bodyCloser = s
}

// GetParam returns the first value for name from the merged query-then-
// post multimap view, per spec.md §4.4's Params precedence.
func (r *Request) GetParam(name string) string {
	if v, ok := r.QueryParams().Get(name); ok {
		return v
	}
	v, _ := r.PostParams().Get(name)
	return v
}

// closeArtifacts releases any file-backed streams the body parser
// opened (opaque body spill file, multipart file parts) before the
// Request is reset or discarded.
func (r *Request) closeArtifacts() {
	if r.bodyCloser != nil {
		r.bodyCloser.Close()
	}
	for _, item := range r.multipartItems {
		if item.Stream != nil {
			item.Stream.Close()
		}
	}
}

// reset clears every per-request field so the Request can be reused
// across a keep-alive connection's next cycle, per spec.md §4.5's
// keep-alive reset rule: drops method/target/protocol and replaces the
// headers mapping with a fresh one, dropping body parser artifacts.
func (r *Request) reset() {
	r.closeArtifacts()
	r.Method = ""
	r.RawTarget = ""
	r.Protocol = ""
	r.Headers = headers.NewMap()
	r.URL = RequestURL{}
	r.postParams = nil
	r.multipartItems = nil
	r.bodyStream = nil
	r.bodyCloser = nil
	r.queryParams = nil
}

// parseTarget splits RawTarget into URL.Path and URL.RawQuery, and fills
// in URL.Scheme/Host/Port from the connection's TLS state and the Host
// header (origin-form target) or the target's own authority
// (absolute-form target, which overrides Host per spec.md §6).
func (r *Request) parseTarget(tlsEnabled bool, fallbackHost, fallbackPort string) {
	target := r.RawTarget
	path := target
	query := ""
	if idx := strings.IndexByte(target, '?'); idx != -1 {
		path = target[:idx]
		query = target[idx+1:]
	}

	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}

	host := fallbackHost
	port := fallbackPort
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		rest := target
		if idx := strings.Index(rest, "://"); idx != -1 {
			rest = rest[idx+3:]
		}
		authority := rest
		if idx := strings.IndexByte(rest, '/'); idx != -1 {
			authority = rest[:idx]
			path = rest[idx:]
			if qidx := strings.IndexByte(path, '?'); qidx != -1 {
				query = path[qidx+1:]
				path = path[:qidx]
			} else {
				query = ""
			}
		}
		host, port = splitHostPort(authority, port)
	} else if h, ok := r.Headers.Get("Host"); ok && h != "" {
		host, port = splitHostPort(h, port)
	}

	r.URL = RequestURL{
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		Path:     path,
		RawQuery: query,
	}
}

func splitHostPort(authority, fallbackPort string) (host, port string) {
	if idx := strings.LastIndexByte(authority, ':'); idx != -1 {
		return authority[:idx], authority[idx+1:]
	}
	return authority, fallbackPort
}
