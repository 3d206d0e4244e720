package embedhttp

import (
	"crypto/tls"
	"time"
)

// Config configures a Server before Start, per spec.md §6's host-facing
// API surface.
type Config struct {
	// Endpoint is the address to listen on, e.g. ":8080" or
	// "127.0.0.1:0" (port 0 picks an ephemeral port; read it back from
	// Server.Endpoint after Start).
	Endpoint string

	// ReadTimeout and WriteTimeout bound how long an outstanding read or
	// write may sit in the timeout manager's queues before the
	// connection is disposed. Zero uses the spec.md §4.6 default of 90s.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownTimeout bounds how long Stop waits for the connection
	// registry to drain before force-closing stragglers. Zero uses 30s.
	ShutdownTimeout time.Duration

	// ReadBufferSize is the read buffer's initial capacity; ReadBufferMax
	// is its hard growth ceiling (spec.md §4.1 default 1 MiB).
	ReadBufferSize int
	ReadBufferMax  int

	// SpillThreshold is the in-memory ceiling before opaque/multipart
	// file bodies spill to a temp file (spec.md §4.3 default 1 MiB).
	SpillThreshold int

	// Banner is the Server header value sent in 100-continue preludes;
	// final responses carry no Server header.
	Banner string

	// Certificate enables TLS when non-nil: the accepted transport is
	// wrapped with a server-mode handshake before any HTTP bytes are
	// read, per spec.md §4.7.
	Certificate *tls.Certificate

	// MinTLSVersion/MaxTLSVersion bound the allowed protocol versions
	// when Certificate is set. Zero means crypto/tls's own default.
	MinTLSVersion uint16
	MaxTLSVersion uint16

	// RequireClientCert requests and requires a client certificate
	// during the handshake. The client's identity is never surfaced to
	// the callback, per spec.md §6.
	RequireClientCert bool

	// ReuseAddress sets SO_REUSEADDR-equivalent socket option behavior
	// via net.ListenConfig.Control when supported by the platform.
	ReuseAddress bool

	// Logger receives structured log lines for accept errors, TLS
	// handshake failures, timeout-driven disposals, and handler panics.
	// Defaults to a DefaultLogger writing to os.Stderr.
	Logger Logger
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return 90 * time.Second
	}
	return c.ReadTimeout
}

func (c Config) writeTimeout() time.Duration {
	if c.WriteTimeout <= 0 {
		return 90 * time.Second
	}
	return c.WriteTimeout
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 30 * time.Second
	}
	return c.ShutdownTimeout
}

func (c Config) readBufferSize() int {
	if c.ReadBufferSize <= 0 {
		return 4096
	}
	return c.ReadBufferSize
}

func (c Config) readBufferMax() int {
	if c.ReadBufferMax <= 0 {
		return 1 << 20
	}
	return c.ReadBufferMax
}

func (c Config) spillThreshold() int {
	if c.SpillThreshold <= 0 {
		return 1 << 20
	}
	return c.SpillThreshold
}

func (c Config) banner() string {
	if c.Banner == "" {
		return "embedhttp"
	}
	return c.Banner
}
