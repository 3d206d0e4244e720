package embedhttp

import (
	"fmt"
	"strings"
	"time"
)

// Cookie is a single Set-Cookie value, per spec.md §3.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	Expires  time.Time // zero value omits Expires
	Secure   bool
	HttpOnly bool
}

// String serializes the cookie to a single Set-Cookie header value:
// Name=Value, then ; Path=, ; Domain=, ; Expires=<RFC1123>, ; Secure,
// ; HttpOnly, in that order, omitting empty/zero fields.
func (c Cookie) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s", c.Name, c.Value)

	if c.Path != "" {
		fmt.Fprintf(&b, "; Path=%s", c.Path)
	}
	if c.Domain != "" {
		fmt.Fprintf(&b, "; Domain=%s", c.Domain)
	}
	if !c.Expires.IsZero() {
		fmt.Fprintf(&b, "; Expires=%s", c.Expires.UTC().Format(rfc1123))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}

// rfc1123 is the wire date format used for Expires and Date headers.
const rfc1123 = "Mon, 02 Jan 2006 15:04:05 GMT"
