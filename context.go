package embedhttp

// Context wraps a Request/Response pair for one callback invocation,
// per spec.md §6: the request is read-only after dispatch, the response
// is mutable until its first byte is flushed.
type Context struct {
	Request  *Request
	Response *Response
}

// GetParam returns the first value for name from the merged query-then-
// post multimap, per spec.md §6.
func (c *Context) GetParam(name string) string {
	return c.Request.GetParam(name)
}

// Redirect is a convenience forwarding to Response.Redirect using this
// context's own Request for relative-location resolution.
func (c *Context) Redirect(location string, permanent bool) {
	c.Response.Redirect(c.Request, location, permanent)
}
