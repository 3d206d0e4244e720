package embedhttp

import "github.com/mxvdev/embedhttp/internal/bodyparse"

// MultipartItem is the host-facing view of one multipart/form-data part:
// its headers, and exactly one of an inline value or a file stream, per
// spec.md §3. It is an alias of the internal parser's own item type so
// Request.MultipartItems can hand it out directly without a copy.
type MultipartItem = bodyparse.MultipartItem
