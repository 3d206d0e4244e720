package embedhttp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookieStringNameValueOnly(t *testing.T) {
	c := Cookie{Name: "session", Value: "abc123"}
	assert.Equal(t, "session=abc123", c.String())
}

func TestCookieStringFullFieldOrder(t *testing.T) {
	c := Cookie{
		Name:     "session",
		Value:    "abc123",
		Path:     "/app",
		Domain:   "example.com",
		Expires:  time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC),
		Secure:   true,
		HttpOnly: true,
	}
	want := "session=abc123; Path=/app; Domain=example.com; " +
		"Expires=Mon, 03 Aug 2026 12:00:00 GMT; Secure; HttpOnly"
	assert.Equal(t, want, c.String())
}

func TestCookieStringOmitsZeroExpires(t *testing.T) {
	c := Cookie{Name: "a", Value: "b"}
	assert.NotContains(t, c.String(), "Expires")
}
