package embedhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetOriginFormUsesHostHeader(t *testing.T) {
	r := newRequest()
	r.RawTarget = "/a/b?x=1"
	r.Headers.Set("Host", "example.com:8080")
	r.parseTarget(false, "fallback", "0")

	assert.Equal(t, "http", r.URL.Scheme)
	assert.Equal(t, "example.com", r.URL.Host)
	assert.Equal(t, "8080", r.URL.Port)
	assert.Equal(t, "/a/b", r.URL.Path)
	assert.Equal(t, "x=1", r.URL.RawQuery)
}

func TestParseTargetUsesFallbackWhenNoHostHeader(t *testing.T) {
	r := newRequest()
	r.RawTarget = "/only"
	r.parseTarget(true, "h", "443")

	assert.Equal(t, "https", r.URL.Scheme)
	assert.Equal(t, "h", r.URL.Host)
	assert.Equal(t, "443", r.URL.Port)
}

func TestParseTargetAbsoluteFormOverridesHostHeader(t *testing.T) {
	r := newRequest()
	r.RawTarget = "http://authority.example:9090/p?q=2"
	r.Headers.Set("Host", "ignored.example")
	r.parseTarget(false, "fallback", "0")

	assert.Equal(t, "authority.example", r.URL.Host)
	assert.Equal(t, "9090", r.URL.Port)
	assert.Equal(t, "/p", r.URL.Path)
	assert.Equal(t, "q=2", r.URL.RawQuery)
}

func TestQueryParamsParsedLazilyAndCached(t *testing.T) {
	r := newRequest()
	r.URL.RawQuery = "a=1&b=2"

	qp := r.QueryParams()
	v, ok := qp.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	// second call returns the cached instance
	assert.Same(t, qp, r.QueryParams())
}

func TestGetParamPrefersQueryOverPost(t *testing.T) {
	r := newRequest()
	r.URL.RawQuery = "name=fromquery"
	post := r.PostParams()
	post.Add("name", "frompost")
	r.setPostParams(post)

	assert.Equal(t, "fromquery", r.GetParam("name"))
}

func TestGetParamFallsBackToPost(t *testing.T) {
	r := newRequest()
	post := r.PostParams()
	post.Add("onlypost", "v")
	r.setPostParams(post)

	assert.Equal(t, "v", r.GetParam("onlypost"))
	assert.Equal(t, "", r.GetParam("missing"))
}

func TestRequestResetClearsFieldsAndArtifacts(t *testing.T) {
	r := newRequest()
	r.Method = "GET"
	r.RawTarget = "/x"
	r.Protocol = "HTTP/1.1"
	r.Headers.Set("X", "Y")
	r.URL.Path = "/x"
	r.QueryParams()

	r.reset()

	assert.Equal(t, "", r.Method)
	assert.Equal(t, "", r.RawTarget)
	assert.Equal(t, "", r.Protocol)
	assert.Equal(t, RequestURL{}, r.URL)
	assert.Nil(t, r.bodyStream)
	assert.Nil(t, r.queryParams)
	_, ok := r.Headers.Get("X")
	assert.False(t, ok)
}
