package httpclient

import (
	"net/http"
	"time"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewHTTPClientWithUserAgent creates an HTTP client that sends userAgent on
// every request, so plain HTTP checks look like the browser that follows them.
// An empty userAgent returns the default client.
func NewHTTPClientWithUserAgent(timeout time.Duration, userAgent string) *http.Client {
	client := NewDefaultHTTPClient(timeout)
	if userAgent == "" {
		return client
	}
	client.Transport = &userAgentTransport{
		base:      http.DefaultTransport,
		userAgent: userAgent,
	}
	return client
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
