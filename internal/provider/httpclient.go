package provider

import (
	"net"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a provider response body is read.
const maxResponseBytes = 10 << 20

// SharedHTTPClient returns an HTTP client with connection pooling, shared by
// all three adapters. A timeout <= 0 leaves the overall request unbounded so
// that only the transport's own dial and handshake limits apply.
func SharedHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	client := &http.Client{Transport: transport}
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
		client.Timeout = timeout
	}
	return client
}
