package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// HTTPChecker issues HEAD requests. Deadlines come from the caller's context;
// the client itself carries no timeout.
type HTTPChecker struct {
	client    *http.Client
	userAgent string
}

type HTTPOption func(*HTTPChecker)

// WithClient replaces the underlying client (tests use the httptest client).
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTPChecker) {
		if c != nil {
			h.client = c
		}
	}
}

func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTPChecker) {
		h.userAgent = ua
	}
}

func NewHTTPChecker(opts ...HTTPOption) (*HTTPChecker, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}
	h := &HTTPChecker{
		client:    &http.Client{Transport: transport},
		userAgent: "iconresolve/1",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HTTPChecker) Exists(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, &StatusError{URL: url, Code: resp.StatusCode}
	}
}
