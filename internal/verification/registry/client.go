// Package registry is the HTTP client for the external GTIN registry.
//
//	GET {baseURL}/products/{gtin14}
//	Authorization: Bearer <token>
//
// 200 with a JSON body means the GTIN is registered; 404 means it is not. Any other
// status, a transport error, or a non-JSON 2xx body is a failure. The client never
// retries: retry policy belongs to the caller's circuit breaker and cache.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "winefeed-matcher/1.0"
	maxBodyBytes     = 1 << 20
)

// Client looks up a 14-digit GTIN in the registry.
type Client interface {
	Lookup(ctx context.Context, gtin string) (*LookupResult, error)
}

// LookupResult is a successful registry answer. Found=false is the 404 case.
type LookupResult struct {
	GTIN       string
	Found      bool
	StatusCode int
	Payload    json.RawMessage
}

type HTTPClient struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying client, e.g. an httptest server client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.httpClient.Timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(h *HTTPClient) {
		if ua != "" {
			h.userAgent = ua
		}
	}
}

func New(baseURL, token string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("registry base URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("registry base URL: %w", err)
	}

	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) Lookup(ctx context.Context, gtin string) (*LookupResult, error) {
	reqURL := c.baseURL + "/products/" + url.PathEscape(gtin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &LookupError{Category: ErrorUnexpected, Message: "build request", Underlying: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &LookupResult{GTIN: gtin, Found: false, StatusCode: resp.StatusCode}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &LookupError{
			Category:   categoryForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    snippet(body),
		}
	}

	if !json.Valid(body) {
		return nil, &LookupError{
			Category:   ErrorBadData,
			StatusCode: resp.StatusCode,
			Message:    "response body is not JSON",
		}
	}

	return &LookupResult{
		GTIN:       gtin,
		Found:      true,
		StatusCode: resp.StatusCode,
		Payload:    json.RawMessage(body),
	}, nil
}

func transportError(err error) *LookupError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &LookupError{Category: ErrorTimeout, Underlying: err}
	}
	return &LookupError{Category: ErrorOutage, Underlying: err}
}

// snippet trims body to at most limit bytes without splitting a rune.
func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
