package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// NewHTTPClient builds the client shared by the HTTP backends. When proxyAddr
// is set every connection is dialed through that SOCKS5 proxy.
func NewHTTPClient(timeout time.Duration, proxyAddr string) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy %s: %w", proxyAddr, err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.Dial = dialer.Dial
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// postJSON sends in as a JSON body and decodes a 200 response into out.
// Non-200 statuses are mapped to *Error by statusError.
func postJSON(ctx context.Context, hc *http.Client, provider, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", provider, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return wrapTransport(provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapTransport(provider, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(provider, resp, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		// A 200 with an undecodable envelope is a broken upstream, not a
		// malformed summary.
		return &Error{Provider: provider, Kind: Transport, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError maps an HTTP error status to the provider error taxonomy.
func statusError(provider string, resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	err := fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	e := &Error{Provider: provider, Err: err}
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Kind = AuthenticationFailed
	case code == http.StatusTooManyRequests:
		e.Kind = RateLimited
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		e.Kind = Timeout
	case code == http.StatusNotFound:
		e.Kind = InvalidModel
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "model"):
		e.Kind = InvalidModel
	default:
		e.Kind = Transport
	}
	return e
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
