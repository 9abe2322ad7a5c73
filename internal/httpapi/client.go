package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/chaturanga-session/pkg/sessiondto"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status int
	sessiondto.DomainError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chaturanga api error: status=%d code=%s: %s", e.Status, e.Code, e.Message)
}

// Client talks to a running server.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) ClientOption {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer.
func WithDial(dial func(addr string) (net.Conn, error)) ClientOption {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 70 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 70 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State(ctx context.Context) (*sessiondto.SessionState, error) {
	var st sessiondto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/state", nil, &st, true); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) Move(ctx context.Context, move string) (*sessiondto.MoveSummary, error) {
	var out sessiondto.MoveSummary
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/move", sessiondto.MoveRequest{Move: move}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Think(ctx context.Context) (*sessiondto.MoveSummary, error) {
	var out sessiondto.MoveSummary
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/think", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GoTo(ctx context.Context, index int) (*sessiondto.SessionState, error) {
	var st sessiondto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/goto", sessiondto.GoToRequest{Index: index}, &st, false); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) SetMode(ctx context.Context, req sessiondto.ModeRequest) (*sessiondto.SessionState, error) {
	var st sessiondto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/mode", req, &st, false); err != nil {
		return nil, err
	}
	return &st, nil
}

// ImportKifu uploads kifu text as-is.
func (c *Client) ImportKifu(ctx context.Context, text []byte) (*sessiondto.ImportResponse, error) {
	var out sessiondto.ImportResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/kifu", "text/plain; charset=utf-8", text, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExportKifu(ctx context.Context) (string, error) {
	var text string
	if err := c.do(ctx, fasthttp.MethodGet, "/kifu", "", nil, &text, true); err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) Share(ctx context.Context) (*sessiondto.ShareResponse, error) {
	var out sessiondto.ShareResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/kifu/share", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Load(ctx context.Context, code string) (*sessiondto.ImportResponse, error) {
	var out sessiondto.ImportResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/kifu/load", sessiondto.LoadRequest{Code: code}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	var payload []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = raw
	}
	return c.do(ctx, method, path, "application/json", payload, out, retry)
}

// do sends one request. A *string out receives the raw body; anything else
// is decoded as JSON.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	if body != nil {
		req.SetBody(body)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			apiErr := &APIError{Status: status}
			if json.Unmarshal(resp.Body(), &apiErr.DomainError) != nil {
				apiErr.Message = truncate(string(resp.Body()), 512)
			}
			if !apiErr.Retryable && !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
		} else {
			return decodeInto(resp.Body(), out)
		}
		if attempt == attempts {
			break
		}
		if err := c.sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeInto(body []byte, out any) error {
	switch v := out.(type) {
	case nil:
		return nil
	case *string:
		*v = string(body)
		return nil
	default:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
