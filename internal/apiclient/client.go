// Package apiclient calls the commerce backend on behalf of the signed-in
// administrator.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"admin-console/internal/metrics"
)

// TokenSource mints the bearer token attached to each request.
type TokenSource interface {
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

type Client struct {
	http    *http.Client
	tokens  TokenSource
	metrics *metrics.Metrics
}

func New(tokens TokenSource, timeout time.Duration, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		metrics: m,
	}
}

// Do sends req with a freshly minted bearer token. A 401 is retried once
// with another forced token; the second response is returned as is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	body, err := buffer(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(req, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	c.metrics.IncRetry()
	slog.Debug("backend rejected token, retrying once", "method", req.Method, "url", req.URL.Redacted())

	return c.send(req, body)
}

func (c *Client) send(req *http.Request, body []byte) (*http.Response, error) {
	ctx := req.Context()

	token, err := c.tokens.Token(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("mint bearer token: %w", err)
	}

	out := req.Clone(ctx)
	out.RequestURI = ""
	out.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	resp, err := c.http.Do(out)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}

	c.metrics.ObserveAPIStatus(resp.StatusCode)
	return resp, nil
}

func buffer(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return body, nil
}
