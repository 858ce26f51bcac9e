package apiclient

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"admin-console/internal/model"
	"admin-console/pkg/apierror"
)

// hop-by-hop headers are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy forwards /api/* requests from the dashboard to the backend through
// the client, so each one carries the administrator's token.
type Proxy struct {
	client  *Client
	backend *url.URL
	onError func(http.ResponseWriter, error)
}

// NewProxy forwards to backend. onError renders failures before the
// backend answered.
func NewProxy(client *Client, backend string, onError func(http.ResponseWriter, error)) (*Proxy, error) {
	target, err := url.Parse(strings.TrimRight(backend, "/"))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, errors.New("backend url must be absolute")
	}

	return &Proxy{client: client, backend: target, onError: onError}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out := r.Clone(r.Context())
	out.URL = &url.URL{
		Scheme:   p.backend.Scheme,
		Host:     p.backend.Host,
		Path:     p.backend.Path + r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
	out.Host = p.backend.Host
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	out.Header.Del("Cookie")

	resp, err := p.client.Do(out)
	if err != nil {
		slog.Warn("backend request failed", "path", r.URL.Path, "error", err)
		if errors.Is(err, model.ErrNotSignedIn) {
			p.onError(w, apierror.Unauthorized("Sign in to use the console API"))
			return
		}
		p.onError(w, apierror.New("BAD_GATEWAY", "Backend unavailable", "", http.StatusBadGateway))
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	for _, h := range hopHeaders {
		w.Header().Del(h)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("copying backend response aborted", "path", r.URL.Path, "error", err)
	}
}
