package fluxclient

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/tsquery-go/fluxclient/query"
)

// Driver issues the query HTTP request and yields the raw response body.
// The default implementation is backed by *http.Client; callers may
// substitute their own to control transport policy (timeouts, TLS, proxy)
// without touching the parser (spec.md §4.5).
type Driver interface {
	ExecuteQuery(ctx context.Context, baseURL, org, token, fluxText string) (io.ReadCloser, error)
}

// httpDriver is the default [Driver], built on *http.Client.
type httpDriver struct {
	client       *http.Client
	maxErrorBody int
	userAgent    string

	outstanding int64
}

func newHTTPDriver(client *http.Client, maxErrorBody int, userAgent string) *httpDriver {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpDriver{client: client, maxErrorBody: maxErrorBody, userAgent: userAgent}
}

// Outstanding reports the number of requests currently in flight through
// this driver, for diagnostics and logging.
func (d *httpDriver) Outstanding() int64 {
	return atomic.LoadInt64(&d.outstanding)
}

func (d *httpDriver) ExecuteQuery(ctx context.Context, baseURL, org, token, fluxText string) (io.ReadCloser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &query.TransportError{Cause: err}
	}
	u.Path = joinPath(u.Path, "/api/v2/query")
	q := u.Query()
	q.Set("org", org)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(fluxText))
	if err != nil {
		return nil, &query.TransportError{Cause: err}
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Content-Type", "application/vnd.flux")
	req.Header.Set("Accept", "application/csv")
	req.Header.Set("Accept-Encoding", "gzip")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	atomic.AddInt64(&d.outstanding, 1)
	resp, err := d.client.Do(req)
	atomic.AddInt64(&d.outstanding, -1)
	if err != nil {
		return nil, &query.TransportError{Cause: err}
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := readCapped(resp.Body, d.maxErrorBody)
		return nil, &query.HTTPError{Status: resp.StatusCode, Body: body}
	}

	body := resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			body.Close()
			return nil, &query.TransportError{Cause: err}
		}
		return gzipReadCloser{Reader: gz, underlying: body}, nil
	}
	return body, nil
}

// gzipReadCloser closes both the gzip reader and the underlying response
// body it wraps.
type gzipReadCloser struct {
	*gzip.Reader
	underlying io.ReadCloser
}

func (g gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	bodyErr := g.underlying.Close()
	if gzErr != nil {
		return gzErr
	}
	return bodyErr
}

// readCapped reads at most limit bytes from r, draining and discarding the
// remainder so the underlying connection can be reused.
func readCapped(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = defaultMaxErrorBody
	}
	body, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	_, _ = io.Copy(io.Discard, r)
	return body, err
}

func joinPath(base, suffix string) string {
	switch {
	case base == "" || base == "/":
		return suffix
	case base[len(base)-1] == '/':
		return base + suffix[1:]
	default:
		return base + suffix
	}
}
