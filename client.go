package fluxclient

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/tsquery-go/fluxclient/query"
)

// Client binds a base URL, organization, token, and HTTP driver, and
// exposes the streaming-query operation (spec.md §4.6).
type Client struct {
	cfg    Config
	driver Driver
}

// NewClient validates cfg and constructs a Client. It performs no network
// I/O; a [ConfigError] is returned synchronously if cfg is structurally
// invalid (SPEC_FULL.md §7, scenario S9).
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver := cfg.Driver
	if driver == nil {
		driver = newHTTPDriver(nil, cfg.maxErrorBody(), cfg.userAgent())
	}
	return &Client{cfg: cfg, driver: driver}, nil
}

// QueryParams carries caller-supplied bind values for [Client.QueryWithParams].
// The client performs no Flux parsing or validation; binding only ever
// performs literal textual substitution of "${name}" placeholders with the
// Flux-quoted value, so callers remain responsible for the resulting
// query's correctness.
type QueryParams map[string]string

func (p QueryParams) bind(flux string) string {
	for name, value := range p {
		placeholder := "${" + name + "}"
		flux = strings.ReplaceAll(flux, placeholder, fluxQuote(value))
	}
	return flux
}

func fluxQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// QueryStream issues the query and returns the parsed stream lazily. The
// first error (request-build failure, HTTP >= 400) is returned eagerly,
// before any Records; once a non-nil *Stream is returned, errors from the
// body or the wire dialect surface from the stream's own iteration.
func (c *Client) QueryStream(ctx context.Context, flux string) (*Stream, error) {
	body, err := c.driver.ExecuteQuery(ctx, c.cfg.BaseURL, c.cfg.Org, c.cfg.Token, flux)
	if err != nil {
		return nil, err
	}
	parser := query.NewParser(body,
		query.WithMaxLineBytes(c.cfg.maxLineBytes()),
		query.WithLogger(c.cfg.Logger),
	)
	return &Stream{parser: parser, body: body}, nil
}

// QueryWithParams is QueryStream with bind-parameter substitution applied
// to flux before the request is issued (SPEC_FULL.md §4.6).
func (c *Client) QueryWithParams(ctx context.Context, flux string, params QueryParams) (*Stream, error) {
	return c.QueryStream(ctx, params.bind(flux))
}

// Query drains QueryStream into an owned slice. It is documented as
// memory-unsafe for large results (spec.md §4.6) and exists purely for
// convenience with small result sets.
func (c *Client) Query(ctx context.Context, flux string) ([]query.Record, error) {
	stream, err := c.QueryStream(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var records []query.Record
	for {
		rec, err, ok := stream.Next(ctx)
		if err != nil {
			return records, err
		}
		if !ok {
			return records, nil
		}
		records = append(records, rec)
	}
}

// Ping hits the server's health endpoint, a useful connection check before
// issuing a long streaming query (SPEC_FULL.md §4.6). It is not part of the
// substitutable Driver contract and always uses a direct *http.Client.
func (c *Client) Ping(ctx context.Context) error {
	healthURL := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return &query.TransportError{Cause: err}
	}
	req.Header.Set("Authorization", "Token "+c.cfg.Token)

	client := http.DefaultClient
	if hd, ok := c.driver.(*httpDriver); ok {
		client = hd.client
	}
	resp, err := client.Do(req)
	if err != nil {
		return &query.TransportError{Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := readCapped(resp.Body, c.cfg.maxErrorBody())
		return &query.HTTPError{Status: resp.StatusCode, Body: body}
	}
	return nil
}

// Stream is the lazy sequence of Records returned by [Client.QueryStream].
// It owns the underlying HTTP response body and must be closed once the
// caller is done, whether or not it was fully drained.
type Stream struct {
	parser *query.Parser
	body   io.Closer
	closed bool
}

// Next pulls the next Record, driving the parser state machine and, when
// its buffer is empty, the underlying HTTP response body.
func (s *Stream) Next(ctx context.Context) (query.Record, error, bool) {
	return s.parser.Next(ctx)
}

// Seq adapts the Stream into a range-over-func iterator.
func (s *Stream) Seq(ctx context.Context) query.RecordSeq {
	return s.parser.Stream(ctx)
}

// Close releases the underlying HTTP response body. It is safe to call more
// than once and is a no-op after the first call.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
