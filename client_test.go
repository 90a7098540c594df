package fluxclient

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsquery-go/fluxclient/query"
)

// fakeDriver hands back a fixed body, bypassing real HTTP for client-facade
// tests (the HTTP wire behavior itself is exercised in driver_test.go). It
// records the query text it was last asked to execute.
type fakeDriver struct {
	body    string
	err     error
	gotFlux string
}

func (f *fakeDriver) ExecuteQuery(ctx context.Context, baseURL, org, token, fluxText string) (io.ReadCloser, error) {
	f.gotFlux = fluxText
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func newTestClient(t *testing.T, driver Driver) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: "https://localhost:8086",
		Org:     "org",
		Token:   "token",
		Driver:  driver,
	})
	require.NoError(t, err)
	return c
}

func TestClientQueryDrainsAllRecords(t *testing.T) {
	body := "#datatype,long\n#group,false\n#default,\n,_value\n,1\n,2\n,3\n\n"

	c := newTestClient(t, &fakeDriver{body: body})
	records, err := c.Query(context.Background(), "from(bucket: \"x\")")
	require.NoError(t, err)
	require.Len(t, records, 3)

	v, ok := records[1].Long("_value")
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestClientQueryStreamSurfacesDriverError(t *testing.T) {
	wantErr := &query.HTTPError{Status: 401, Body: []byte("unauthorized")}
	c := newTestClient(t, &fakeDriver{err: wantErr})

	_, err := c.QueryStream(context.Background(), "from(bucket: \"x\")")
	require.Error(t, err)
	var httpErr *query.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 401, httpErr.Status)
}

func TestClientQueryWithParamsBindsAndQuotes(t *testing.T) {
	body := "#datatype,long\n#group,false\n#default,\n,_value\n,1\n\n"

	drv := &fakeDriver{body: body}
	c := newTestClient(t, drv)
	_, err := c.QueryWithParams(context.Background(), `from(bucket: ${bucket})`, QueryParams{"bucket": `my"bucket`})
	require.NoError(t, err)
	assert.Equal(t, `from(bucket: "my\"bucket")`, drv.gotFlux)
}

func TestQueryParamsBind(t *testing.T) {
	params := QueryParams{"name": `o"k`}
	got := params.bind(`filter(fn: (r) => r.x == ${name})`)
	assert.Equal(t, `filter(fn: (r) => r.x == "o\"k")`, got)
}

func TestClientQueryPropagatesStreamError(t *testing.T) {
	body := "#datatype,long\n#group,false\n#default,\n,_value\n,not-a-number\n"
	c := newTestClient(t, &fakeDriver{body: body})

	_, err := c.Query(context.Background(), "from(bucket: \"x\")")
	require.Error(t, err)
	var decodeErr *query.ValueDecodeError
	require.ErrorAs(t, err, &decodeErr)
}
