// Package source fetches the upstream dataset and normalizes it into the
// fixed record shape the pipeline lands.
//
// The upstream contract is one unauthenticated HTTP GET returning a JSON
// array of entities; no pagination (single-page dataset).
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/strata-lake/strata/strata"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultEndpoint is the JSONPlaceholder users collection.
const DefaultEndpoint = "https://jsonplaceholder.typicode.com/users"

// DefaultTimeout bounds the upstream fetch. Fail fast rather than hang.
const DefaultTimeout = 20 * time.Second

// Fields is the fixed field list of the users record shape, in header
// order.
var Fields = []string{"id", "name", "username", "email", "phone", "website"}

// Client fetches full snapshots from one configured source endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a source client. Empty endpoint or zero timeout take the
// defaults.
func New(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the configured source URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch retrieves the full dataset in one request and normalizes every
// entity to the fixed field set. Any transport, status, or payload problem
// maps to strata.ErrSourceUnavailable; no partial result is ever returned.
func (c *Client) Fetch(ctx context.Context) ([]strata.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", strata.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", strata.ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", strata.ErrSourceUnavailable, resp.StatusCode, c.endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", strata.ErrSourceUnavailable, err)
	}

	var entities []map[string]any
	if err := json.Unmarshal(body, &entities); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", strata.ErrSourceUnavailable, err)
	}

	records := make([]strata.Record, 0, len(entities))
	for _, e := range entities {
		records = append(records, Normalize(e))
	}
	return records, nil
}

// Normalize flattens one source entity to the fixed field set. Absent
// fields default to nil rather than raising, so every row in a snapshot
// keeps an identical shape.
func Normalize(entity map[string]any) strata.Record {
	rec := make(strata.Record, len(Fields))
	for _, f := range Fields {
		rec[f] = entity[f]
	}
	return rec
}
