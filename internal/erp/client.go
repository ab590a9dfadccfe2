// Package erp is the typed client for the upstream ERP's REST endpoints.
//
// The upstream speaks Spanish field names and, depending on endpoint
// version, alternate names for the same field (ordenProduccionId vs
// ordenId). Every response is normalized to the canonical types in
// internal/dispense right here at the boundary; no other package ever
// sees a wire shape.
package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Errors returned by the ERP client.
var (
	ErrNotFound = errors.New("resource not found upstream")
	ErrUpstream = errors.New("upstream ERP error")
)

const defaultTimeout = 15 * time.Second

// Client calls the upstream ERP over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given ERP base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// getJSON issues a GET and decodes the 200 response into out.
// 404 maps to ErrNotFound, any other non-2xx to ErrUpstream.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrUpstream, path, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s", ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: GET %s returned %d", ErrUpstream, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: GET %s: decode: %v", ErrUpstream, path, err)
	}
	return nil
}

// firstInt64 returns the first non-zero value, for alternate-named id fields.
func firstInt64(vals ...int64) int64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// firstString returns the first non-empty value, for alternate-named fields.
func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseUpstreamTime accepts the two timestamp layouts the ERP is known to
// emit: RFC3339 and bare dates. Unparseable input yields the zero time.
func parseUpstreamTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
