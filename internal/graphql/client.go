// Package graphql runs the dashboard's typed queries against the upstream
// GraphQL engine.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultPath is the GraphQL endpoint below the upstream base URL.
const DefaultPath = "/api/graphql-engine/v1/graphql"

var ErrUnauthorized = errors.New("authentication expired")

// Error is the first error reported in a GraphQL response.
type Error struct {
	Message string
	Count   int
}

func (e *Error) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("graphql: %s (and %d more)", e.Message, e.Count-1)
	}
	return "graphql: " + e.Message
}

// Client posts queries with a bearer token.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a client for baseURL + DefaultPath.
func NewClient(baseURL string, hc *http.Client) *Client {
	return NewClientForEndpoint(strings.TrimRight(baseURL, "/")+DefaultPath, hc)
}

func NewClientForEndpoint(endpoint string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{endpoint: endpoint, http: hc}
}

// Endpoint returns the URL queries are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Do executes query and decodes the data member into out.
func (c *Client) Do(ctx context.Context, token, query string, vars map[string]any, out any) error {
	if vars == nil {
		vars = map[string]any{}
	}
	payload, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("graphql request failed: status %d", resp.StatusCode)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(r.Errors) > 0 {
		msg := r.Errors[0].Message
		if msg == "" {
			msg = "query failed"
		}
		// Hasura reports an expired token as a GraphQL error with status 200.
		if strings.Contains(msg, "JWTExpired") || strings.Contains(msg, "Could not verify JWT") {
			return ErrUnauthorized
		}
		return &Error{Message: msg, Count: len(r.Errors)}
	}
	if out == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}
