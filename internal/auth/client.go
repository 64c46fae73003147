package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const signinPath = "/api/auth/signin"

// Client signs in against the upstream platform.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// SignInURL is the upstream endpoint SignIn posts to.
func (c *Client) SignInURL() string { return c.baseURL + signinPath }

// SignIn exchanges identifier (login or e-mail) and secret for a session.
// The upstream answers with either a bare JSON string or {"token": "..."}.
func (c *Client) SignIn(ctx context.Context, identifier, secret string) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+signinPath, nil)
	if err != nil {
		return Session{}, fmt.Errorf("build signin request: %w", err)
	}
	req.SetBasicAuth(identifier, secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("signin: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Session{}, fmt.Errorf("read signin response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Session{}, ErrInvalidCredentials
	case resp.StatusCode >= 300:
		return Session{}, fmt.Errorf("signin: upstream status %d", resp.StatusCode)
	}

	token, err := decodeToken(body)
	if err != nil {
		return Session{}, err
	}
	return ParseSession(token)
}

func decodeToken(body []byte) (string, error) {
	var token string
	if err := json.Unmarshal(body, &token); err == nil && token != "" {
		return token, nil
	}
	var wrapped struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Token != "" {
		return wrapped.Token, nil
	}
	return "", fmt.Errorf("%w: no token in signin response", ErrInvalidToken)
}
