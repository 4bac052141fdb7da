// Package auth covers the gateway's authentication surfaces: the client for
// the external auth service, the in-memory credential store, and local JWT
// validation for browser-facing routes.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"papertrade-gateway/internal/logging"
)

type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// Client talks to the external auth service and keeps the token store in
// sync with the outcome of each call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *TokenStore
	logger     *logging.Logger
}

func NewClient(cfg ClientConfig, store *TokenStore) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
		logger:     logging.Default().WithComponent("auth"),
	}
}

// Login authenticates against the auth service and stores the session.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	var session Session
	if err := c.post(ctx, "/api/auth/login", req, &session); err != nil {
		return nil, err
	}
	c.store.SetSession(session.AccessToken, session.User)
	c.logger.Info("login succeeded", "user_id", session.User.ID)
	return &session, nil
}

// Register creates an account and stores the resulting session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	var session Session
	if err := c.post(ctx, "/api/auth/register", req, &session); err != nil {
		return nil, err
	}
	c.store.SetSession(session.AccessToken, session.User)
	c.logger.Info("registration succeeded", "user_id", session.User.ID)
	return &session, nil
}

// FetchProfile re-validates the stored credential against the auth service.
// A 401 invalidates the local session.
func (c *Client) FetchProfile(ctx context.Context) (*User, error) {
	var user User
	err := c.request(ctx, http.MethodGet, "/api/auth/profile", nil, &user)
	if err != nil {
		if authErr, ok := err.(AuthError); ok && authErr.Status == http.StatusUnauthorized {
			c.logger.Warn("stored credential rejected, invalidating session")
			c.store.Invalidate()
		}
		return nil, err
	}
	c.store.SetUser(user)
	return &user, nil
}

// Logout notifies the auth service and drops the local session. The local
// session is cleared even when the remote call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.store.Invalidate()
	if err != nil {
		c.logger.Warn("remote logout failed, local session cleared anyway", "error", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.request(ctx, http.MethodPost, path, body, out)
}

func (c *Client) request(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.store.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrUpstreamDown
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError maps a non-2xx auth service response to an AuthError,
// preferring the service's own code and message when the body carries them.
func decodeError(resp *http.Response) error {
	var remote AuthError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if json.Unmarshal(body, &remote) == nil && remote.Code != "" {
		remote.Status = resp.StatusCode
		return remote
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusConflict:
		return ErrEmailExists
	default:
		return AuthError{
			Status:  resp.StatusCode,
			Code:    "AUTH_ERROR",
			Message: fmt.Sprintf("auth service returned HTTP %d", resp.StatusCode),
		}
	}
}
