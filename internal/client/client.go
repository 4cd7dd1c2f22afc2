// Package client is the HTTP client of the account API together with the
// local session file and the terminal prompts used by cmd/client.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// User mirrors the server's user JSON.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Token        string `json:"token"`
	Status       string `json:"status"`
	CreationDate string `json:"creationDate"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the account API at BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client for baseURL. When caFile is set, the server
// certificate is verified against it.
func New(baseURL, caFile string) (*Client, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12},
		}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}, nil
}

// Register creates an account and returns it with its initial token.
func (c *Client) Register(ctx context.Context, name, username, password string) (*User, error) {
	var u User
	body := map[string]string{"name": name, "username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users", "", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and returns the user with a fresh token.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var u User
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the session of token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/logout", token, nil, nil)
}

// ChangePassword sets a new password. The server ends the session.
func (c *Client) ChangePassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"newPassword": newPassword}
	return c.do(ctx, http.MethodPut, "/api/users/password", token, body, nil)
}

// ListUsers returns every registered user.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/api/users", "", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
