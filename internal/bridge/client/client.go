// Package client is the bridge's HTTP client for the sync server: event
// delivery plus the device-authorization flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"specsync/internal/wire"
)

// Credentials supplies the current API key or bearer token per request, so
// a token minted mid-run is picked up without rebuilding the client.
type Credentials func() (apiKey, token string)

// Client talks to the sync server's HTTP API.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
}

// ErrAuthorizationPending is returned by ExchangeToken while the operator
// has not yet approved the device code.
var ErrAuthorizationPending = errors.New("authorization pending")

// New returns a client for the given server base URL.
func New(baseURL string, creds Credentials) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WSURL returns the WebSocket endpoint derived from the base URL.
func (c *Client) WSURL() string {
	u := c.baseURL + "/api/sync/bridge/ws"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// AuthHeader returns the header name and value for the current credential,
// or false when no credential is configured yet.
func (c *Client) AuthHeader() (name, value string, ok bool) {
	apiKey, token := c.creds()
	if apiKey != "" {
		return "x-api-key", apiKey, true
	}
	if token != "" {
		return "Authorization", "Bearer " + token, true
	}
	return "", "", false
}

// PostEvents delivers one ingest batch. A non-2xx response is an error so
// the caller queues the batch for redelivery.
func (c *Client) PostEvents(ctx context.Context, req wire.EventsRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/sync/events", req, nil)
}

// DeviceCodeGrant is the response to a device-code request.
type DeviceCodeGrant struct {
	DeviceCode      string `json:"deviceCode"`
	UserCode        string `json:"userCode"`
	VerificationURI string `json:"verificationUri"`
	ExpiresIn       int    `json:"expiresIn"`
	Interval        int    `json:"interval"`
}

// RequestDeviceCode starts the device-authorization flow.
func (c *Client) RequestDeviceCode(ctx context.Context) (DeviceCodeGrant, error) {
	var grant DeviceCodeGrant
	err := c.doJSON(ctx, http.MethodPost, "/api/sync/device/code", nil, &grant)
	return grant, err
}

// ExchangeToken polls the token endpoint with the device code. Returns
// ErrAuthorizationPending until the operator approves the user code.
func (c *Client) ExchangeToken(ctx context.Context, deviceCode string) (string, error) {
	body := map[string]string{"deviceCode": deviceCode}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sync/oauth/token", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &e) == nil && e.Error == "authorization_pending" {
			return "", ErrAuthorizationPending
		}
		return "", fmt.Errorf("token exchange: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	var tok struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(payload, &tok); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access token")
	}
	return tok.AccessToken, nil
}

// RequiresTLS reports whether the base URL uses plaintext HTTP against a
// non-local host.
func RequiresTLS(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	return host != "localhost" && host != "127.0.0.1" && host != "::1"
}

// doJSON sends one authenticated JSON request and decodes the response
// into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if name, value, ok := c.AuthHeader(); ok {
		req.Header.Set(name, value)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: server returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out)
}
