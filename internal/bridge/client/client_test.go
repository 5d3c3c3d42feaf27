package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"specsync/internal/wire"
)

func TestWSURL_DerivesSchemeFromBase(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8787", "ws://localhost:8787/api/sync/bridge/ws"},
		{"https://sync.example.com", "wss://sync.example.com/api/sync/bridge/ws"},
		{"https://sync.example.com/", "wss://sync.example.com/api/sync/bridge/ws"},
	}
	for _, tt := range tests {
		c := New(tt.base, func() (string, string) { return "", "" })
		if got := c.WSURL(); got != tt.want {
			t.Errorf("WSURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestAuthHeader_PrefersAPIKey(t *testing.T) {
	c := New("http://localhost", func() (string, string) { return "key-1", "tok-1" })
	name, value, ok := c.AuthHeader()
	if !ok || name != "x-api-key" || value != "key-1" {
		t.Errorf("AuthHeader = %q %q %v, want x-api-key key-1", name, value, ok)
	}

	c = New("http://localhost", func() (string, string) { return "", "tok-1" })
	name, value, ok = c.AuthHeader()
	if !ok || name != "Authorization" || value != "Bearer tok-1" {
		t.Errorf("AuthHeader = %q %q %v, want bearer", name, value, ok)
	}

	c = New("http://localhost", func() (string, string) { return "", "" })
	if _, _, ok := c.AuthHeader(); ok {
		t.Error("AuthHeader ok with no credential")
	}
}

func TestExchangeToken_PendingThenIssued(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "authorization_pending"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-xyz", "tokenType": "Bearer"})
	}))
	defer ts.Close()

	c := New(ts.URL, func() (string, string) { return "", "" })
	_, err := c.ExchangeToken(context.Background(), "dev-code")
	if !errors.Is(err, ErrAuthorizationPending) {
		t.Fatalf("first exchange err = %v, want ErrAuthorizationPending", err)
	}
	token, err := c.ExchangeToken(context.Background(), "dev-code")
	if err != nil {
		t.Fatalf("second exchange: %v", err)
	}
	if token != "tok-xyz" {
		t.Errorf("token = %q, want tok-xyz", token)
	}
}

func TestExchangeToken_HardFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer ts.Close()

	c := New(ts.URL, func() (string, string) { return "", "" })
	_, err := c.ExchangeToken(context.Background(), "dev-code")
	if err == nil || errors.Is(err, ErrAuthorizationPending) {
		t.Fatalf("err = %v, want hard failure", err)
	}
}

func TestRequiresTLS(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://localhost:8787", false},
		{"http://127.0.0.1:8787", false},
		{"https://sync.example.com", false},
		{"http://sync.example.com", true},
	}
	for _, tt := range tests {
		if got := RequiresTLS(tt.url); got != tt.want {
			t.Errorf("RequiresTLS(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestPostEvents_SendsCredential(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()

	c := New(ts.URL, func() (string, string) { return "key-1", "" })
	req := wire.EventsRequest{MachineID: "m1", ProjectID: "p1", Events: []wire.Event{{Type: wire.EventHeartbeat}}}
	if err := c.PostEvents(context.Background(), req); err != nil {
		t.Fatalf("PostEvents: %v", err)
	}
	if gotKey != "key-1" {
		t.Errorf("x-api-key = %q, want key-1", gotKey)
	}
}
