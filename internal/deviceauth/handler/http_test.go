package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"specsync/internal/deviceauth"
	deviceauthhandler "specsync/internal/deviceauth/handler"
	"specsync/internal/deviceauth/repository"
)

func newDeviceServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := deviceauth.NewService(repository.NewMemoryTokenStore(), 15*time.Minute, 5*time.Second, 0, "http://localhost/device")
	h := deviceauthhandler.New(svc)
	r := chi.NewRouter()
	r.Post("/api/sync/device/code", h.Code)
	r.Post("/api/sync/device/activate", h.Activate)
	r.Post("/api/sync/oauth/token", h.Token)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestDeviceFlow_EndToEnd(t *testing.T) {
	ts := newDeviceServer(t)

	resp := postJSON(t, ts.URL+"/api/sync/device/code", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code status = %d, want 200", resp.StatusCode)
	}
	var grant struct {
		DeviceCode string `json:"deviceCode"`
		UserCode   string `json:"userCode"`
		Interval   int    `json:"interval"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		t.Fatal(err)
	}
	if grant.DeviceCode == "" || grant.UserCode == "" {
		t.Fatal("grant missing codes")
	}

	// Polling before activation signals pending, not failure.
	resp = postJSON(t, ts.URL+"/api/sync/oauth/token", map[string]string{"deviceCode": grant.DeviceCode})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("token status = %d, want 400 while pending", resp.StatusCode)
	}
	var pending struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		t.Fatal(err)
	}
	if pending.Error != "authorization_pending" {
		t.Fatalf("error = %q, want authorization_pending", pending.Error)
	}

	resp = postJSON(t, ts.URL+"/api/sync/device/activate", map[string]string{"userCode": grant.UserCode})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d, want 200", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/sync/oauth/token", map[string]string{"deviceCode": grant.DeviceCode})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status = %d, want 200 after activation", resp.StatusCode)
	}
	var tok struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken == "" || tok.TokenType != "Bearer" {
		t.Errorf("token response = %+v", tok)
	}
}

func TestToken_MissingDeviceCode(t *testing.T) {
	ts := newDeviceServer(t)
	resp := postJSON(t, ts.URL+"/api/sync/oauth/token", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestActivate_UnknownUserCode(t *testing.T) {
	ts := newDeviceServer(t)
	resp := postJSON(t, ts.URL+"/api/sync/device/activate", map[string]string{"userCode": "ZZZZ-ZZZZ"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
