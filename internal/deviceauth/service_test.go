package deviceauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"specsync/internal/apperr"
	"specsync/internal/deviceauth/repository"
)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(repository.NewMemoryTokenStore(), 15*time.Minute, 5*time.Second, 0, "http://localhost:8787/device")
	svc.nowF = func() time.Time { return now }
	return svc, &now
}

func TestService_RequestCode_ShapesGrant(t *testing.T) {
	svc, _ := newTestService(t)
	grant, err := svc.RequestCode(context.Background())
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if grant.DeviceCode == "" || grant.UserCode == "" {
		t.Fatal("grant is missing codes")
	}
	if len(grant.UserCode) != 9 || grant.UserCode[4] != '-' {
		t.Errorf("user code = %q, want XXXX-XXXX shape", grant.UserCode)
	}
	if grant.ExpiresIn != 900 {
		t.Errorf("expiresIn = %d, want 900", grant.ExpiresIn)
	}
	if grant.Interval != 5 {
		t.Errorf("interval = %d, want 5", grant.Interval)
	}
}

func TestService_Exchange_PendingUntilActivated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	grant, err := svc.RequestCode(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Exchange(ctx, grant.DeviceCode)
	if !errors.Is(err, apperr.ErrAuthorizationPending) {
		t.Fatalf("err = %v, want ErrAuthorizationPending", err)
	}

	if err := svc.Activate(ctx, grant.UserCode); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	token, err := svc.Exchange(ctx, grant.DeviceCode)
	if err != nil {
		t.Fatalf("Exchange after activate: %v", err)
	}
	if token == "" {
		t.Fatal("token is empty")
	}
	if !svc.ValidateToken(ctx, token) {
		t.Error("issued token does not validate")
	}
}

func TestService_Activate_IsCaseInsensitiveAndIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	grant, err := svc.RequestCode(ctx)
	if err != nil {
		t.Fatal(err)
	}

	lower := " " + grant.UserCode + " "
	if err := svc.Activate(ctx, lower); err != nil {
		t.Fatalf("Activate with padding: %v", err)
	}
	if err := svc.Activate(ctx, grant.UserCode); err != nil {
		t.Fatalf("repeat Activate: %v", err)
	}
	tok1, err := svc.Exchange(ctx, grant.DeviceCode)
	if err != nil {
		t.Fatal(err)
	}
	tok2, err := svc.Exchange(ctx, grant.DeviceCode)
	if err != nil {
		t.Fatal(err)
	}
	if tok1 != tok2 {
		t.Error("repeated exchange returned different tokens")
	}
}

func TestService_Activate_UnknownCode(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Activate(context.Background(), "ZZZZ-ZZZZ")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestService_ExpiredCode_IsRejectedPermanently(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()
	grant, err := svc.RequestCode(ctx)
	if err != nil {
		t.Fatal(err)
	}

	*now = now.Add(16 * time.Minute)
	if err := svc.Activate(ctx, grant.UserCode); !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("Activate err = %v, want ErrExpired", err)
	}
	if _, err := svc.Exchange(ctx, grant.DeviceCode); !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("Exchange err = %v, want ErrExpired", err)
	}
}

func TestService_ValidateToken_ExpiresWithTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(repository.NewMemoryTokenStore(), 15*time.Minute, 5*time.Second, time.Hour, "")
	svc.nowF = func() time.Time { return now }
	ctx := context.Background()

	grant, err := svc.RequestCode(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Activate(ctx, grant.UserCode); err != nil {
		t.Fatal(err)
	}
	token, err := svc.Exchange(ctx, grant.DeviceCode)
	if err != nil {
		t.Fatal(err)
	}
	if !svc.ValidateToken(ctx, token) {
		t.Fatal("fresh token does not validate")
	}

	now = now.Add(2 * time.Hour)
	if svc.ValidateToken(ctx, token) {
		t.Error("expired token validates")
	}
}

func TestService_ValidateToken_RejectsUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	if svc.ValidateToken(context.Background(), "not-a-token") {
		t.Error("unknown token validates")
	}
	if svc.ValidateToken(context.Background(), "") {
		t.Error("empty token validates")
	}
}
