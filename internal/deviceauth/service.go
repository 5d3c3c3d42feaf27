// Package deviceauth implements the device-code flow a headless bridge uses
// to obtain a bearer token: request a code pair, a human activates the user
// code out-of-band, the bridge polls exchange until the token is issued.
//
// States: Requested → Approved → Exchanged (terminal), or Requested →
// Expired (terminal via TTL). Expiry is checked at activate/exchange time;
// there is no background sweep.
package deviceauth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"specsync/internal/apperr"
	"specsync/internal/deviceauth/repository"
	"specsync/internal/security"
)

// record tracks one device-code request. Mutated only under Service.mu.
type record struct {
	deviceCode string
	userCode   string // normalized upper-case
	expiresAt  time.Time
	approved   bool
	token      string // raw token, set on activate, handed out once approved
}

// Grant is the response to a code request.
type Grant struct {
	DeviceCode      string `json:"deviceCode"`
	UserCode        string `json:"userCode"`
	VerificationURI string `json:"verificationUri"`
	ExpiresIn       int    `json:"expiresIn"`
	Interval        int    `json:"interval"`
}

// Service issues device/user codes and the tokens they exchange into.
type Service struct {
	mu         sync.Mutex
	byDevice   map[string]*record
	byUserCode map[string]*record

	tokens          repository.TokenStore
	ttl             time.Duration
	interval        time.Duration
	tokenTTL        time.Duration // 0 = tokens never expire
	verificationURI string
	nowF            func() time.Time
}

// NewService returns a device-auth service. codeTTL bounds how long an
// unactivated code lives; interval is the poll interval handed to clients;
// tokenTTL of zero issues non-expiring tokens.
func NewService(tokens repository.TokenStore, codeTTL, interval, tokenTTL time.Duration, verificationURI string) *Service {
	return &Service{
		byDevice:        make(map[string]*record),
		byUserCode:      make(map[string]*record),
		tokens:          tokens,
		ttl:             codeTTL,
		interval:        interval,
		tokenTTL:        tokenTTL,
		verificationURI: verificationURI,
		nowF:            func() time.Time { return time.Now().UTC() },
	}
}

// RequestCode mints a new device/user code pair.
func (s *Service) RequestCode(ctx context.Context) (*Grant, error) {
	deviceCode, err := security.GenerateDeviceCode()
	if err != nil {
		return nil, err
	}
	userCode, err := security.GenerateUserCode()
	if err != nil {
		return nil, err
	}
	rec := &record{
		deviceCode: deviceCode,
		userCode:   strings.ToUpper(userCode),
		expiresAt:  s.nowF().Add(s.ttl),
	}
	s.mu.Lock()
	s.byDevice[deviceCode] = rec
	s.byUserCode[rec.userCode] = rec
	s.mu.Unlock()
	return &Grant{
		DeviceCode:      deviceCode,
		UserCode:        userCode,
		VerificationURI: s.verificationURI,
		ExpiresIn:       int(s.ttl.Seconds()),
		Interval:        int(s.interval.Seconds()),
	}, nil
}

// Activate approves the request identified by the user code
// (case-insensitive), mints the token, and stores it in the token table.
// Idempotent on repeat; rejects expired codes permanently.
func (s *Service) Activate(ctx context.Context, userCode string) error {
	normalized := strings.ToUpper(strings.TrimSpace(userCode))

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byUserCode[normalized]
	if !ok {
		return fmt.Errorf("user code: %w", apperr.ErrNotFound)
	}
	if s.nowF().After(rec.expiresAt) {
		return fmt.Errorf("user code: %w", apperr.ErrExpired)
	}
	if rec.approved {
		return nil
	}
	token, err := security.GenerateToken()
	if err != nil {
		return err
	}
	t := &repository.Token{Hash: security.HashToken(token), IssuedAt: s.nowF()}
	if s.tokenTTL > 0 {
		exp := s.nowF().Add(s.tokenTTL)
		t.ExpiresAt = &exp
	}
	if err := s.tokens.Put(ctx, t); err != nil {
		return err
	}
	rec.token = token
	rec.approved = true
	return nil
}

// Exchange returns the token once the request is approved. While
// unapproved it returns ErrAuthorizationPending, which callers treat
// as a poll signal rather than a failure. Expired codes are rejected
// permanently.
func (s *Service) Exchange(ctx context.Context, deviceCode string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byDevice[deviceCode]
	if !ok {
		return "", fmt.Errorf("device code: %w", apperr.ErrNotFound)
	}
	if !rec.approved && s.nowF().After(rec.expiresAt) {
		return "", fmt.Errorf("device code: %w", apperr.ErrExpired)
	}
	if !rec.approved {
		return "", apperr.ErrAuthorizationPending
	}
	return rec.token, nil
}

// ValidateToken reports whether the bearer token is present in the token
// table and unexpired. This table membership is the whole trust boundary.
func (s *Service) ValidateToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	t, err := s.tokens.Get(ctx, security.HashToken(token))
	if err != nil || t == nil {
		return false
	}
	if t.ExpiresAt != nil && s.nowF().After(*t.ExpiresAt) {
		return false
	}
	return true
}
