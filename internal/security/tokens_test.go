package security

import (
	"strings"
	"testing"
)

func TestGenerateToken_IsUniqueAndOpaque(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	b, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if a == b {
		t.Error("two tokens are identical")
	}
	if len(a) != 48 {
		t.Errorf("token length = %d, want 48 hex chars", len(a))
	}
}

func TestGenerateUserCode_Shape(t *testing.T) {
	code, err := GenerateUserCode()
	if err != nil {
		t.Fatalf("GenerateUserCode: %v", err)
	}
	parts := strings.Split(code, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		t.Fatalf("user code = %q, want XXXX-XXXX", code)
	}
	for _, ch := range strings.ReplaceAll(code, "-", "") {
		if !strings.ContainsRune(userCodeAlphabet, ch) {
			t.Errorf("user code contains %q, outside the unambiguous alphabet", ch)
		}
	}
}

func TestHashToken_IsStable(t *testing.T) {
	h1 := HashToken("secret")
	h2 := HashToken("secret")
	if h1 != h2 {
		t.Error("same token hashes differently")
	}
	if h1 == HashToken("other") {
		t.Error("different tokens hash equal")
	}
	if !TokenHashEqual("secret", h1) {
		t.Error("TokenHashEqual = false for the matching token")
	}
	if TokenHashEqual("other", h1) {
		t.Error("TokenHashEqual = true for a different token")
	}
}

func TestAPIKeyVerifier_Plain(t *testing.T) {
	v := NewAPIKeyVerifier("topsecret", "")
	if !v.Verify("topsecret") {
		t.Error("correct key rejected")
	}
	if v.Verify("wrong") {
		t.Error("wrong key accepted")
	}
	if v.Verify("") {
		t.Error("empty key accepted")
	}
}

func TestAPIKeyVerifier_BcryptHashTakesPrecedence(t *testing.T) {
	hash, err := HashAPIKey("topsecret", 4)
	if err != nil {
		t.Fatalf("HashAPIKey: %v", err)
	}
	v := NewAPIKeyVerifier("ignored-plain", hash)
	if !v.Verify("topsecret") {
		t.Error("hashed key rejected")
	}
	if v.Verify("ignored-plain") {
		t.Error("plain key accepted despite configured hash")
	}
}

func TestAPIKeyVerifier_NoKeyConfigured(t *testing.T) {
	v := NewAPIKeyVerifier("", "")
	if v.Verify("anything") {
		t.Error("verifier with no key accepted a key")
	}
}
