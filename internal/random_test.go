package internal

import (
	"encoding/base64"
	"testing"
)

func TestNewVerificationToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		tok, err := NewVerificationToken(32)
		if err != nil {
			t.Fatalf("NewVerificationToken error: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token is not base64url: %v", err)
		}
		if len(raw) != 32 {
			t.Fatalf("expected 32 raw bytes, got %d", len(raw))
		}
		if _, dup := seen[tok]; dup {
			t.Fatal("duplicate token generated")
		}
		seen[tok] = struct{}{}
	}

	if _, err := NewVerificationToken(0); err == nil {
		t.Fatal("expected zero size to be rejected")
	}
}
