package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestSignVerifyRoundTripHS256(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Sign("acct-1", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("expected subject acct-1, got %q", claims.Subject)
	}
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != 30*24*time.Hour {
		t.Fatalf("expected 30 day lifetime, got %v", lifetime)
	}
}

func TestSignRejectsEmptySubjectAndTTL(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("secret")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Sign("", time.Minute); err != ErrEmptySubject {
		t.Fatalf("expected ErrEmptySubject, got %v", err)
	}
	if _, err := m.Sign("acct", 0); err != ErrInvalidTTL {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "acct", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestVerifyRejectsMissingSubjectAndExpiry(t *testing.T) {
	secret := []byte("secret-secret-secret-secret")
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: secret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	noSub := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	signed, _ := noSub.SignedString(secret)
	if _, err := m.Verify(signed); err == nil {
		t.Fatal("expected token without subject to fail")
	}

	noExp := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "acct"}})
	signed, _ = noExp.SignedString(secret)
	if _, err := m.Verify(signed); err == nil {
		t.Fatal("expected token without expiry to fail")
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "goaccounts",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Sign("u", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(c gjwt.RegisteredClaims) string {
		c.Subject = "u"
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: c}).SignedString(priv)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return s
	}

	badIssuer := sign(gjwt.RegisteredClaims{
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	})
	if _, err := m.Verify(badIssuer); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	badAudience := sign(gjwt.RegisteredClaims{
		Issuer:    "goaccounts",
		Audience:  gjwt.ClaimStrings{"other-api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	})
	if _, err := m.Verify(badAudience); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	within := sign(gjwt.RegisteredClaims{
		Issuer:    "goaccounts",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	if _, err := m.Verify(within); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := sign(gjwt.RegisteredClaims{
		Issuer:    "goaccounts",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-3 * time.Minute)),
	})
	if _, err := m.Verify(expired); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "acct", ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Verify(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, err := m.Sign("acct", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Verify(good); err == nil {
		t.Fatal("expected verify failure with mismatched key set")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{SigningMethod: MethodHS256},
		{SigningMethod: "rs256", PrivateKey: []byte("x")},
		{SigningMethod: MethodEd25519},
		{SigningMethod: MethodHS256, PrivateKey: []byte("x"), Leeway: 5 * time.Minute},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config to be rejected", i)
		}
	}
}
