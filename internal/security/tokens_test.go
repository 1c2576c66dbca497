package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	c, err := NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	for _, typ := range []TokenType{TokenTypeAccess, TokenTypeRefresh} {
		t.Run(string(typ), func(t *testing.T) {
			token, jti, exp, err := c.Issue("u1", "device-a", typ, 15*time.Minute)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if token == "" || jti == "" {
				t.Fatal("token or jti empty")
			}
			if !exp.After(time.Now()) {
				t.Fatal("expires at in the past")
			}
			got, err := c.Verify(token, typ)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if got.Subject != "u1" || got.DeviceID != "device-a" || got.JTI != jti || got.Type != typ {
				t.Errorf("Verify: got %+v", got)
			}
			if !got.ExpiresAt.Equal(exp) {
				t.Errorf("ExpiresAt = %v, want %v (as issued)", got.ExpiresAt, exp)
			}
		})
	}
}

func TestTokenCodec_JTIUnique(t *testing.T) {
	c, _ := NewTestTokenCodec()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		typ := TokenTypeAccess
		if i%2 == 1 {
			typ = TokenTypeRefresh
		}
		_, jti, _, err := c.Issue("u1", "d1", typ, time.Minute)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if seen[jti] {
			t.Fatalf("jti %q issued twice", jti)
		}
		seen[jti] = true
	}
}

func TestTokenCodec_CrossTypeRejected(t *testing.T) {
	c, _ := NewTestTokenCodec()
	access, _, _, _ := c.Issue("u1", "d1", TokenTypeAccess, time.Minute)
	refresh, _, _, _ := c.Issue("u1", "d1", TokenTypeRefresh, time.Hour)

	if _, err := c.Verify(refresh, TokenTypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("refresh as access: err = %v, want ErrWrongTokenType", err)
	}
	if _, err := c.Verify(access, TokenTypeRefresh); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("access as refresh: err = %v, want ErrWrongTokenType", err)
	}
}

func TestTokenCodec_ExpiryBoundary(t *testing.T) {
	base, _ := NewTestTokenCodec()
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, _, exp, err := base.WithClock(fixedClock(issuedAt)).Issue("u1", "d1", TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(issuedAt.Add(time.Hour)) {
		t.Fatalf("exp = %v, want %v", exp, issuedAt.Add(time.Hour))
	}

	if _, err := base.WithClock(fixedClock(exp.Add(-time.Millisecond))).Verify(token, TokenTypeRefresh); err != nil {
		t.Errorf("1ms before expiry: %v", err)
	}
	if _, err := base.WithClock(fixedClock(exp)).Verify(token, TokenTypeRefresh); !errors.Is(err, ErrExpired) {
		t.Errorf("at expiry: err = %v, want ErrExpired", err)
	}
	if _, err := base.WithClock(fixedClock(exp.Add(time.Second))).Verify(token, TokenTypeRefresh); !errors.Is(err, ErrExpired) {
		t.Errorf("after expiry: err = %v, want ErrExpired", err)
	}
}

func TestTokenCodec_BadSignature(t *testing.T) {
	c, _ := NewTestTokenCodec()
	other, err := NewTokenCodec([]byte("another-access-secret-xx"), []byte("another-refresh-secret-xx"), "test-issuer", "test-audience")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	forged, _, _, _ := other.Issue("u1", "d1", TokenTypeAccess, time.Minute)
	if _, err := c.Verify(forged, TokenTypeAccess); !errors.Is(err, ErrBadSignature) {
		t.Errorf("forged: err = %v, want ErrBadSignature", err)
	}

	token, _, _, _ := c.Issue("u1", "d1", TokenTypeAccess, time.Minute)
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := c.Verify(tampered, TokenTypeAccess); !errors.Is(err, ErrBadSignature) {
		t.Errorf("tampered: err = %v, want ErrBadSignature", err)
	}
}

func TestTokenCodec_NoneAlgRejected(t *testing.T) {
	c, _ := NewTestTokenCodec()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   "u1",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("alg none: err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenCodec_Malformed(t *testing.T) {
	c, _ := NewTestTokenCodec()
	for _, raw := range []string{"", "invalid-token", "a.b.c"} {
		_, err := c.Verify(raw, TokenTypeAccess)
		if !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q) err = %v, want ErrMalformedToken", raw, err)
		}
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) err should wrap ErrInvalidToken", raw)
		}
	}
}

func TestTokenCodec_IssuerMismatch(t *testing.T) {
	c, _ := NewTestTokenCodec()
	other, _ := NewTokenCodec([]byte(testAccessSecret), []byte(testRefreshSecret), "other-issuer", "test-audience")
	token, _, _, _ := other.Issue("u1", "d1", TokenTypeAccess, time.Minute)
	if _, err := c.Verify(token, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("issuer mismatch: err = %v, want ErrInvalidToken", err)
	}
}

func TestNewTokenCodec_RejectsSharedSecret(t *testing.T) {
	if _, err := NewTokenCodec([]byte("same-secret-value"), []byte("same-secret-value"), "i", "a"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("shared secret: err = %v, want ErrInvalidKey", err)
	}
	if _, err := NewTokenCodec(nil, []byte("x"), "i", "a"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("empty secret: err = %v, want ErrInvalidKey", err)
	}
}
