package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the signed typ claim that separates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrInvalidToken is the parent of every verification failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMalformedToken is returned when the token cannot be parsed or lacks required claims.
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidToken)
	// ErrBadSignature is returned when the signature or signing method does not match.
	ErrBadSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	// ErrExpired is returned when exp is at or before the codec clock.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	// ErrWrongTokenType is returned when typ differs from the expected type.
	ErrWrongTokenType = fmt.Errorf("%w: wrong token type", ErrInvalidToken)
)

// TokenClaims is the signed payload of both token types.
type TokenClaims struct {
	jwt.RegisteredClaims
	Type     TokenType `json:"typ"`
	DeviceID string    `json:"deviceId"`
}

// VerifiedToken is what Verify returns for a valid token.
type VerifiedToken struct {
	Subject   string
	JTI       string
	DeviceID  string
	Type      TokenType
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256 JWTs. Access and refresh tokens use distinct secrets.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	now           func() time.Time
}

// NewTokenCodec returns a TokenCodec. The two secrets must be non-empty and different.
// issuer and audience are set on claims and validated on verify.
func NewTokenCodec(accessSecret, refreshSecret []byte, issuer, audience string) (*TokenCodec, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, ErrInvalidKey
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, fmt.Errorf("%w: access and refresh secrets must differ", ErrInvalidKey)
	}
	return &TokenCodec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		audience:      audience,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads time from now. Used by tests and by
// callers that share one clock between the codec and persisted expiry checks.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// Issue signs a token of the given type for subject and deviceID that expires after ttl.
// Returns the raw token, its jti, and the expiry exactly as encoded in the exp claim.
func (c *TokenCodec) Issue(subject, deviceID string, typ TokenType, ttl time.Duration) (token, jti string, expiresAt time.Time, err error) {
	secret, err := c.secretFor(typ)
	if err != nil {
		return "", "", time.Time{}, err
	}
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := c.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
		Type:     typ,
		DeviceID: deviceID,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, exp.Time.UTC(), nil
}

// Verify parses token, checks typ against expected, then checks signature, exp, iss and aud.
// The typ check runs in the key func, before the signature, so a refresh token presented as an
// access token reports ErrWrongTokenType rather than ErrBadSignature.
func (c *TokenCodec) Verify(tokenString string, expected TokenType) (*VerifiedToken, error) {
	secret, err := c.secretFor(expected)
	if err != nil {
		return nil, err
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	claims := &TokenClaims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		tc, ok := t.Claims.(*TokenClaims)
		if !ok {
			return nil, ErrMalformedToken
		}
		if tc.Type != expected {
			return nil, ErrWrongTokenType
		}
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	return &VerifiedToken{
		Subject:   claims.Subject,
		JTI:       claims.ID,
		DeviceID:  claims.DeviceID,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *TokenCodec) secretFor(typ TokenType) ([]byte, error) {
	switch typ {
	case TokenTypeAccess:
		return c.accessSecret, nil
	case TokenTypeRefresh:
		return c.refreshSecret, nil
	default:
		return nil, ErrWrongTokenType
	}
}

// classify maps jwt errors onto the codec's error set.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrWrongTokenType):
		return ErrWrongTokenType
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return ErrMalformedToken
	}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
