// Package session mints and validates the signed, expiring,
// device-scoped bearer credentials that authorize device commands after
// a verified payment.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/x402labs/devicegate/types"
)

const (
	// DefaultTTL is the session lifetime when the caller does not
	// specify one.
	DefaultTTL = 30 * time.Minute

	// tokenType marks credentials minted by this issuer; anything else
	// presented here is rejected as WrongType.
	tokenType = "device:session"
)

// Claims is the claim set of a session credential. The device the
// credential is scoped to rides in the registered Audience claim; the
// wallet in Subject. The signature covers all of it.
type Claims struct {
	jwt.RegisteredClaims
	Scope     string `json:"scope"`
	TokenType string `json:"typ"`
}

// DeviceID returns the device the credential is scoped to.
func (c *Claims) DeviceID() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// Issuer signs session credentials with a server-held symmetric secret
// (HS256). There is no revocation beyond expiry.
type Issuer struct {
	secret     []byte
	defaultTTL time.Duration
}

// NewIssuer creates an issuer. A non-positive ttl falls back to DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, defaultTTL: ttl}
}

// Issue mints a credential for wallet scoped to deviceID. Timestamps are
// embedded as absolute instants. A non-positive ttl uses the issuer
// default.
func (i *Issuer) Issue(wallet, deviceID, scope string, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			Audience:  jwt.ClaimStrings{deviceID},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Scope:     scope,
		TokenType: tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, types.E(types.CodeExternalFailure, "credential signing failed: %v", err)
	}
	return signed, claims, nil
}

// Validate checks signature and expiry and returns the claims. The
// audience-vs-device check belongs to the caller gating the command, not
// to the issuer.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.E(types.CodeCredentialExpired, "credential expired")
		}
		return nil, types.E(types.CodeUnauthorized, "invalid credential")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, types.E(types.CodeUnauthorized, "invalid credential")
	}
	if claims.TokenType != tokenType {
		return nil, types.E(types.CodeUnauthorized, "wrong credential type")
	}
	return claims, nil
}

func (i *Issuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return i.secret, nil
}
