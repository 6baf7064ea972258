package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402labs/devicegate/types"
)

var testSecret = []byte("test-secret-0123456789")

func codeOf(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	coded, ok := err.(*types.Error)
	require.True(t, ok, "expected coded error, got %T", err)
	return coded.Code
}

func TestIssueAndValidate(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Minute)

	token, claims, err := issuer.Issue("0xwallet", "X402-LOCK-001", "unlock", 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "X402-LOCK-001", claims.DeviceID())

	parsed, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "0xwallet", parsed.Subject)
	assert.Equal(t, "X402-LOCK-001", parsed.DeviceID())
	assert.Equal(t, "unlock", parsed.Scope)
	assert.NotEmpty(t, parsed.ID)
	assert.True(t, parsed.ExpiresAt.After(time.Now()))
}

func TestValidateExpired(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Minute)

	// Sign a claim set that expired a minute ago with the issuer's secret.
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0xwallet",
			Audience:  jwt.ClaimStrings{"X402-LOCK-001"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		},
		Scope:     "unlock",
		TokenType: "device:session",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.Equal(t, types.CodeCredentialExpired, codeOf(t, err))
}

func TestValidateRejectsWrongTokenType(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Minute)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0xwallet",
			Audience:  jwt.ClaimStrings{"X402-LOCK-001"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Scope:     "unlock",
		TokenType: "refresh",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.Equal(t, types.CodeUnauthorized, codeOf(t, err))
}

func TestValidateWrongSecret(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Minute)
	other := NewIssuer([]byte("different-secret"), time.Minute)

	token, _, err := issuer.Issue("0xwallet", "X402-LOCK-001", "unlock", 0)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Equal(t, types.CodeUnauthorized, codeOf(t, err))
}

func TestValidateTampered(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Minute)

	token, _, err := issuer.Issue("0xwallet", "X402-LOCK-001", "unlock", 0)
	require.NoError(t, err)

	_, err = issuer.Validate(token[:len(token)-2] + "xx")
	assert.Equal(t, types.CodeUnauthorized, codeOf(t, err))

	_, err = issuer.Validate("not-a-token")
	assert.Equal(t, types.CodeUnauthorized, codeOf(t, err))
}

func TestIssueDefaultTTL(t *testing.T) {
	issuer := NewIssuer(testSecret, 0)
	assert.Equal(t, DefaultTTL, issuer.defaultTTL)

	token, claims, err := issuer.Issue("0xwallet", "X402-LOCK-001", "unlock", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), claims.ExpiresAt.Time, 5*time.Second)
	require.NotEmpty(t, token)
}
