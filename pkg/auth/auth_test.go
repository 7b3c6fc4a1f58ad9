package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
)

func newTestIssuer() *Issuer {
	return NewIssuer(configs.AuthConfig{JWTSecret: "test-secret-for-auth", Issuer: "sharevault", TokenTTL: time.Hour})
}

func TestIssueAndVerify(t *testing.T) {
	iss := newTestIssuer()

	token, err := iss.Issue("01HZX")
	require.NoError(t, err)

	uid, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "01HZX", uid)
}

func TestVerifyExpired(t *testing.T) {
	iss := newTestIssuer()
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := iss.Issue("u1")
	require.NoError(t, err)

	iss.now = time.Now

	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := newTestIssuer().Issue("u1")
	require.NoError(t, err)

	other := NewIssuer(configs.AuthConfig{JWTSecret: "another-secret", TokenTTL: time.Hour})
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbageAndAlgNone(t *testing.T) {
	iss := newTestIssuer()

	_, err := iss.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Verify(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyMissingUserID(t *testing.T) {
	iss := newTestIssuer()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(iss.secret)
	require.NoError(t, err)

	_, err = iss.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDefaultTTL(t *testing.T) {
	iss := NewIssuer(configs.AuthConfig{JWTSecret: "x"})
	assert.Equal(t, 7*24*time.Hour, iss.TTL())
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("secret1", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	ok, err := CheckPassword(hash, "secret1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "secret1")
	assert.Error(t, err)
}
