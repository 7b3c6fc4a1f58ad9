package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/auth"
	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/testutil"
)

const testSecret = "test-secret-123"

func newAccounts(t *testing.T) *service.AccountService {
	t.Helper()

	issuer := auth.NewIssuer(configs.AuthConfig{JWTSecret: testSecret, Issuer: "sharevault", TokenTTL: time.Hour})

	return service.NewAccountServiceWith(testutil.NewDB(t), issuer, 4)
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	svc := newAccounts(t)
	ctx := context.Background()

	acc, token, err := svc.Register(ctx, service.RegisterInput{Username: "alice", Email: " Alice@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.Email)
	assert.NotEqual(t, "secret1", acc.PasswordHash)
	assert.NotEmpty(t, token)

	_, token, err = svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)

	who, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, who.ID)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, service.ErrAuth)
	assert.Equal(t, "Invalid credentials", service.Message(err))

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, service.ErrAuth)
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newAccounts(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, service.RegisterInput{Username: "alice", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	for _, in := range []service.RegisterInput{
		{Username: "alice", Email: "other@example.com", Password: "secret1"},
		{Username: "other", Email: "A@example.com", Password: "secret1"},
	} {
		_, _, err = svc.Register(ctx, in)
		require.ErrorIs(t, err, service.ErrConflict)
		assert.Equal(t, "User already exists", service.Message(err))
		assert.Equal(t, 400, service.KindOf(err).HTTPStatus())
	}
}

func TestAuthenticateFailures(t *testing.T) {
	svc := newAccounts(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, service.ErrAuth)
	assert.Equal(t, "Invalid token", service.Message(err))

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: "someone",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, signed)
	require.ErrorIs(t, err, service.ErrAuth)
	assert.Equal(t, "Token expired", service.Message(err))

	// 签名正确但用户不存在
	issuer := auth.NewIssuer(configs.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour})
	ghost, err := issuer.Issue("01GHOST")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, ghost)
	require.ErrorIs(t, err, service.ErrAuth)
	assert.Equal(t, "Invalid token", service.Message(err))
}

func TestProfileNotFound(t *testing.T) {
	svc := newAccounts(t)

	_, err := svc.Profile(context.Background(), "nope")
	assert.ErrorIs(t, err, service.ErrNotFound)
}
