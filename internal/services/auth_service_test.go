package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mermaid-studio/engine/internal/repository"
	"github.com/mermaid-studio/engine/internal/testutil"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
)

func newAuth(t *testing.T) AuthService {
	t.Helper()
	db := testutil.NewDB(t)
	return NewAuthService(repository.NewUserRepository(db), []byte("test-secret"), "Root@Example.com")
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	u, err := auth.Register(ctx, " Ada@Example.com ", "correct horse", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.IsAdmin)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	token, got, err := auth.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	p, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.False(t, p.IsAdmin)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	_, err := auth.Register(ctx, "ada@example.com", "pw", "Ada")
	require.NoError(t, err)
	_, err = auth.Register(ctx, "ADA@example.com", "pw", "Ada again")
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
}

func TestBootstrapAdminEmailGetsElevatedRole(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	u, err := auth.Register(ctx, "root@example.com", "pw", "Root")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)

	token, _, err := auth.Login(ctx, "root@example.com", "pw")
	require.NoError(t, err)
	p, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	_, err := auth.Register(ctx, "ada@example.com", "pw", "Ada")
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "ada@example.com", "wrong")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
	_, _, err = auth.Login(ctx, "nobody@example.com", "pw")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
}

func TestParseTokenRejectsForeignOrExpiredTokens(t *testing.T) {
	auth := newAuth(t)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = auth.ParseToken(foreign)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "6f1c1c52-8d7e-4c8e-9a55-2d1b8ad0c0a1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = auth.ParseToken(expired)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))

	_, err = auth.ParseToken("garbage")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
}
