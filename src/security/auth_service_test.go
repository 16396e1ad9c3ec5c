package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters-long"

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(testSecret)

	token, err := svc.GenerateToken("user-1", time.Hour)
	require.NoError(t, err)

	subject, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService(testSecret).GenerateToken("user-1", time.Hour)
	require.NoError(t, err)

	_, err = NewAuthService("a-different-secret-also-long-enough").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewAuthService(testSecret)
	token, err := svc.GenerateToken("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := NewAuthService(testSecret).ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestContextIdentity(t *testing.T) {
	identity := ContextIdentity{}

	_, err := identity.CurrentUserID(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)

	ctx := WithUserID(context.Background(), "user-9")
	userID, err := identity.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)
}
