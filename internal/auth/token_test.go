package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamtheme-io/streamtheme/internal/models"
)

func TestNewTokenManagerRejectsEmptySecret(t *testing.T) {
	_, err := NewTokenManager("")
	assert.Error(t, err)

	tm, err := NewTokenManager("test-secret")
	assert.NoError(t, err)
	assert.NotNil(t, tm)
}

func TestUserTokenRoundTrip(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	user := &models.User{ID: 42, Email: "streamer@example.com"}

	token, err := tm.GenerateUserToken(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := tm.ParseUserToken(token)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "streamer@example.com", claims.Email)
}

func TestAdminTokenRoundTrip(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	admin := &models.Admin{ID: 1, Username: "admin"}

	token, err := tm.GenerateAdminToken(admin)
	assert.NoError(t, err)

	claims, err := tm.ParseAdminToken(token)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), claims.AdminID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestUserTokenRejectedAsAdmin(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	user := &models.User{ID: 42, Email: "streamer@example.com"}

	token, err := tm.GenerateUserToken(user)
	assert.NoError(t, err)

	// Missing role claim
	_, err = tm.ParseAdminToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectedWithWrongSecret(t *testing.T) {
	tm1, _ := NewTokenManager("secret-one")
	tm2, _ := NewTokenManager("secret-two")

	token, err := tm1.GenerateUserToken(&models.User{ID: 7, Email: "a@b.com"})
	assert.NoError(t, err)

	_, err = tm2.ParseUserToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGarbageTokenRejected(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")

	_, err := tm.ParseUserToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ParseAdminToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
