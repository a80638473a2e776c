package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamtheme-io/streamtheme/internal/models"
)

const (
	// UserTokenTTL is how long a login token stays valid
	UserTokenTTL = 30 * 24 * time.Hour
	// AdminTokenTTL is how long an admin login stays valid
	AdminTokenTTL = 12 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// UserClaims are the JWT claims carried by a user login token
type UserClaims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AdminClaims are the JWT claims carried by an admin login token
type AdminClaims struct {
	AdminID  int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies JWTs
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a token manager with the given signing secret
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &TokenManager{secret: []byte(secret)}, nil
}

// GenerateUserToken issues a signed login token for a user
func (tm *TokenManager) GenerateUserToken(user *models.User) (string, error) {
	now := time.Now()
	claims := UserClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(UserTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// GenerateAdminToken issues a signed login token for an admin
func (tm *TokenManager) GenerateAdminToken(admin *models.Admin) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		AdminID:  admin.ID,
		Username: admin.Username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AdminTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseUserToken verifies a user token and returns its claims
func (tm *TokenManager) ParseUserToken(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAdminToken verifies an admin token and checks the role claim
func (tm *TokenManager) ParseAdminToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != "admin" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
