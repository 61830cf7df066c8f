package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/umar/forum-livechat/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the identity token issued by the forum's login endpoint.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: c.UserID, Name: c.Username, Avatar: c.Avatar}
}

// GenerateToken signs an HS256 token for who. The forum's login endpoint mints
// the real ones; this is used by the token command and tests.
func GenerateToken(who models.Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   who.ID,
		Username: who.Name,
		Avatar:   who.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
