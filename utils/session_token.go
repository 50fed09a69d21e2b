package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const SessionTTL = 30 * 24 * time.Hour

type SessionClaims struct {
	UserID     string `json:"userId"`
	TelegramID string `json:"telegramId"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs an HS256 token valid for ttl from now.
func GenerateSessionToken(secret string, userID uuid.UUID, telegramID string, now time.Time, ttl time.Duration) (string, error) {
	claims := SessionClaims{
		UserID:     userID.String(),
		TelegramID: telegramID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionToken accepts the raw token or a "Bearer <token>" header value.
func ParseSessionToken(secret, tokenString string) (*SessionClaims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("token carries malformed user id: %w", err)
	}
	return claims, nil
}
