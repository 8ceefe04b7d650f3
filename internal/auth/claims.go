// Package auth reads the student identity carried by the exam bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-client/internal/config"
)

var (
	ErrNotStudent      = errors.New("token does not belong to a student")
	ErrNoActiveLogin   = errors.New("no active session")
	ErrLoginSuperseded = errors.New("session replaced by another login")
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims mirrors the claims the exam backend signs.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
	ClassID   int       `json:"class_id,omitempty"`
}

// ParseStudentToken decodes a student token. With an empty secret the
// signature is not checked; the backend remains the authority on it.
func ParseStudentToken(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
	} else {
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if !token.Valid {
			return nil, errors.New("invalid token claims")
		}
	}

	if claims.TokenType != TokenTypeStudent {
		return nil, ErrNotStudent
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

// VerifyActiveLogin checks that the token's JTI is still the student's active
// login in Redis. A student who logged in elsewhere gets ErrLoginSuperseded.
func VerifyActiveLogin(ctx context.Context, rdb *redis.Client, claims *Claims) error {
	stored, err := rdb.Get(ctx, config.CacheKey.StudentSessionKey(claims.UserID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoActiveLogin
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != claims.ID {
		return ErrLoginSuperseded
	}
	return nil
}
