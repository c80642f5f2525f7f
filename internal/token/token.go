// Package token issues and validates the signed access and refresh tokens
// handed out after a successful login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrExpiredToken = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Service signs and decodes JWTs with a process-wide HS256 secret.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a token service.
// secret must be at least 32 bytes for HS256.
func NewService(secret []byte, accessTTL, refreshTTL time.Duration) *Service {
	if len(secret) < 32 {
		panic("jwt secret must be at least 32 bytes")
	}
	return &Service{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueAccess creates a short-lived access token for subject. Extra claims
// (e.g. role) are merged into the payload.
func (s *Service) IssueAccess(subject string, extra map[string]any) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return str, nil
}

// IssueRefresh creates a long-lived refresh token for subject. The typ claim
// keeps refresh tokens from passing as access tokens and vice versa.
func (s *Service) IssueRefresh(subject string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(s.refreshTTL).Unix(),
		"typ": "refresh",
		"jti": uuid.NewString(),
	}

	str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return str, nil
}

// Decode verifies the signature and expiry of a token and returns its claims.
// Expired tokens fail with ErrExpiredToken, everything else malformed or
// tampered fails with ErrInvalidToken so callers can tell the two apart.
func (s *Service) Decode(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DecodeRefresh decodes a token and requires it to be a refresh token.
func (s *Service) DecodeRefresh(tokenStr string) (jwt.MapClaims, error) {
	claims, err := s.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
