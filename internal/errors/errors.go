package errors

import (
	"errors"
)

// Common error types for the session server
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidInput       = errors.New("invalid input")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenReused  = errors.New("refresh token reused")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("service unavailable")
)
