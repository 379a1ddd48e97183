// Package auth defines the session types shared between the passwordless
// provider and its consumers: the session itself, token-expiry parsing, and the
// request error every failed auth service call surfaces as.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bandroomhq/bandroom/internal/db/models"
)

// Session is the authenticated session issued by the auth service
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user,omitempty"`
}

// Expired reports whether the access token has passed its expiry. Sessions
// with no known expiry are treated as live; the auth service will reject them
// if they are not.
func (s *Session) Expired() bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.ExpiresAt)
}

// RequestError is returned for every failed call to the auth service: transport
// failures, service rejections, and non-2xx responses alike.
type RequestError struct {
	Op         string // the provider operation, e.g. "sign_in", "sign_out"
	StatusCode int    // HTTP status, 0 for transport failures
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth request failed: %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("auth request failed: %s: %s", e.Op, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsRequestError returns the auth request failure err is (or wraps), if any
func IsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	ok := errors.As(err, &re)
	return re, ok
}

// TokenExpiry extracts the expiry claim from an access token without verifying
// its signature. Verification is the auth service's job; the gateway only needs
// the expiry to schedule refreshes.
func TokenExpiry(accessToken string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// TokenSubject extracts the subject (user id) claim from an access token
// without verifying its signature.
func TokenSubject(accessToken string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return "", fmt.Errorf("failed to parse access token: %w", err)
	}
	return claims.Subject, nil
}
