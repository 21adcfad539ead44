package auth

import (
	"errors"
	"fmt"
)

// Token rejection kinds. A *TokenError always matches exactly one of them with errors.Is.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMissingSubject   = errors.New("token subject missing")
)

var (
	// ErrUnauthenticated is the only authentication failure callers should surface to clients.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrAuthUnavailable means the principal store could not answer (timeout, cancellation, outage).
	ErrAuthUnavailable = errors.New("authentication unavailable")
	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("auth configuration invalid")

	ErrEmptyPassword   = errors.New("password must not be empty")
	ErrPasswordTooLong = errors.New("password must not exceed 72 bytes")
)

// TokenError reports why a token was rejected.
type TokenError struct {
	Kind error
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AuthError is returned by the resolver. Error() never reveals the cause; Cause is kept
// for logging and is reachable through errors.Is / errors.As.
type AuthError struct {
	Kind  error
	Cause error
}

func (e *AuthError) Error() string {
	return e.Kind.Error()
}

func (e *AuthError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func unauthenticated(cause error) *AuthError {
	return &AuthError{Kind: ErrUnauthenticated, Cause: cause}
}

// ConfigurationError describes a missing or invalid process-level auth setting.
// It is fatal: the process must not serve traffic with it.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("auth config %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
