package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"quillpost/internal/domain"
	"quillpost/internal/repository"
)

var (
	errPrincipalNotFound = errors.New("principal not found")
	errPrincipalInactive = errors.New("principal inactive")
)

// PrincipalStore looks principals up by email.
type PrincipalStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Resolver turns a bearer token into the authenticated principal.
// It re-verifies and re-fetches on every call.
type Resolver struct {
	verifier *Verifier
	users    PrincipalStore
	logger   logrus.FieldLogger
}

func NewResolver(verifier *Verifier, users PrincipalStore, logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		verifier: verifier,
		users:    users,
		logger:   logger,
	}
}

// Resolve returns the principal named by a valid token. Bad, expired or unsigned tokens
// and unknown or inactive principals all fail with ErrUnauthenticated; store failures
// fail with ErrAuthUnavailable.
func (r *Resolver) Resolve(ctx context.Context, token string) (*domain.User, error) {
	claims, err := r.verifier.Verify(token)
	if err != nil {
		r.logger.WithError(err).Debug("bearer token rejected")
		return nil, unauthenticated(err)
	}

	email := NormalizeEmail(claims.Subject)
	user, err := r.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound), err == nil && user == nil:
		r.logger.WithField("subject", email).Debug("token subject has no principal")
		return nil, unauthenticated(errPrincipalNotFound)
	case err != nil:
		r.logger.WithError(err).WithField("subject", email).Warn("principal lookup failed")
		return nil, &AuthError{Kind: ErrAuthUnavailable, Cause: err}
	}

	if !user.IsActive {
		r.logger.WithField("subject", email).Debug("token subject is inactive")
		return nil, unauthenticated(errPrincipalInactive)
	}
	return user, nil
}

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
