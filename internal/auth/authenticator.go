package auth

import (
	"context"
	"strings"
	"time"

	"quillpost/internal/domain"
)

// Authenticator is the surface request handlers use: credential hashing and checking,
// session token issuance, and bearer authentication.
type Authenticator struct {
	hasher   *Hasher
	issuer   *Issuer
	resolver *Resolver
}

func NewAuthenticator(hasher *Hasher, issuer *Issuer, resolver *Resolver) *Authenticator {
	return &Authenticator{
		hasher:   hasher,
		issuer:   issuer,
		resolver: resolver,
	}
}

// RegisterCredential hashes a new password for storage.
func (a *Authenticator) RegisterCredential(ctx context.Context, plaintext string) (string, error) {
	return a.hasher.Hash(ctx, plaintext)
}

// Authenticate reports whether plaintext matches storedHash.
func (a *Authenticator) Authenticate(ctx context.Context, plaintext, storedHash string) bool {
	ok, err := a.hasher.Verify(ctx, plaintext, storedHash)
	return err == nil && ok
}

// IssueSessionToken signs a token whose subject is the normalised email.
func (a *Authenticator) IssueSessionToken(email string) (string, error) {
	return a.issuer.Issue(NormalizeEmail(email))
}

// SessionTTL is the lifetime of tokens from IssueSessionToken.
func (a *Authenticator) SessionTTL() time.Duration {
	return a.issuer.TTL()
}

// AuthenticateRequest resolves an Authorization header value ("Bearer <token>") or a bare
// token to its principal. The returned user never carries the password hash.
func (a *Authenticator) AuthenticateRequest(ctx context.Context, bearer string) (*domain.User, error) {
	token, ok := BearerToken(bearer)
	if !ok {
		return nil, unauthenticated(&TokenError{Kind: ErrTokenMalformed})
	}

	user, err := a.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	principal := *user
	principal.PasswordHash = ""
	return &principal, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		if strings.EqualFold(header, "bearer") {
			return "", false
		}
		return header, true
	}
	if !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
