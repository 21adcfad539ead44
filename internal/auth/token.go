package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig is the process-wide signing configuration shared by Issuer and Verifier.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
}

// Validate returns a *ConfigurationError when the secret is empty, the algorithm is not
// an HMAC algorithm or the TTL is not positive.
func (c TokenConfig) Validate() error {
	if len(c.Secret) == 0 {
		return &ConfigurationError{Field: "signing secret", Reason: "is required"}
	}
	if _, err := signingMethod(c.Algorithm); err != nil {
		return err
	}
	if c.TTL <= 0 {
		return &ConfigurationError{Field: "token ttl", Reason: "must be positive"}
	}
	return nil
}

func signingMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, &ConfigurationError{
			Field:  "signing algorithm",
			Reason: fmt.Sprintf("%q is not one of HS256, HS384, HS512", alg),
		}
	}
	return method, nil
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Option customises an Issuer or Verifier.
type Option func(*tokenOptions)

type tokenOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *tokenOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) tokenOptions {
	o := tokenOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Issuer mints signed, time-limited bearer tokens.
type Issuer struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(cfg TokenConfig, opts ...Option) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, _ := signingMethod(cfg.Algorithm)
	o := applyOptions(opts)
	return &Issuer{
		method: method,
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    cfg.TTL,
		now:    o.now,
	}, nil
}

// TTL is the lifetime given to tokens by Issue.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for subject that expires after the configured TTL.
func (i *Issuer) Issue(subject string) (string, error) {
	return i.IssueWithTTL(subject, i.ttl)
}

func (i *Issuer) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks structure, signature and expiry of tokens, in that order.
type Verifier struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	now    func() time.Time
}

func NewVerifier(cfg TokenConfig, opts ...Option) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, _ := signingMethod(cfg.Algorithm)
	o := applyOptions(opts)
	return &Verifier{
		method: method,
		secret: append([]byte(nil), cfg.Secret...),
		now:    o.now,
	}, nil
}

// Verify returns the claims of a valid token or a *TokenError.
func (v *Verifier) Verify(token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, &TokenError{Kind: ErrTokenMalformed}
	}

	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, classifyTokenError(err)
	}

	if rc.Subject == "" {
		return Claims{}, &TokenError{Kind: ErrTokenMissingSubject}
	}

	claims := Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	return claims, nil
}

func classifyTokenError(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &TokenError{Kind: ErrTokenMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: ErrTokenInvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: ErrTokenExpired, Err: err}
	default:
		// missing exp, nbf in the future and other claim shape problems
		return &TokenError{Kind: ErrTokenMalformed, Err: err}
	}
}
