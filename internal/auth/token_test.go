package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func testTokenConfig(secret string) TokenConfig {
	return TokenConfig{Secret: []byte(secret), Algorithm: "HS256", TTL: 30 * time.Minute}
}

func newPair(t *testing.T, cfg TokenConfig, clock *fakeClock) (*Issuer, *Verifier) {
	t.Helper()
	issuer, err := NewIssuer(cfg, WithClock(clock.Now))
	require.NoError(t, err)
	verifier, err := NewVerifier(cfg, WithClock(clock.Now))
	require.NoError(t, err)
	return issuer, verifier
}

func TestTokenRoundTrip(t *testing.T) {
	clock := newClock()
	issuer, verifier := newPair(t, testTokenConfig("secret-a"), clock)

	token, err := issuer.Issue("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Subject)
	assert.WithinDuration(t, clock.now, claims.IssuedAt, 0)
	assert.WithinDuration(t, clock.now.Add(30*time.Minute), claims.ExpiresAt, 0)
}

func TestTokenExpiresAfterTTL(t *testing.T) {
	clock := newClock()
	issuer, verifier := newPair(t, testTokenConfig("secret-a"), clock)

	token, err := issuer.Issue("user@example.com")
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)
	_, err = verifier.Verify(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = verifier.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)

	var tokenErr *TokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, ErrTokenExpired, tokenErr.Kind)
}

func TestTokenIssueWithTTL(t *testing.T) {
	clock := newClock()
	issuer, verifier := newPair(t, testTokenConfig("secret-a"), clock)

	token, err := issuer.IssueWithTTL("user@example.com", time.Minute)
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = issuer.IssueWithTTL("user@example.com", 0)
	assert.Error(t, err)
	_, err = issuer.Issue("")
	assert.Error(t, err)
}

func TestTokenWrongSecret(t *testing.T) {
	clock := newClock()
	issuer, _ := newPair(t, testTokenConfig("secret-a"), clock)
	_, verifier := newPair(t, testTokenConfig("secret-b"), clock)

	token, err := issuer.Issue("user@example.com")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
}

func TestTokenSignatureCheckedBeforeExpiry(t *testing.T) {
	clock := newClock()
	issuer, _ := newPair(t, testTokenConfig("secret-a"), clock)
	_, verifier := newPair(t, testTokenConfig("secret-b"), clock)

	token, err := issuer.Issue("user@example.com")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCorruption(t *testing.T) {
	clock := newClock()
	issuer, verifier := newPair(t, testTokenConfig("secret-a"), clock)

	token, err := issuer.Issue("user@example.com")
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin@example.com","exp":4102444800}`))

	tests := []struct {
		name  string
		token string
		kinds []error
	}{
		{name: "empty", token: "", kinds: []error{ErrTokenMalformed}},
		{name: "garbage", token: "not-a-token", kinds: []error{ErrTokenMalformed}},
		{name: "truncated", token: token[:len(token)/2], kinds: []error{ErrTokenMalformed, ErrTokenInvalidSignature}},
		{name: "two segments", token: parts[0] + "." + parts[1], kinds: []error{ErrTokenMalformed}},
		{name: "tampered payload", token: parts[0] + "." + forged + "." + parts[2], kinds: []error{ErrTokenInvalidSignature}},
		{name: "bad base64 payload", token: parts[0] + ".!!!." + parts[2], kinds: []error{ErrTokenMalformed}},
		{name: "stripped signature", token: parts[0] + "." + parts[1] + ".", kinds: []error{ErrTokenInvalidSignature}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				claims Claims
				err    error
			)
			require.NotPanics(t, func() { claims, err = verifier.Verify(tt.token) })
			require.Error(t, err)
			assert.Empty(t, claims.Subject)

			var tokenErr *TokenError
			require.ErrorAs(t, err, &tokenErr)
			assert.Contains(t, tt.kinds, tokenErr.Kind)
		})
	}
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	clock := newClock()
	_, verifier := newPair(t, testTokenConfig("secret-a"), clock)
	claims := jwt.RegisteredClaims{
		Subject:   "user@example.com",
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret-a"))
	require.NoError(t, err)
	_, err = verifier.Verify(hs512)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = verifier.Verify(none)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
}

func TestTokenClaimShape(t *testing.T) {
	clock := newClock()
	_, verifier := newPair(t, testTokenConfig("secret-a"), clock)
	sign := func(claims jwt.RegisteredClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret-a"))
		require.NoError(t, err)
		return token
	}

	_, err := verifier.Verify(sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour))}))
	assert.ErrorIs(t, err, ErrTokenMissingSubject)

	_, err = verifier.Verify(sign(jwt.RegisteredClaims{Subject: "user@example.com"}))
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestTokenConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  TokenConfig
	}{
		{name: "empty secret", cfg: TokenConfig{Algorithm: "HS256", TTL: time.Minute}},
		{name: "unsupported algorithm", cfg: TokenConfig{Secret: []byte("s"), Algorithm: "RS256", TTL: time.Minute}},
		{name: "unknown algorithm", cfg: TokenConfig{Secret: []byte("s"), Algorithm: "XX999", TTL: time.Minute}},
		{name: "zero ttl", cfg: TokenConfig{Secret: []byte("s"), Algorithm: "HS256"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIssuer(tt.cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
			_, err = NewVerifier(tt.cfg)
			assert.ErrorIs(t, err, ErrConfiguration)

			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}

	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		assert.NoError(t, TokenConfig{Secret: []byte("s"), Algorithm: alg, TTL: time.Minute}.Validate())
	}
}
