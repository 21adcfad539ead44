package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(HasherConfig{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	return h
}

func TestHasherRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t)

	for _, password := range []string{"password123", "p", "ünïcødé-pässwörd", strings.Repeat("x", 72)} {
		hash, err := h.Hash(ctx, password)
		require.NoError(t, err)
		assert.NotEqual(t, password, hash)

		ok, err := h.Verify(ctx, password, hash)
		require.NoError(t, err)
		assert.True(t, ok, "password %q should verify", password)
	}
}

func TestHasherRejectsOtherPassword(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t)

	hash, err := h.Hash(ctx, "password123")
	require.NoError(t, err)

	ok, err := h.Verify(ctx, "password124", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasherSaltsEveryHash(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t)

	first, err := h.Hash(ctx, "password123")
	require.NoError(t, err)
	second, err := h.Hash(ctx, "password123")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	for _, hash := range []string{first, second} {
		ok, err := h.Verify(ctx, "password123", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestHasherVerifyMalformedHashIsFalse(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t)

	for _, hash := range []string{"", "not-a-hash", "$2a$04$short", "$argon2id$v=19$m=65536,t=3,p=4$abc$def"} {
		ok, err := h.Verify(ctx, "password123", hash)
		require.NoError(t, err)
		assert.False(t, ok, "hash %q", hash)
	}

	ok, err := h.Verify(ctx, "", "$2a$04$abcdefghijklmnopqrstuuJ1Z5c8m3kO6h5QyH0yZ2d5yqv1S6e2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasherInputLimits(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t)

	_, err := h.Hash(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = h.Hash(ctx, strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hash, err := h.Hash(ctx, strings.Repeat("x", 72))
	require.NoError(t, err)
	ok, err := h.Verify(ctx, strings.Repeat("x", 73), hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewHasherCost(t *testing.T) {
	h, err := NewHasher(HasherConfig{})
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
	assert.Greater(t, cap(h.sem), 0)

	_, err = NewHasher(HasherConfig{Cost: bcrypt.MaxCost + 1})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewHasher(HasherConfig{Cost: 1})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestHasherHonoursContextWhileSaturated(t *testing.T) {
	h, err := NewHasher(HasherConfig{Cost: bcrypt.MinCost, MaxConcurrent: 1})
	require.NoError(t, err)

	require.NoError(t, h.acquire(context.Background()))
	defer h.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = h.Hash(ctx, "password123")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ok, err := h.Verify(ctx, "password123", "$2a$04$whatever")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ok)
}
