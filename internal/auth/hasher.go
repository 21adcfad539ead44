package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
)

const maxPasswordBytes = 72

// HasherConfig tunes the bcrypt hasher. Zero values select the defaults.
type HasherConfig struct {
	Cost          int
	MaxConcurrent int
}

// Hasher hashes and verifies passwords with bcrypt. At most MaxConcurrent
// hash computations run at once; callers beyond that wait for a slot or their context.
type Hasher struct {
	cost int
	sem  chan struct{}
}

func NewHasher(cfg HasherConfig) (*Hasher, error) {
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, &ConfigurationError{
			Field:  "bcrypt cost",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.Cost),
		}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Hasher{
		cost: cfg.Cost,
		sem:  make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Hash returns a self-contained bcrypt hash (algorithm, cost, salt and digest).
// Every call draws a fresh salt.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext produced hash. Malformed hashes verify as false.
// The error is non-nil only when ctx ends before a hashing slot frees up.
func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if plaintext == "" || hash == "" || len(plaintext) > maxPasswordBytes {
		return false, nil
	}

	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release()

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil, nil
}

func (h *Hasher) acquire(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hasher) release() {
	<-h.sem
}
