package repository

import (
	"context"

	"quillpost/internal/domain"
)

// PostRepository exposes persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id string) error
	GetBySlug(ctx context.Context, slug string) (*domain.Post, error)
	// LockBySlug is GetBySlug that also holds the row until the surrounding transaction ends.
	LockBySlug(ctx context.Context, slug string) (*domain.Post, error)
	// List returns posts newest first. A non-empty tag restricts the result to posts carrying it.
	List(ctx context.Context, tag string) ([]domain.Post, error)
	// Recent returns at most limit posts, newest first.
	Recent(ctx context.Context, limit int) ([]domain.Post, error)
}

// TagRepository manages tags and their links to posts.
type TagRepository interface {
	// Ensure returns the tag with the given name, creating it when missing.
	Ensure(ctx context.Context, name string) (*domain.Tag, error)
	Attach(ctx context.Context, postID, tagID string) error
	List(ctx context.Context) ([]domain.Tag, error)
	ListByPost(ctx context.Context, postID string) ([]domain.Tag, error)
}

// VersionRepository stores post snapshots.
type VersionRepository interface {
	// Create assigns the next version number for the post.
	Create(ctx context.Context, version *domain.PostVersion) error
	// Get looks a snapshot up by its per-post version number.
	Get(ctx context.Context, postID string, version int) (*domain.PostVersion, error)
	ListByPost(ctx context.Context, postID string) ([]domain.PostVersion, error)
}

// Store groups the repositories and runs units of work in a transaction.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	Tags() TagRepository
	Versions() VersionRepository
	// WithTx runs fn against a Store bound to a single transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
