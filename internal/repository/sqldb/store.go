package sqldb

import (
	"context"
	"database/sql"

	"quillpost/internal/repository"
)

// Store hands out repositories bound either to the pool or to one transaction.
type Store struct {
	db      *sql.DB
	conn    DBTX
	dialect Dialect
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, conn: db, dialect: dialect}
}

func (s *Store) Users() repository.UserRepository {
	return NewUserRepository(s.conn, s.dialect)
}

func (s *Store) Posts() repository.PostRepository {
	return NewPostRepository(s.conn, s.dialect)
}

func (s *Store) Tags() repository.TagRepository {
	return NewTagRepository(s.conn, s.dialect)
}

func (s *Store) Versions() repository.VersionRepository {
	return NewVersionRepository(s.conn, s.dialect)
}

// WithTx runs fn inside a transaction. Calling it on a transactional Store reuses the
// surrounding transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(ctx, &Store{conn: tx, dialect: s.dialect})
	})
}

var _ repository.Store = (*Store)(nil)
