package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quillpost/internal/domain"
	"quillpost/internal/repository"
)

type VersionRepository struct {
	db      DBTX
	dialect Dialect
}

func NewVersionRepository(db DBTX, dialect Dialect) repository.VersionRepository {
	return &VersionRepository{db: db, dialect: dialect}
}

// Create should run inside a transaction so the MAX(version) read and the insert agree.
func (r *VersionRepository) Create(ctx context.Context, version *domain.PostVersion) error {
	var latest int
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
SELECT COALESCE(MAX(version), 0) FROM post_versions WHERE post_id = ?`),
		version.PostID,
	).Scan(&latest); err != nil {
		return fmt.Errorf("latest post version: %w", err)
	}

	version.Version = latest + 1
	version.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO post_versions (id, post_id, version, title, content, created_at)
VALUES (?, ?, ?, ?, ?, ?)`),
		version.ID,
		version.PostID,
		version.Version,
		version.Title,
		version.Content,
		version.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("post version %d: %w", version.Version, repository.ErrConflict)
		}
		return fmt.Errorf("insert post version: %w", err)
	}
	return nil
}

func (r *VersionRepository) Get(ctx context.Context, postID string, version int) (*domain.PostVersion, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
SELECT id, post_id, version, title, content, created_at
FROM post_versions
WHERE post_id = ? AND version = ?`),
		postID,
		version,
	)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post version %d: %w", version, repository.ErrNotFound)
		}
		return nil, err
	}
	return v, nil
}

func (r *VersionRepository) ListByPost(ctx context.Context, postID string) ([]domain.PostVersion, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
SELECT id, post_id, version, title, content, created_at
FROM post_versions
WHERE post_id = ?
ORDER BY version DESC`), postID)
	if err != nil {
		return nil, fmt.Errorf("query post versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.PostVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func scanVersion(row interface {
	Scan(dest ...any) error
}) (*domain.PostVersion, error) {
	var v domain.PostVersion
	if err := row.Scan(&v.ID, &v.PostID, &v.Version, &v.Title, &v.Content, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan post version: %w", err)
	}
	return &v, nil
}
