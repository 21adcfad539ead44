package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"quillpost/internal/domain"
	"quillpost/internal/repository"
)

type TagRepository struct {
	db      DBTX
	dialect Dialect
}

func NewTagRepository(db DBTX, dialect Dialect) repository.TagRepository {
	return &TagRepository{db: db, dialect: dialect}
}

func (r *TagRepository) Ensure(ctx context.Context, name string) (*domain.Tag, error) {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO tags (id, name) VALUES (?, ?)
ON CONFLICT (name) DO NOTHING`),
		uuid.NewString(),
		name,
	); err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}

	var tag domain.Tag
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT id, name FROM tags WHERE name = ?`), name).
		Scan(&tag.ID, &tag.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tag %s: %w", name, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	return &tag, nil
}

func (r *TagRepository) Attach(ctx context.Context, postID, tagID string) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)
ON CONFLICT (post_id, tag_id) DO NOTHING`),
		postID,
		tagID,
	); err != nil {
		return fmt.Errorf("attach tag: %w", err)
	}
	return nil
}

func (r *TagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	return r.query(ctx, `SELECT id, name FROM tags ORDER BY name ASC`)
}

func (r *TagRepository) ListByPost(ctx context.Context, postID string) ([]domain.Tag, error) {
	return r.query(ctx, `
SELECT t.id, t.name
FROM tags t
JOIN post_tags pt ON pt.tag_id = t.id
WHERE pt.post_id = ?
ORDER BY t.name ASC`, postID)
}

func (r *TagRepository) query(ctx context.Context, query string, args ...any) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
