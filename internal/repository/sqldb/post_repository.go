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

const selectPosts = `
SELECT p.id, p.user_id, p.title, p.slug, p.content, p.created_at, p.updated_at
FROM posts p`

type PostRepository struct {
	db      DBTX
	dialect Dialect
}

func NewPostRepository(db DBTX, dialect Dialect) repository.PostRepository {
	return &PostRepository{db: db, dialect: dialect}
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
INSERT INTO posts (id, user_id, title, slug, content, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		post.ID,
		post.UserID,
		post.Title,
		post.Slug,
		post.Content,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("post %s: %w", post.Slug, repository.ErrConflict)
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) Update(ctx context.Context, post *domain.Post) error {
	post.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
UPDATE posts
SET title=?, slug=?, content=?, updated_at=?
WHERE id=?`),
		post.Title,
		post.Slug,
		post.Content,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("post %s: %w", post.Slug, repository.ErrConflict)
		}
		return fmt.Errorf("update post: %w", err)
	}
	return expectOneRow(res, "post")
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM posts WHERE id=?`), id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return expectOneRow(res, "post")
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return r.getBySlug(ctx, slug, false)
}

// LockBySlug takes a row lock on Postgres. SQLite runs on a single connection, so
// transactions there are already serialised.
func (r *PostRepository) LockBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return r.getBySlug(ctx, slug, true)
}

func (r *PostRepository) getBySlug(ctx context.Context, slug string, lock bool) (*domain.Post, error) {
	query := selectPosts + `
WHERE p.slug = ?`
	if lock && r.dialect == DialectPostgres {
		query += `
FOR UPDATE`
	}
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), slug)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post %s: %w", slug, repository.ErrNotFound)
		}
		return nil, err
	}
	return post, nil
}

func (r *PostRepository) List(ctx context.Context, tag string) ([]domain.Post, error) {
	query := selectPosts
	var args []any
	if tag != "" {
		query += `
JOIN post_tags pt ON pt.post_id = p.id
JOIN tags t ON t.id = pt.tag_id
WHERE t.name = ?`
		args = append(args, tag)
	}
	query += `
ORDER BY p.created_at DESC, p.id ASC`

	return r.query(ctx, query, args...)
}

func (r *PostRepository) Recent(ctx context.Context, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.query(ctx, selectPosts+`
ORDER BY p.created_at DESC, p.id ASC
LIMIT ?`, limit)
}

func (r *PostRepository) query(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

func scanPost(row interface {
	Scan(dest ...any) error
}) (*domain.Post, error) {
	var post domain.Post
	if err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Title,
		&post.Slug,
		&post.Content,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &post, nil
}

func expectOneRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, repository.ErrNotFound)
	}
	return nil
}
