package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"corkboard/internal/board/models"
	"corkboard/pkg/platform/sentinel"
	txcontext "corkboard/pkg/platform/tx"
)

type PostgresPostStore struct {
	db *sql.DB
}

func NewPostgresPostStore(db *sql.DB) *PostgresPostStore {
	return &PostgresPostStore{db: db}
}

func (s *PostgresPostStore) Create(ctx context.Context, p *models.Post) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO posts (id, author_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.AuthorID, p.Title, p.Body, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostgresPostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var p models.Post
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, author_id, title, body, created_at, updated_at
		FROM posts WHERE id = $1`, id,
	).Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select post: %w", err)
	}
	return &p, nil
}

func (s *PostgresPostStore) List(ctx context.Context, limit, offset int) ([]*models.Post, int, error) {
	exec := txcontext.Exec(ctx, s.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, author_id, title, body, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, total, nil
}

func (s *PostgresPostStore) Update(ctx context.Context, p *models.Post) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE posts SET title = $2, body = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Title, p.Body, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return expectOneRow(res)
}

func (s *PostgresPostStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return expectOneRow(res)
}

func (s *PostgresPostStore) DeleteByAuthor(ctx context.Context, authorID uuid.UUID) (int, error) {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM posts WHERE author_id = $1`, authorID)
	if err != nil {
		return 0, fmt.Errorf("delete posts by author: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
