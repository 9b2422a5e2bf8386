package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/repository"
	"github.com/sakif/markdown-blog/internal/timefmt"
)

// compile-time check that *DB implements repository.PostRepository
var _ repository.PostRepository = (*DB)(nil)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// postColumns must match the scan order in scanPostRow.
const postColumns = `p.id, p.title, p.content, p.created_at, p.author_id, u.username`

func scanPostRow(scanner interface{ Scan(dest ...any) error }) (*model.PostRow, error) {
	var (
		row       model.PostRow
		createdAt any
		authorID  sql.NullInt64
		username  sql.NullString
	)

	if err := scanner.Scan(
		&row.ID,
		&row.Title,
		&row.Content,
		&createdAt,
		&authorID,
		&username,
	); err != nil {
		return nil, err
	}

	row.CreatedAt = timestampText(createdAt)
	row.AuthorID = idPtr(authorID)
	row.Username = username.String
	return &row, nil
}

// filterClause builds the JOIN and WHERE parts shared by ListPosts and CountPosts.
//
// FILTER POLICY:
//   - no search, no tag → every post
//   - search only       → title OR content contains Search
//   - tag only          → posts associated with the tag named exactly Tag
//   - both              → intersection of the two
//
// SQLite LIKE is case-insensitive for ASCII letters only, so "go" matches "Go" but
// "é" does not match "É".
func filterClause(f repository.PostFilter) (joins, where string, args []any) {
	var conds []string

	if f.Tag != "" {
		joins = ` JOIN post_tags pt ON pt.post_id = p.id JOIN tags t ON t.id = pt.tag_id`
		conds = append(conds, `t.name = ?`)
		args = append(args, f.Tag)
	}

	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		conds = append(conds, `(p.title LIKE ? ESCAPE '\' OR p.content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}
	return joins, where, args
}

// escapeLike makes %, _ and \ in user input match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListPosts returns one page of posts matching filter, newest first.
//
// Posts created within the same second are ordered by id so page boundaries are
// stable. DISTINCT suppresses duplicate rows from the tag join.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.PostRow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	joins, where, args := filterClause(filter)
	query := `SELECT DISTINCT ` + postColumns + `
		FROM posts p
		LEFT JOIN users u ON u.id = p.author_id` + joins + where + `
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.PostRow, 0, limit)
	for rows.Next() {
		p, err := scanPostRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// CountPosts returns how many posts match filter, ignoring Limit and Offset.
func (db *DB) CountPosts(ctx context.Context, filter repository.PostFilter) (int, error) {
	joins, where, args := filterClause(filter)

	var total int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT p.id) FROM posts p`+joins+where, args...,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}
	return total, nil
}

// GetPost returns a single post with its author's username.
func (db *DB) GetPost(ctx context.Context, id int64) (*model.PostRow, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 LEFT JOIN users u ON u.id = p.author_id
		 WHERE p.id = ?`,
		id,
	)

	p, err := scanPostRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return p, nil
}

// CreatePost inserts post and its tag associations atomically.
//
// post.CreatedAt defaults to the current local time. post.ID is only set once the
// transaction has committed.
func (db *DB) CreatePost(ctx context.Context, post *model.Post, tagNames []string) error {
	if post.CreatedAt == "" {
		post.CreatedAt = timefmt.Now()
	}

	var id int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO posts (title, content, created_at, author_id)
			 VALUES (?, ?, ?, ?)`,
			post.Title,
			post.Content,
			post.CreatedAt,
			nullableID(post.AuthorID),
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting post: %w", err)
		}

		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading post id: %w", err)
		}

		return attachTags(ctx, tx, id, tagNames)
	})
	if err != nil {
		return err
	}

	post.ID = id
	return nil
}

// UpdatePost rewrites title and content and replaces the post's whole tag set.
// The author and creation time are never touched.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post, tagNames []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts SET title = ?, content = ? WHERE id = ?`,
			post.Title,
			post.Content,
			post.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("post", post.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM post_tags WHERE post_id = ?`, post.ID,
		); err != nil {
			return fmt.Errorf("sqlite: clearing tags of post %d: %w", post.ID, err)
		}

		return attachTags(ctx, tx, post.ID, tagNames)
	})
}

// DeletePost removes a post. Its post_tags rows go with it through ON DELETE
// CASCADE; tags themselves are kept.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}
