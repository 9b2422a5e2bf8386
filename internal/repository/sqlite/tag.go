package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/markdown-blog/internal/model"
	"github.com/sakif/markdown-blog/internal/repository"
)

// compile-time check that *DB implements repository.TagRepository
var _ repository.TagRepository = (*DB)(nil)

// findOrCreateTag returns the id of the tag called name, inserting it first when
// no such tag exists. Names are matched exactly (case-sensitive).
func findOrCreateTag(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite: looking up tag %q: %w", name, err)
	}

	result, err := q.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting tag %q: %w", name, err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading tag id: %w", err)
	}
	return id, nil
}

// attachTags resolves each name to a tag and associates it with postID.
func attachTags(ctx context.Context, q querier, postID int64, names []string) error {
	for _, name := range names {
		tagID, err := findOrCreateTag(ctx, q, name)
		if err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx,
			`INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)`,
			postID, tagID,
		); err != nil {
			return fmt.Errorf("sqlite: tagging post %d with %q: %w", postID, name, err)
		}
	}
	return nil
}

// TagsForPost returns the tags attached to a post in storage order.
func (db *DB) TagsForPost(ctx context.Context, postID int64) ([]model.Tag, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT t.id, t.name
		 FROM tags t
		 JOIN post_tags pt ON t.id = pt.tag_id
		 WHERE pt.post_id = ?
		 ORDER BY pt.rowid`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags of post %d: %w", postID, err)
	}
	return scanTags(rows)
}

// ListTags returns every tag, including ones no post uses any more.
func (db *DB) ListTags(ctx context.Context) ([]model.Tag, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]model.Tag, error) {
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}
