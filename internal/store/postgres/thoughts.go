package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"thinkflow/internal/domain"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func listThoughts(ctx context.Context, q querier) ([]domain.Thought, error) {
	const sql = `
		SELECT id, user_id, author_name, body, tag, created_at, pinned, is_public, shared_with
		FROM thoughts
		ORDER BY created_at DESC, id ASC
	`

	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Thought, 0)
	for rows.Next() {
		var (
			t      domain.Thought
			tag    string
			shared pgtype.FlatArray[string]
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.AuthorName, &t.Text, &tag, &t.CreatedAt, &t.Pinned, &t.IsPublic, &shared); err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		t.Tag = domain.Tag(tag)
		t.SharedWithFriendIDs = textArrayOrEmpty(shared)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}
	return out, nil
}

func (b *Backend) InsertThoughts(ctx context.Context, thoughts []domain.Thought) (int, error) {
	const sql = `
		INSERT INTO thoughts (id, user_id, author_name, body, tag, created_at, pinned, is_public, shared_with)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	for _, t := range thoughts {
		if t.ID == "" {
			return 0, domain.NewValidationError(map[string]string{"id": "required"})
		}
	}

	added := 0
	err := b.write(ctx, "insert thoughts", func(tx pgx.Tx) (bool, error) {
		batch := &pgx.Batch{}
		for _, t := range thoughts {
			batch.Queue(sql, t.ID, t.UserID, t.AuthorName, t.Text, string(t.Tag), t.CreatedAt, t.Pinned, t.IsPublic, nonNil(t.SharedWithFriendIDs))
		}
		results := tx.SendBatch(ctx, batch)
		for range thoughts {
			ct, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return false, fmt.Errorf("insert thought: %w", err)
			}
			added += int(ct.RowsAffected())
		}
		if err := results.Close(); err != nil {
			return false, err
		}
		return added > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (b *Backend) UpdateThought(ctx context.Context, t domain.Thought) error {
	const sql = `
		UPDATE thoughts
		SET body = $2, tag = $3, pinned = $4, is_public = $5, shared_with = $6
		WHERE id = $1
	`

	return b.write(ctx, "update thought", func(tx pgx.Tx) (bool, error) {
		ct, err := tx.Exec(ctx, sql, t.ID, t.Text, string(t.Tag), t.Pinned, t.IsPublic, nonNil(t.SharedWithFriendIDs))
		if err != nil {
			return false, fmt.Errorf("update thought: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return false, domain.ErrNotFound
		}
		return true, nil
	})
}

func (b *Backend) DeleteThought(ctx context.Context, id string) error {
	return b.write(ctx, "delete thought", func(tx pgx.Tx) (bool, error) {
		ct, err := tx.Exec(ctx, `DELETE FROM thoughts WHERE id = $1`, id)
		if err != nil {
			return false, fmt.Errorf("delete thought: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return false, domain.ErrNotFound
		}
		return true, nil
	})
}

func (b *Backend) DeleteThoughtsByOwner(ctx context.Context, userID string) (int, error) {
	var n int
	err := b.write(ctx, "delete thoughts by owner", func(tx pgx.Tx) (bool, error) {
		ct, err := tx.Exec(ctx, `DELETE FROM thoughts WHERE user_id = $1`, userID)
		if err != nil {
			return false, fmt.Errorf("delete thoughts by owner: %w", err)
		}
		n = int(ct.RowsAffected())
		return n > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
