package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

const userColumns = `id, external_key, username, avatar, joined_at, friends, friend_requests`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u        domain.User
		friends  pgtype.FlatArray[string]
		requests []domain.FriendRequest
	)
	if err := row.Scan(&u.ID, &u.ExternalKey, &u.Username, &u.Avatar, &u.JoinedAt, &friends, &requests); err != nil {
		return domain.User{}, err
	}
	u.Friends = textArrayOrEmpty(friends)
	u.FriendRequests = requests
	if u.FriendRequests == nil {
		u.FriendRequests = []domain.FriendRequest{}
	}
	return u, nil
}

func listUsers(ctx context.Context, q querier) ([]domain.User, error) {
	rows, err := q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY joined_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (b *Backend) MutateUsers(ctx context.Context, ids []string, fn store.UsersMutation) error {
	return b.write(ctx, "mutate users", func(tx pgx.Tx) (bool, error) {
		// Row locks serialize concurrent mutations touching the same users.
		rows, err := tx.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
		if err != nil {
			return false, fmt.Errorf("lock users: %w", err)
		}
		working := make(map[string]*domain.User, len(ids))
		before := make(map[string]domain.User, len(ids))
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				rows.Close()
				return false, fmt.Errorf("scan user: %w", err)
			}
			working[u.ID] = &u
			before[u.ID] = u.Clone()
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return false, fmt.Errorf("lock users: %w", err)
		}

		if err := fn(working); err != nil {
			return false, err
		}

		const q = `
			UPDATE users
			SET username = $2, avatar = $3, friends = $4, friend_requests = $5
			WHERE id = $1
		`
		changed := false
		for id, u := range working {
			if prev, ok := before[id]; !ok || prev.Equal(*u) {
				continue
			}
			changed = true
			requests := u.FriendRequests
			if requests == nil {
				requests = []domain.FriendRequest{}
			}
			if _, err := tx.Exec(ctx, q, u.ID, u.Username, u.Avatar, nonNil(u.Friends), requests); err != nil {
				return false, fmt.Errorf("update user: %w", err)
			}
		}
		return changed, nil
	})
}

func (b *Backend) ResolveUser(ctx context.Context, identity domain.ExternalIdentity, candidate domain.User) (domain.User, bool, error) {
	key := identity.Key()

	var (
		out     domain.User
		created bool
	)
	err := b.write(ctx, "resolve user", func(tx pgx.Tx) (bool, error) {
		u, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_key = $1`, key))
		if err == nil {
			out = u
			return false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("get user by external key: %w", err)
		}

		const insert = `
			INSERT INTO users (id, external_key, username, avatar, joined_at, friends, friend_requests)
			VALUES (COALESCE($1, gen_random_uuid()::text), $2, $3, $4, $5, '{}', '[]')
			ON CONFLICT (external_key) DO NOTHING
			RETURNING ` + userColumns
		u, err = scanUser(tx.QueryRow(ctx, insert, nullIfEmpty(candidate.ID), key, candidate.Username, candidate.Avatar, candidate.JoinedAt))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost a race with another instance creating the same identity.
				u, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_key = $1`, key))
				if err != nil {
					return false, fmt.Errorf("get user by external key: %w", err)
				}
				out = u
				return false, nil
			}
			return false, mapUserWriteError(err)
		}
		out = u
		created = true
		return true, nil
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return out, created, nil
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_pkey", "users_external_key_uq":
			return domain.ErrExternalAccountExists
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}
