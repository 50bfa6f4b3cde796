package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

type CredentialsStore struct {
	pool *pgxpool.Pool
}

var _ store.CredentialsStore = (*CredentialsStore)(nil)

func NewCredentialsStore(pool *pgxpool.Pool) *CredentialsStore {
	return &CredentialsStore{pool: pool}
}

func (s *CredentialsStore) CreateCredential(ctx context.Context, c domain.Credential) error {
	const q = `
		INSERT INTO local_credentials (username, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.pool.Exec(ctx, q, strings.ToLower(c.Username), c.UserID, c.PasswordHash, c.CreatedAt)
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" && pgerr.ConstraintName == "local_credentials_username_uq" {
			return domain.ErrUsernameTaken
		}
		return domain.StoreError("create credential", err)
	}
	return nil
}

func (s *CredentialsStore) GetCredential(ctx context.Context, username string) (domain.Credential, error) {
	const q = `
		SELECT username, user_id, password_hash, created_at
		FROM local_credentials
		WHERE username = $1
	`

	var c domain.Credential
	err := s.pool.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(username))).Scan(
		&c.Username,
		&c.UserID,
		&c.PasswordHash,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Credential{}, domain.ErrNotFound
		}
		return domain.Credential{}, domain.StoreError("get credential", err)
	}
	return c, nil
}
