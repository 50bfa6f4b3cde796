package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS store_version (
	singleton boolean PRIMARY KEY DEFAULT true CHECK (singleton),
	version bigint NOT NULL DEFAULT 0
);
INSERT INTO store_version (singleton, version) VALUES (true, 0) ON CONFLICT DO NOTHING;

CREATE TABLE IF NOT EXISTS users (
	id text PRIMARY KEY DEFAULT gen_random_uuid()::text,
	external_key text NOT NULL,
	username text NOT NULL,
	avatar text NOT NULL DEFAULT '',
	joined_at bigint NOT NULL,
	friends text[] NOT NULL DEFAULT '{}',
	friend_requests jsonb NOT NULL DEFAULT '[]',
	CONSTRAINT users_external_key_uq UNIQUE (external_key)
);

CREATE TABLE IF NOT EXISTS thoughts (
	id text PRIMARY KEY,
	user_id text NOT NULL,
	author_name text NOT NULL DEFAULT '',
	body text NOT NULL,
	tag text NOT NULL,
	created_at bigint NOT NULL,
	pinned boolean NOT NULL DEFAULT false,
	is_public boolean NOT NULL DEFAULT false,
	shared_with text[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS thoughts_created_at_idx ON thoughts (created_at DESC, id);
CREATE INDEX IF NOT EXISTS thoughts_user_id_idx ON thoughts (user_id);

CREATE TABLE IF NOT EXISTS sessions (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	expires_at timestamptz NOT NULL,
	revoked_at timestamptz,
	ip text,
	user_agent text
);

CREATE TABLE IF NOT EXISTS local_credentials (
	username text NOT NULL,
	user_id text NOT NULL,
	password_hash text NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	CONSTRAINT local_credentials_username_uq UNIQUE (username)
);
`

// Migrate creates the tables the stores rely on. It is safe to run on every
// start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
