package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

// Notifier tells every server instance that the store changed.
type Notifier interface {
	Publish(ctx context.Context) error
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

type BackendOpts struct {
	Notifier     Notifier
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Backend keeps users and thoughts in postgres. Every committed write bumps
// store_version, so snapshots with the same version are identical.
type Backend struct {
	pool         *pgxpool.Pool
	notifier     Notifier
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ store.Backend = (*Backend)(nil)

func NewBackend(pool *pgxpool.Pool, opts BackendOpts) *Backend {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Backend{
		pool:         pool,
		notifier:     opts.Notifier,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
}

func (b *Backend) Local() bool { return false }

func (b *Backend) Close() error { return nil }

func (b *Backend) Snapshot(ctx context.Context) (store.Snapshot, error) {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return store.Snapshot{}, domain.StoreError("snapshot", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var snap store.Snapshot
	var version int64
	if err := tx.QueryRow(ctx, `SELECT version FROM store_version`).Scan(&version); err != nil {
		return store.Snapshot{}, domain.StoreError("snapshot version", err)
	}
	snap.Version = uint64(version)

	if snap.Thoughts, err = listThoughts(ctx, tx); err != nil {
		return store.Snapshot{}, domain.StoreError("snapshot", err)
	}
	if snap.Users, err = listUsers(ctx, tx); err != nil {
		return store.Snapshot{}, domain.StoreError("snapshot", err)
	}
	return snap, nil
}

func (b *Backend) Watch(ctx context.Context) (<-chan store.Snapshot, error) {
	return watch(ctx, b.Snapshot, b.notifier, b.pollInterval, b.logger)
}

// watch emits the current snapshot, then a newer one after every change
// notification or poll tick. Without a working change feed it keeps polling
// and tries to subscribe again on each tick. The channel closes when a
// snapshot load fails or ctx ends.
func watch(ctx context.Context, load func(context.Context) (store.Snapshot, error), notifier Notifier, pollInterval time.Duration, logger *slog.Logger) (<-chan store.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)

	var changes <-chan struct{}
	subscribe := func() {
		if notifier == nil || changes != nil {
			return
		}
		ch, err := notifier.Subscribe(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("store watch: change feed unavailable, polling", "err", err)
			}
			return
		}
		changes = ch
	}

	// Subscribe before the first load so no change slips in between.
	subscribe()
	first, err := load(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan store.Snapshot, 1)
	out <- first

	go func() {
		defer close(out)
		defer cancel()
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		last := first.Version
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					logger.Warn("store watch: change feed closed, polling")
					changes = nil
					continue
				}
			case <-ticker.C:
				subscribe()
			}

			snap, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("store watch: snapshot failed", "err", err)
				}
				return
			}
			if snap.Version == last {
				continue
			}
			last = snap.Version

			select {
			case <-out:
			default:
			}
			out <- snap
		}
	}()
	return out, nil
}

// write runs fn in a transaction, bumps the store version when fn reports a
// change, and notifies other instances after commit.
func (b *Backend) write(ctx context.Context, op string, fn func(tx pgx.Tx) (bool, error)) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return domain.StoreError(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed, err := fn(tx)
	if err != nil {
		if domain.IsDomainError(err) {
			return err
		}
		return domain.StoreError(op, err)
	}
	if !changed {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE store_version SET version = version + 1`); err != nil {
		return domain.StoreError(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StoreError(op, fmt.Errorf("commit: %w", err))
	}

	if b.notifier != nil {
		if err := b.notifier.Publish(ctx); err != nil {
			// Other instances still pick the change up on their next poll.
			b.logger.Warn("store: publish change failed", "op", op, "err", err)
		}
	}
	return nil
}
