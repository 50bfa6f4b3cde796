// Package syncer keeps the process-wide view of the backing store. It holds the
// latest confirmed snapshot, fans it out to subscribers and routes every write
// through the backend without touching local state speculatively.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

const (
	DefaultMinBackoff = 250 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

type Options struct {
	Logger     *slog.Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type Layer struct {
	backend    store.Backend
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	// writeMu keeps writes in issue order.
	writeMu sync.Mutex

	mu     sync.RWMutex
	latest store.Snapshot
	loaded bool
	closed bool
	subs   map[int]chan store.Snapshot
	nextID int

	cancel context.CancelFunc
	done   chan struct{}
}

func New(backend store.Backend, opts Options) *Layer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	return &Layer{
		backend:    backend,
		logger:     opts.Logger,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		subs:       make(map[int]chan store.Snapshot),
	}
}

// Start loads the first snapshot and keeps following the backend until ctx
// ends or Close is called.
func (l *Layer) Start(ctx context.Context) error {
	snap, err := l.backend.Snapshot(ctx)
	if err != nil {
		return classify("initial snapshot", err)
	}
	l.install(snap)

	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go l.run(runCtx, done)
	return nil
}

// Close stops following the backend and closes every subscriber channel. It
// does not close the backend.
func (l *Layer) Close() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}

func (l *Layer) Latest() store.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest
}

// Subscribe returns a channel that first carries the current snapshot and then
// every newer one. A slow reader only ever sees the most recent snapshot.
func (l *Layer) Subscribe() (<-chan store.Snapshot, func()) {
	ch := make(chan store.Snapshot, 1)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch, func() {}
	}
	if l.loaded {
		ch <- l.latest
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if _, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(ch)
			}
		})
	}
}

func (l *Layer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := l.minBackoff
	for {
		feed, err := l.backend.Watch(ctx)
		if err != nil {
			l.logger.Warn("syncer: watch failed", "err", err)
		} else if l.follow(ctx, feed) {
			backoff = l.minBackoff
		}
		if ctx.Err() != nil {
			return
		}

		l.logger.Info("syncer: reconnecting", "in", backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

// follow installs snapshots until the feed closes. It reports whether at least
// one snapshot arrived.
func (l *Layer) follow(ctx context.Context, feed <-chan store.Snapshot) bool {
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case snap, ok := <-feed:
			if !ok {
				return received
			}
			received = true
			l.install(snap)
		}
	}
}

// install replaces the held snapshot unless snap is older, then notifies
// subscribers.
func (l *Layer) install(snap store.Snapshot) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded && snap.Version <= l.latest.Version {
		return false
	}
	l.latest = snap
	l.loaded = true
	for _, ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	return true
}

func (l *Layer) InsertThoughts(ctx context.Context, thoughts []domain.Thought) (int, error) {
	var added int
	err := l.write(ctx, "insert thoughts", func(ctx context.Context) error {
		var err error
		added, err = l.backend.InsertThoughts(ctx, thoughts)
		return err
	})
	return added, err
}

func (l *Layer) UpdateThought(ctx context.Context, t domain.Thought) error {
	return l.write(ctx, "update thought", func(ctx context.Context) error {
		return l.backend.UpdateThought(ctx, t)
	})
}

func (l *Layer) DeleteThought(ctx context.Context, id string) error {
	return l.write(ctx, "delete thought", func(ctx context.Context) error {
		return l.backend.DeleteThought(ctx, id)
	})
}

func (l *Layer) DeleteThoughtsByOwner(ctx context.Context, userID string) (int, error) {
	var removed int
	err := l.write(ctx, "delete thoughts", func(ctx context.Context) error {
		var err error
		removed, err = l.backend.DeleteThoughtsByOwner(ctx, userID)
		return err
	})
	return removed, err
}

func (l *Layer) MutateUsers(ctx context.Context, ids []string, fn store.UsersMutation) error {
	return l.write(ctx, "mutate users", func(ctx context.Context) error {
		return l.backend.MutateUsers(ctx, ids, fn)
	})
}

func (l *Layer) ResolveUser(ctx context.Context, identity domain.ExternalIdentity, candidate domain.User) (domain.User, bool, error) {
	var (
		user    domain.User
		created bool
	)
	err := l.write(ctx, "resolve user", func(ctx context.Context) error {
		var err error
		user, created, err = l.backend.ResolveUser(ctx, identity, candidate)
		return err
	})
	return user, created, err
}

// write sends one mutation to the backend. Local state only changes once the
// backend has confirmed it: a local backend's snapshot is installed before
// write returns, a remote one is re-read and the feed catches up if that read
// fails.
func (l *Layer) write(ctx context.Context, op string, fn func(context.Context) error) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := fn(ctx); err != nil {
		return classify(op, err)
	}

	snap, err := l.backend.Snapshot(ctx)
	if err != nil {
		if l.backend.Local() {
			return classify(op, err)
		}
		l.logger.Warn("syncer: refresh after write failed", "op", op, "err", err)
		return nil
	}
	l.install(snap)
	return nil
}

func classify(op string, err error) error {
	if domain.IsDomainError(err) {
		return err
	}
	return domain.StoreError(op, err)
}
