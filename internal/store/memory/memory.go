// Package memory is a same-process backing store. Writes are applied before
// they return, and watchers see every committed version.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

type Backend struct {
	mu       sync.Mutex
	version  uint64
	thoughts map[string]domain.Thought
	users    map[string]domain.User
	byKey    map[string]string
	watchers map[chan store.Snapshot]struct{}
	closed   bool
}

var _ store.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		thoughts: make(map[string]domain.Thought),
		users:    make(map[string]domain.User),
		byKey:    make(map[string]string),
		watchers: make(map[chan store.Snapshot]struct{}),
	}
}

func (b *Backend) Local() bool { return true }

func (b *Backend) Snapshot(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked(), nil
}

func (b *Backend) Watch(ctx context.Context) (<-chan store.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, domain.StoreError("watch", errClosed)
	}

	ch := make(chan store.Snapshot, 1)
	ch <- b.snapshotLocked()
	b.watchers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.watchers[ch]; ok {
			delete(b.watchers, ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (b *Backend) InsertThoughts(ctx context.Context, thoughts []domain.Thought) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	seen := make(map[string]bool, len(thoughts))
	for _, t := range thoughts {
		if strings.TrimSpace(t.ID) == "" {
			return 0, domain.NewValidationError(map[string]string{"id": "required"})
		}
	}
	for _, t := range thoughts {
		if _, exists := b.thoughts[t.ID]; exists || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		b.thoughts[t.ID] = t.Clone()
		added++
	}
	if added > 0 {
		b.commitLocked()
	}
	return added, nil
}

func (b *Backend) UpdateThought(ctx context.Context, t domain.Thought) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.thoughts[t.ID]; !ok {
		return domain.ErrNotFound
	}
	b.thoughts[t.ID] = t.Clone()
	b.commitLocked()
	return nil
}

func (b *Backend) DeleteThought(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.thoughts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(b.thoughts, id)
	b.commitLocked()
	return nil
}

func (b *Backend) DeleteThoughtsByOwner(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for id, t := range b.thoughts {
		if t.UserID == userID {
			delete(b.thoughts, id)
			n++
		}
	}
	if n > 0 {
		b.commitLocked()
	}
	return n, nil
}

func (b *Backend) MutateUsers(ctx context.Context, ids []string, fn store.UsersMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	working := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := b.users[id]; ok {
			c := u.Clone()
			working[id] = &c
		}
	}
	if err := fn(working); err != nil {
		return err
	}
	changed := false
	for id, u := range working {
		prev, ok := b.users[id]
		if !ok || prev.Equal(*u) {
			continue
		}
		b.users[id] = u.Clone()
		changed = true
	}
	if changed {
		b.commitLocked()
	}
	return nil
}

func (b *Backend) ResolveUser(ctx context.Context, identity domain.ExternalIdentity, candidate domain.User) (domain.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	key := identity.Key()
	if id, ok := b.byKey[key]; ok {
		return b.users[id].Clone(), false, nil
	}

	u := candidate.Clone()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, taken := b.users[u.ID]; taken {
		return domain.User{}, false, domain.ErrExternalAccountExists
	}
	u.ExternalKey = key
	b.users[u.ID] = u
	b.byKey[key] = u.ID
	b.commitLocked()
	return u.Clone(), true, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.watchers {
		delete(b.watchers, ch)
		close(ch)
	}
	return nil
}

func (b *Backend) commitLocked() {
	b.version++
	if len(b.watchers) == 0 {
		return
	}
	snap := b.snapshotLocked()
	for ch := range b.watchers {
		// Drop an unread older snapshot; consumers only want the latest.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (b *Backend) snapshotLocked() store.Snapshot {
	thoughts := make([]domain.Thought, 0, len(b.thoughts))
	for _, t := range b.thoughts {
		thoughts = append(thoughts, t.Clone())
	}
	store.SortThoughts(thoughts)

	users := make([]domain.User, 0, len(b.users))
	for _, u := range b.users {
		users = append(users, u.Clone())
	}
	slices.SortFunc(users, func(a, c domain.User) int {
		if a.JoinedAt != c.JoinedAt {
			if a.JoinedAt < c.JoinedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, c.ID)
	})

	return store.Snapshot{Version: b.version, Thoughts: thoughts, Users: users}
}
