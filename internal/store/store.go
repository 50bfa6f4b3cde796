// Package store defines the contract every backing store satisfies, whether it
// lives in the same process or behind a network connection.
package store

import (
	"context"
	"slices"
	"time"

	"thinkflow/internal/domain"
)

// Snapshot is the full state of both collections at one version. Thoughts are
// ordered newest first.
type Snapshot struct {
	Version  uint64
	Thoughts []domain.Thought
	Users    []domain.User
}

func (s Snapshot) User(id string) (domain.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

func (s Snapshot) Thought(id string) (domain.Thought, bool) {
	for _, t := range s.Thoughts {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Thought{}, false
}

// SortThoughts puts thoughts in the order snapshots deliver them: newest first,
// ties broken by id so every backend agrees.
func SortThoughts(ts []domain.Thought) {
	slices.SortStableFunc(ts, func(a, b domain.Thought) int {
		if c := domain.CompareNewestFirst(a, b); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// UsersMutation edits the users it is given in place. Returning an error
// aborts the write.
type UsersMutation func(users map[string]*domain.User) error

type Backend interface {
	// Local reports whether a successful write is already reflected by
	// Snapshot when the write returns.
	Local() bool

	Snapshot(ctx context.Context) (Snapshot, error)

	// Watch streams snapshots, starting with the current one. The channel is
	// closed when the subscription drops or ctx ends.
	Watch(ctx context.Context) (<-chan Snapshot, error)

	// InsertThoughts stores the thoughts whose ids are not taken yet and
	// returns how many were added. It is all or nothing.
	InsertThoughts(ctx context.Context, thoughts []domain.Thought) (int, error)
	UpdateThought(ctx context.Context, t domain.Thought) error
	DeleteThought(ctx context.Context, id string) error
	DeleteThoughtsByOwner(ctx context.Context, userID string) (int, error)

	// MutateUsers loads the listed users, applies fn and persists every user
	// in one atomic write. Ids that do not exist are absent from the map.
	MutateUsers(ctx context.Context, ids []string, fn UsersMutation) error

	// ResolveUser returns the user bound to the identity, creating candidate
	// when there is none. candidate.ExternalKey is set by the backend.
	ResolveUser(ctx context.Context, identity domain.ExternalIdentity, candidate domain.User) (domain.User, bool, error)

	Close() error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
}

type CredentialsStore interface {
	// CreateCredential fails with domain.ErrUsernameTaken when the username is
	// already bound.
	CreateCredential(ctx context.Context, c domain.Credential) error
	GetCredential(ctx context.Context, username string) (domain.Credential, error)
}
