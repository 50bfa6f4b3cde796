package service

import (
	"context"
	"errors"
	"time"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
)

// Sync is the part of the sync layer the services read from and write
// through.
type Sync interface {
	Latest() store.Snapshot
	InsertThoughts(ctx context.Context, thoughts []domain.Thought) (int, error)
	UpdateThought(ctx context.Context, t domain.Thought) error
	DeleteThought(ctx context.Context, id string) error
	DeleteThoughtsByOwner(ctx context.Context, userID string) (int, error)
	MutateUsers(ctx context.Context, ids []string, fn store.UsersMutation) error
	ResolveUser(ctx context.Context, identity domain.ExternalIdentity, candidate domain.User) (domain.User, bool, error)
}

// errNoChange aborts a users mutation that would not change anything.
var errNoChange = errors.New("no change")

func currentUser(snap store.Snapshot, userID string) (domain.User, error) {
	u, ok := snap.User(userID)
	if !ok {
		return domain.User{}, domain.ErrUnauthorized
	}
	return u, nil
}

func nowFunc(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
