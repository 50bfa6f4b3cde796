package service

import (
	"context"
	"testing"
	"time"

	"thinkflow/internal/domain"
	"thinkflow/internal/store"
	"thinkflow/internal/store/memory"
	"thinkflow/internal/syncer"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestSync(t *testing.T) *syncer.Layer {
	t.Helper()
	l := syncer.New(memory.New(), syncer.Options{})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func addUser(t *testing.T, sync Sync, name string) domain.User {
	t.Helper()
	u, created, err := sync.ResolveUser(context.Background(),
		domain.ExternalIdentity{Provider: "test", ExternalID: name},
		domain.User{Username: name, Friends: []string{}, FriendRequests: []domain.FriendRequest{}})
	if err != nil || !created {
		t.Fatalf("ResolveUser(%s): created=%v err=%v", name, created, err)
	}
	return u
}

func befriend(t *testing.T, sync Sync, a, b domain.User) {
	t.Helper()
	err := sync.MutateUsers(context.Background(), []string{a.ID, b.ID}, func(users map[string]*domain.User) error {
		users[a.ID].Friends = append(users[a.ID].Friends, b.ID)
		users[b.ID].Friends = append(users[b.ID].Friends, a.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("befriend: %v", err)
	}
}

func user(t *testing.T, sync Sync, id string) domain.User {
	t.Helper()
	u, ok := sync.Latest().User(id)
	if !ok {
		t.Fatalf("user %s not in snapshot", id)
	}
	return u
}

// stubSync fails every write with err and serves snap.
type stubSync struct {
	snap store.Snapshot
	err  error
}

func (s *stubSync) Latest() store.Snapshot { return s.snap }
func (s *stubSync) InsertThoughts(context.Context, []domain.Thought) (int, error) {
	return 0, s.err
}
func (s *stubSync) UpdateThought(context.Context, domain.Thought) error { return s.err }
func (s *stubSync) DeleteThought(context.Context, string) error         { return s.err }
func (s *stubSync) DeleteThoughtsByOwner(context.Context, string) (int, error) {
	return 0, s.err
}
func (s *stubSync) MutateUsers(context.Context, []string, store.UsersMutation) error { return s.err }
func (s *stubSync) ResolveUser(context.Context, domain.ExternalIdentity, domain.User) (domain.User, bool, error) {
	return domain.User{}, false, s.err
}
