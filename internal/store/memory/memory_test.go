package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thinkflow/internal/domain"
)

func TestInsertThoughtsSkipsExistingIDs(t *testing.T) {
	ctx := context.Background()
	b := New()

	n, err := b.InsertThoughts(ctx, []domain.Thought{{ID: "t1", UserID: "u1", Text: "one", CreatedAt: 1}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = b.InsertThoughts(ctx, []domain.Thought{
		{ID: "t1", UserID: "u1", Text: "overwrite attempt", CreatedAt: 9},
		{ID: "t2", UserID: "u1", Text: "two", CreatedAt: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, err := b.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Thoughts, 2)
	t1, ok := snap.Thought("t1")
	require.True(t, ok)
	assert.Equal(t, "one", t1.Text)
	assert.Equal(t, "t2", snap.Thoughts[0].ID, "newest first")
}

func TestInsertThoughtsRejectsMissingIDWithoutPartialWrite(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, err := b.InsertThoughts(ctx, []domain.Thought{{ID: "ok", Text: "x"}, {Text: "no id"}})
	require.ErrorIs(t, err, domain.ErrValidation)

	snap, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Thoughts)
	assert.Zero(t, snap.Version)
}

func TestUpdateAndDeleteMissingThought(t *testing.T) {
	ctx := context.Background()
	b := New()

	assert.ErrorIs(t, b.UpdateThought(ctx, domain.Thought{ID: "nope"}), domain.ErrNotFound)
	assert.ErrorIs(t, b.DeleteThought(ctx, "nope"), domain.ErrNotFound)
}

func TestDeleteThoughtsByOwner(t *testing.T) {
	ctx := context.Background()
	b := New()
	_, err := b.InsertThoughts(ctx, []domain.Thought{
		{ID: "a", UserID: "u1"}, {ID: "b", UserID: "u1"}, {ID: "c", UserID: "u2"},
	})
	require.NoError(t, err)

	n, err := b.DeleteThoughtsByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, _ := b.Snapshot(ctx)
	require.Len(t, snap.Thoughts, 1)
	assert.Equal(t, "c", snap.Thoughts[0].ID)
}

func TestResolveUserNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	b := New()
	ident := domain.ExternalIdentity{Provider: "google", ExternalID: "sub-1"}

	first, created, err := b.ResolveUser(ctx, ident, domain.User{Username: "alex", JoinedAt: 10})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "google:sub-1", first.ExternalKey)
	assert.NotNil(t, first.Friends)
	assert.NotNil(t, first.FriendRequests)

	again, created, err := b.ResolveUser(ctx, ident, domain.User{Username: "someone else"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "alex", again.Username)

	snap, _ := b.Snapshot(ctx)
	assert.Len(t, snap.Users, 1)
}

func TestMutateUsersAbortsOnError(t *testing.T) {
	ctx := context.Background()
	b := New()
	u, _, err := b.ResolveUser(ctx, domain.ExternalIdentity{Provider: "local", ExternalID: "alex"}, domain.User{Username: "alex"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = b.MutateUsers(ctx, []string{u.ID}, func(users map[string]*domain.User) error {
		users[u.ID].Friends = append(users[u.ID].Friends, "x")
		return boom
	})
	require.ErrorIs(t, err, boom)

	snap, _ := b.Snapshot(ctx)
	got, _ := snap.User(u.ID)
	assert.Empty(t, got.Friends)
}

func TestMutateUsersCommitsAllUsersTogether(t *testing.T) {
	ctx := context.Background()
	b := New()
	a, _, _ := b.ResolveUser(ctx, domain.ExternalIdentity{Provider: "local", ExternalID: "a"}, domain.User{Username: "a"})
	c, _, _ := b.ResolveUser(ctx, domain.ExternalIdentity{Provider: "local", ExternalID: "c"}, domain.User{Username: "c"})

	err := b.MutateUsers(ctx, []string{a.ID, c.ID, "ghost"}, func(users map[string]*domain.User) error {
		_, ghost := users["ghost"]
		assert.False(t, ghost)
		users[a.ID].Friends = append(users[a.ID].Friends, c.ID)
		users[c.ID].Friends = append(users[c.ID].Friends, a.ID)
		return nil
	})
	require.NoError(t, err)

	snap, _ := b.Snapshot(ctx)
	ua, _ := snap.User(a.ID)
	uc, _ := snap.User(c.ID)
	assert.True(t, ua.HasFriend(c.ID))
	assert.True(t, uc.HasFriend(a.ID))
}

func TestMutateUsersWithoutChangesKeepsVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := New()
	u, _, err := b.ResolveUser(ctx, domain.ExternalIdentity{Provider: "local", ExternalID: "alex"}, domain.User{Username: "alex", Avatar: "a.png"})
	require.NoError(t, err)

	ch, err := b.Watch(ctx)
	require.NoError(t, err)
	before := <-ch

	err = b.MutateUsers(ctx, []string{u.ID}, func(users map[string]*domain.User) error {
		users[u.ID].Username = "alex"
		users[u.ID].Avatar = "a.png"
		return nil
	})
	require.NoError(t, err)

	snap, _ := b.Snapshot(ctx)
	assert.Equal(t, before.Version, snap.Version)
	select {
	case got := <-ch:
		t.Fatalf("unexpected snapshot pushed at version %d", got.Version)
	case <-time.After(50 * time.Millisecond):
	}

	err = b.MutateUsers(ctx, []string{u.ID}, func(users map[string]*domain.User) error {
		users[u.ID].Avatar = "b.png"
		return nil
	})
	require.NoError(t, err)
	snap, _ = b.Snapshot(ctx)
	assert.Equal(t, before.Version+1, snap.Version)
}

func TestWatchDeliversLatestSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := New()

	ch, err := b.Watch(ctx)
	require.NoError(t, err)

	initial := <-ch
	assert.Zero(t, initial.Version)

	_, err = b.InsertThoughts(ctx, []domain.Thought{{ID: "t1"}})
	require.NoError(t, err)
	_, err = b.InsertThoughts(ctx, []domain.Thought{{ID: "t2"}})
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.Equal(t, uint64(2), snap.Version)
		assert.Len(t, snap.Thoughts, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestCloseEndsWatchers(t *testing.T) {
	b := New()
	ch, err := b.Watch(context.Background())
	require.NoError(t, err)
	<-ch

	require.NoError(t, b.Close())
	_, open := <-ch
	assert.False(t, open)

	_, err = b.Watch(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestSessionsStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessionsStore()
	s.now = func() time.Time { return now }

	id, err := s.CreateSession(ctx, "u1", now.Add(time.Hour), "", "")
	require.NoError(t, err)

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	require.NoError(t, s.RevokeSession(ctx, id, now))
	_, err = s.GetSession(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	expired, _ := s.CreateSession(ctx, "u1", now.Add(-time.Second), "", "")
	_, err = s.GetSession(ctx, expired)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCredentialsStore(t *testing.T) {
	ctx := context.Background()
	s := NewCredentialsStore()

	require.NoError(t, s.CreateCredential(ctx, domain.Credential{Username: "Alex", UserID: "u1"}))
	assert.ErrorIs(t, s.CreateCredential(ctx, domain.Credential{Username: "alex", UserID: "u2"}), domain.ErrUsernameTaken)

	c, err := s.GetCredential(ctx, " ALEX ")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
}
