package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"thinkflow/internal/store"
)

type stubNotifier struct {
	mu        sync.Mutex
	calls     int
	subscribe func(ctx context.Context, call int) (<-chan struct{}, error)
}

func (n *stubNotifier) Publish(context.Context) error { return nil }

func (n *stubNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	n.mu.Lock()
	n.calls++
	call := n.calls
	n.mu.Unlock()
	return n.subscribe(ctx, call)
}

func (n *stubNotifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// countingLoad returns a snapshot whose version advances on every call.
func countingLoad() func(context.Context) (store.Snapshot, error) {
	var v atomic.Uint64
	return func(context.Context) (store.Snapshot, error) {
		return store.Snapshot{Version: v.Add(1)}, nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextSnapshot(t *testing.T, feed <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-feed:
		if !ok {
			t.Fatalf("feed closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a snapshot")
	}
	return store.Snapshot{}
}

func TestWatchPollsWhenSubscribeFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := &stubNotifier{subscribe: func(context.Context, int) (<-chan struct{}, error) {
		return nil, errors.New("redis: connection refused")
	}}

	feed, err := watch(ctx, countingLoad(), n, 10*time.Millisecond, discardLogger())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	first := nextSnapshot(t, feed)
	second := nextSnapshot(t, feed)
	if second.Version <= first.Version {
		t.Fatalf("expected polling to deliver a newer snapshot, got %d then %d", first.Version, second.Version)
	}
	if n.Calls() < 2 {
		t.Fatalf("expected the change feed to be retried on poll ticks, got %d calls", n.Calls())
	}
}

func TestWatchKeepsPollingAfterFeedCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := &stubNotifier{subscribe: func(_ context.Context, call int) (<-chan struct{}, error) {
		if call > 1 {
			return nil, errors.New("redis: still down")
		}
		ch := make(chan struct{})
		close(ch)
		return ch, nil
	}}

	feed, err := watch(ctx, countingLoad(), n, 10*time.Millisecond, discardLogger())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	last := nextSnapshot(t, feed).Version
	for i := 0; i < 3; i++ {
		snap := nextSnapshot(t, feed)
		if snap.Version <= last {
			t.Fatalf("expected increasing versions, got %d after %d", snap.Version, last)
		}
		last = snap.Version
	}
}

func TestWatchLoadsOnNotification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 1)
	n := &stubNotifier{subscribe: func(context.Context, int) (<-chan struct{}, error) {
		return changes, nil
	}}

	feed, err := watch(ctx, countingLoad(), n, time.Hour, discardLogger())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	first := nextSnapshot(t, feed)

	changes <- struct{}{}
	if snap := nextSnapshot(t, feed); snap.Version != first.Version+1 {
		t.Fatalf("expected version %d, got %d", first.Version+1, snap.Version)
	}
}

func TestWatchClosesWhenLoadFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	load := func(context.Context) (store.Snapshot, error) {
		if calls.Add(1) > 1 {
			return store.Snapshot{}, errors.New("db down")
		}
		return store.Snapshot{Version: 1}, nil
	}

	feed, err := watch(ctx, load, nil, 10*time.Millisecond, discardLogger())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	nextSnapshot(t, feed)

	select {
	case _, ok := <-feed:
		if ok {
			t.Fatalf("expected feed to close after a failed load")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the feed to close")
	}
}
