// Package redisfeed fans store change notifications out to every server
// instance over Redis Pub/Sub.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "thinkflow:changes"

type changeMessage struct {
	InstanceID string `json:"instance_id"`
	At         int64  `json:"at"`
}

type Opts struct {
	Channel string
	Logger  *slog.Logger
}

// Notifier signals local subscribers directly and other instances through
// Redis. Messages an instance published itself are ignored on receipt since
// its own subscribers were already signalled.
type Notifier struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	logger     *slog.Logger

	mu    sync.Mutex
	local map[chan struct{}]struct{}
}

func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func New(rdb *redis.Client, opts Opts) *Notifier {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Notifier{
		rdb:        rdb,
		channel:    opts.Channel,
		instanceID: uuid.NewString(),
		logger:     opts.Logger,
		local:      make(map[chan struct{}]struct{}),
	}
}

func (n *Notifier) Publish(ctx context.Context) error {
	n.signalLocal()

	payload, err := json.Marshal(changeMessage{InstanceID: n.instanceID, At: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe returns a channel that receives a value after every change. Bursts
// collapse into one pending signal. The channel closes when ctx ends or the
// Redis subscription is torn down.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	pubsub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	out := make(chan struct{}, 1)
	n.mu.Lock()
	n.local[out] = struct{}{}
	n.mu.Unlock()

	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		defer n.unregister(out)

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if !n.fromOtherInstance(msg.Payload) {
					continue
				}
				n.mu.Lock()
				signal(out)
				n.mu.Unlock()
			}
		}
	}()
	return out, nil
}

func (n *Notifier) fromOtherInstance(payload string) bool {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		n.logger.Warn("redisfeed: bad change message", "err", err)
		// Treat it as a change; a spurious reload is harmless.
		return true
	}
	return msg.InstanceID != n.instanceID
}

func (n *Notifier) signalLocal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.local {
		signal(ch)
	}
}

func (n *Notifier) unregister(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.local, ch)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
