// Package events carries revalidation signals: messages telling a user's open
// sessions that their project list changed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aetherium-labs/aetherium-backend/internal/logging"
)

const revalidateChannelPrefix = "aeth:revalidate:" // aeth:revalidate:{uid}

const (
	TypeProjectDeleted = "project_deleted"
	TypeProjectChanged = "project_changed"
)

type Event struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	ProjectID string    `json:"projectId,omitempty"`
	At        time.Time `json:"at"`
}

// Bus publishes and subscribes to per-user revalidation events.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe delivers events for uid until ctx is done or cancel is called.
	Subscribe(ctx context.Context, uid string) (events <-chan Event, cancel func(), err error)
}

func channel(uid string) string {
	return revalidateChannelPrefix + uid
}

// RedisBus fans events out across API instances through Redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel(ev.UserID), data).Err(); err != nil {
		return fmt.Errorf("publish revalidation: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, uid string) (<-chan Event, func(), error) {
	pubsub := b.client.Subscribe(ctx, channel(uid))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe revalidation: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logging.L().Sugar().Warnf("dropping malformed revalidation payload on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() { cancel(); <-done }, nil
}

// LocalBus delivers events within one process. Used when Redis is not configured.
type LocalBus struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[chan Event]struct{})}
}

func (b *LocalBus) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
			// slow subscriber; it will catch up on the next signal
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, uid string) (<-chan Event, func(), error) {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[uid] == nil {
		b.subs[uid] = make(map[chan Event]struct{})
	}
	b.subs[uid][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[uid], ch)
			if len(b.subs[uid]) == 0 {
				delete(b.subs, uid)
			}
			close(ch)
			b.mu.Unlock()
			close(stop)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return ch, cancel, nil
}
