package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore remembers processed webhook event IDs. Transitions are already
// expressed as absolute target states, so replays are harmless to status;
// the dedup layer exists to keep side effects (notifications, history
// appends) from repeating and to short-circuit provider redelivery storms.
type DedupStore interface {
	// Seen reports whether the event ID was already processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Mark records the event ID as processed.
	Mark(ctx context.Context, eventID string) error
}

const (
	dedupKeyPrefix = "billing:webhook:"
	dedupTTL       = 72 * time.Hour // providers stop redelivering well within this window
)

// RedisDedup is a Redis-backed DedupStore with a TTL per event ID.
type RedisDedup struct {
	client redis.UniversalClient
}

// NewRedisDedup creates a dedup store on the given Redis client.
func NewRedisDedup(client redis.UniversalClient) *RedisDedup {
	return &RedisDedup{client: client}
}

func (d *RedisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDedup) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, dedupKeyPrefix+eventID, 1, dedupTTL).Err()
}

// MemoryDedup is an in-memory DedupStore for tests and single-instance
// deployments.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDedup creates an empty in-memory dedup store.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{seen: make(map[string]struct{})}
}

func (d *MemoryDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[eventID]
	return ok, nil
}

func (d *MemoryDedup) Mark(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = struct{}{}
	return nil
}
