package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-inventory/internal/model"
)

// DefaultInventoryKeyPrefix namespaces inventory keys in Redis.
const DefaultInventoryKeyPrefix = "seat_inventory"

// RedisInventoryRepo keeps each show's inventory as one JSON value.  Writes
// go through WATCH/MULTI/EXEC so a write only lands if the key was not
// modified after it was read; an aborted EXEC is retried from a fresh read.
type RedisInventoryRepo struct {
	rdb        *redis.Client
	prefix     string
	maxRetries int
}

// NewRedisInventoryRepo returns a RedisInventoryRepo using rdb.  Empty
// prefix and non-positive maxRetries select the defaults.
func NewRedisInventoryRepo(rdb *redis.Client, prefix string, maxRetries int) *RedisInventoryRepo {
	if rdb == nil {
		panic("nil redis client passed to NewRedisInventoryRepo")
	}
	if prefix == "" {
		prefix = DefaultInventoryKeyPrefix
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &RedisInventoryRepo{rdb: rdb, prefix: prefix, maxRetries: maxRetries}
}

func (r *RedisInventoryRepo) key(showID string) string {
	return r.prefix + ":" + showID
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Get returns the inventory for showID, or an empty record when the key
// does not exist.
func (r *RedisInventoryRepo) Get(ctx context.Context, showID string) (*model.SeatInventory, error) {
	return r.load(ctx, r.rdb, showID)
}

func (r *RedisInventoryRepo) load(ctx context.Context, g stringGetter, showID string) (*model.SeatInventory, error) {
	raw, err := g.Get(ctx, r.key(showID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NewSeatInventory(showID), nil
	}
	if err != nil {
		return nil, err
	}
	inv := model.NewSeatInventory(showID)
	if err := json.Unmarshal(raw, inv); err != nil {
		return nil, fmt.Errorf("decode inventory for %s: %w", showID, err)
	}
	if inv.BookedSeats == nil {
		inv.BookedSeats = []string{}
	}
	inv.ShowID = showID
	return inv, nil
}

// Update runs fn inside an optimistic Redis transaction on the show's key.
// See InventoryRepository for the contract.
func (r *RedisInventoryRepo) Update(ctx context.Context, showID string, fn MutateFunc) (*model.SeatInventory, error) {
	key := r.key(showID)
	wait := newRetryBackOff()
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := pause(ctx, wait.NextBackOff()); err != nil {
				return nil, err
			}
		}
		var out *model.SeatInventory
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := r.load(ctx, tx, showID)
			if err != nil {
				return err
			}
			next, err := fn(cur.Clone())
			if err != nil {
				return err
			}
			if next == nil {
				out = cur
				return nil
			}
			next.ShowID = showID
			next.Version = cur.Version + 1
			if next.UpdatedAt.IsZero() {
				next.UpdatedAt = time.Now().UTC()
			}
			data, err := json.Marshal(next)
			if err != nil {
				return err
			}
			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			}); err != nil {
				return err
			}
			out = next
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: show %s after %d attempts", ErrInventoryContention, showID, r.maxRetries+1)
}

var (
	_ InventoryRepository = (*RedisInventoryRepo)(nil)
	_ InventoryRepository = (*MySQLInventoryRepo)(nil)
)
