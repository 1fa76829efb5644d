package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/model"
)

// InventoryReader supplies the current state delivered on subscribe.
type InventoryReader interface {
	Get(ctx context.Context, showID string) (*model.SeatInventory, error)
}

// Hub hands out live booked-seat subscriptions.
type Hub struct {
	rdb    *redis.Client
	prefix string
	inv    InventoryReader
	log    *zap.Logger
	active atomic.Int64
}

func NewHub(rdb *redis.Client, prefix string, inv InventoryReader, log *zap.Logger) *Hub {
	if rdb == nil || inv == nil {
		panic("nil dependency passed to feed.NewHub")
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{rdb: rdb, prefix: prefix, inv: inv, log: log}
}

// Active reports how many subscriptions are still running.
func (h *Hub) Active() int64 { return h.active.Load() }

// Subscribe delivers the booked seats of showID to onSeats: the current set
// first (empty when nothing is booked), then the full set after every
// committed change.  Callbacks run on one goroutine per subscription and
// never see an older set after a newer one.  onError may be nil.
//
// The subscription ends when the returned function is called or ctx is
// done.  The returned function is safe to call more than once and from
// inside a callback.
func (h *Hub) Subscribe(ctx context.Context, showID string, onSeats func([]string), onError func(error)) (func(), error) {
	if showID == "" {
		return nil, errors.New("feed: show id is required")
	}
	if onSeats == nil {
		return nil, errors.New("feed: onSeats callback is required")
	}
	if onError == nil {
		onError = func(error) {}
	}

	// Subscribe before reading the current state so no commit in between is
	// missed; anything older than the state read is dropped by version.
	ps := h.rdb.Subscribe(ctx, Channel(h.prefix, showID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("feed: subscribe %s: %w", showID, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	h.active.Add(1)
	ch := ps.Channel()
	go h.run(subCtx, ps, ch, showID, onSeats, onError)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}, nil
}

func (h *Hub) run(ctx context.Context, ps *redis.PubSub, ch <-chan *redis.Message, showID string, onSeats func([]string), onError func(error)) {
	defer h.active.Add(-1)
	defer ps.Close()

	var last int64
	inv, err := h.inv.Get(ctx, showID)
	if err != nil {
		onError(err)
	} else {
		last = inv.Version
		onSeats(slices.Clone(inv.BookedSeats))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				h.log.Warn("feed: bad change message", zap.String("show_id", showID), zap.Error(err))
				onError(err)
				continue
			}
			if c.Version <= last {
				continue
			}
			last = c.Version
			if c.BookedSeats == nil {
				c.BookedSeats = []string{}
			}
			if ctx.Err() != nil {
				return
			}
			onSeats(c.BookedSeats)
		}
	}
}
