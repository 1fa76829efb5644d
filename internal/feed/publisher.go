// Package feed pushes booked-seat changes to live subscribers over Redis
// pub/sub and keeps the per-viewer seat selection state.
package feed

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-inventory/internal/model"
)

// DefaultChannelPrefix namespaces change channels.
const DefaultChannelPrefix = "seat_inventory"

// Channel returns the pub/sub channel carrying changes for showID.
func Channel(prefix, showID string) string {
	return prefix + ":" + showID + ":changes"
}

// Change is the message sent after every committed inventory write.
type Change struct {
	ShowID      string   `json:"show_id"`
	Version     int64    `json:"version"`
	BookedSeats []string `json:"booked_seats"`
}

// Publisher announces committed inventories on the show's channel.
type Publisher struct {
	rdb    *redis.Client
	prefix string
}

func NewPublisher(rdb *redis.Client, prefix string) *Publisher {
	if rdb == nil {
		panic("nil redis client passed to feed.NewPublisher")
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &Publisher{rdb: rdb, prefix: prefix}
}

func (p *Publisher) Publish(ctx context.Context, inv *model.SeatInventory) error {
	data, err := json.Marshal(Change{ShowID: inv.ShowID, Version: inv.Version, BookedSeats: inv.BookedSeats})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(p.prefix, inv.ShowID), data).Err()
}
