package repository

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/iliyamo/seat-inventory/internal/model"
)

// DefaultMaxRetries bounds how often Update re-runs after losing a race.
const DefaultMaxRetries = 10

// MutateFunc receives a private copy of the current record and returns the
// record to write.  Returning an error aborts without writing.  Returning
// (nil, nil) leaves the record untouched and Update returns the current
// state.  The function may run more than once when a concurrent writer wins
// the race, so it must not have side effects.
type MutateFunc func(current *model.SeatInventory) (*model.SeatInventory, error)

// InventoryRepository stores one SeatInventory per show id.
//
// Get never fails for a missing show; it returns an empty record with a
// zero Version.  Update is the only way to change a record: the read, the
// MutateFunc check and the write form one unit with respect to other
// Update calls on the same show.  Different shows never contend.
type InventoryRepository interface {
	Get(ctx context.Context, showID string) (*model.SeatInventory, error)
	Update(ctx context.Context, showID string, fn MutateFunc) (*model.SeatInventory, error)
}

// newRetryBackOff spaces the retries of one Update after lost races: about
// 2ms at first, growing to at most 50ms, jittered so racing writers drift
// apart.
func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.Reset()
	return b
}

// pause waits d.  It returns early with the context error when ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
