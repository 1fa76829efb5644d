package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seat-inventory/internal/model"
)

// MySQLInventoryRepo keeps seat inventory in the seat_inventory table.  Each
// row carries a version column used for optimistic concurrency: the first
// write for a show is an INSERT (a duplicate key means another writer got
// there first) and every later write is an UPDATE guarded by the version
// that was read.  Lost races are retried from a fresh read.
type MySQLInventoryRepo struct {
	db         *sql.DB
	maxRetries int
}

// NewMySQLInventoryRepo returns a MySQLInventoryRepo bound to db.  A
// non-positive maxRetries selects DefaultMaxRetries.
func NewMySQLInventoryRepo(db *sql.DB, maxRetries int) *MySQLInventoryRepo {
	if db == nil {
		panic("nil db passed to NewMySQLInventoryRepo")
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &MySQLInventoryRepo{db: db, maxRetries: maxRetries}
}

const selectInventoryQ = `SELECT booked_seats, idempotency_keys, last_booking_meta, version, updated_at
                          FROM seat_inventory
                          WHERE show_id = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

// Get returns the inventory for showID, or an empty record when no
// reservation has been committed yet.
func (r *MySQLInventoryRepo) Get(ctx context.Context, showID string) (*model.SeatInventory, error) {
	return scanInventory(r.db.QueryRowContext(ctx, selectInventoryQ, showID), showID)
}

// Update runs fn against the current row and writes the result if no other
// writer committed in between.  See InventoryRepository for the contract.
func (r *MySQLInventoryRepo) Update(ctx context.Context, showID string, fn MutateFunc) (*model.SeatInventory, error) {
	wait := newRetryBackOff()
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := pause(ctx, wait.NextBackOff()); err != nil {
				return nil, err
			}
		}
		rec, err := r.tryUpdate(ctx, showID, fn)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		return rec, err
	}
	return nil, fmt.Errorf("%w: show %s after %d attempts", ErrInventoryContention, showID, r.maxRetries+1)
}

func (r *MySQLInventoryRepo) tryUpdate(ctx context.Context, showID string, fn MutateFunc) (*model.SeatInventory, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cur, err := scanInventory(tx.QueryRowContext(ctx, selectInventoryQ, showID), showID)
	if err != nil {
		return nil, err
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cur, nil
	}
	next.ShowID = showID
	next.Version = cur.Version + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}

	booked, keys, meta, err := encodeInventory(next)
	if err != nil {
		return nil, err
	}
	if cur.Version == 0 {
		const ins = `INSERT INTO seat_inventory (show_id, booked_seats, idempotency_keys, last_booking_meta, version, updated_at)
                     VALUES (?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, ins, showID, booked, keys, meta, next.Version, next.UpdatedAt.UTC()); err != nil {
			if isDuplicateKey(err) {
				return nil, errVersionConflict
			}
			return nil, err
		}
	} else {
		const upd = `UPDATE seat_inventory
                     SET booked_seats = ?, idempotency_keys = ?, last_booking_meta = ?, version = ?, updated_at = ?
                     WHERE show_id = ? AND version = ?`
		res, err := tx.ExecContext(ctx, upd, booked, keys, meta, next.Version, next.UpdatedAt.UTC(), showID, cur.Version)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errVersionConflict
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return next, nil
}

func scanInventory(row rowScanner, showID string) (*model.SeatInventory, error) {
	var booked, keys, meta []byte
	var version int64
	var updatedAt time.Time
	if err := row.Scan(&booked, &keys, &meta, &version, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NewSeatInventory(showID), nil
		}
		return nil, err
	}
	inv := model.NewSeatInventory(showID)
	inv.Version = version
	inv.UpdatedAt = updatedAt.UTC()
	if len(booked) > 0 {
		if err := json.Unmarshal(booked, &inv.BookedSeats); err != nil {
			return nil, fmt.Errorf("decode booked_seats for %s: %w", showID, err)
		}
	}
	if inv.BookedSeats == nil {
		inv.BookedSeats = []string{}
	}
	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &inv.IdempotencyKeys); err != nil {
			return nil, fmt.Errorf("decode idempotency_keys for %s: %w", showID, err)
		}
	}
	if len(meta) > 0 {
		var m model.BookingMeta
		if err := json.Unmarshal(meta, &m); err != nil {
			return nil, fmt.Errorf("decode last_booking_meta for %s: %w", showID, err)
		}
		inv.LastBookingMeta = &m
	}
	return inv, nil
}

// encodeInventory returns the JSON column values for inv.  Nil maps and
// metadata are stored as SQL NULL.
func encodeInventory(inv *model.SeatInventory) (booked []byte, keys, meta any, err error) {
	seats := inv.BookedSeats
	if seats == nil {
		seats = []string{}
	}
	if booked, err = json.Marshal(seats); err != nil {
		return nil, nil, nil, err
	}
	if len(inv.IdempotencyKeys) > 0 {
		b, err := json.Marshal(inv.IdempotencyKeys)
		if err != nil {
			return nil, nil, nil, err
		}
		keys = b
	}
	if inv.LastBookingMeta != nil {
		b, err := json.Marshal(inv.LastBookingMeta)
		if err != nil {
			return nil, nil, nil, err
		}
		meta = b
	}
	return booked, keys, meta, nil
}
