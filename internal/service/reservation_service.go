// Package service holds the seat reservation, booking and checkout
// workflows.  Services depend on small store interfaces and report failures
// through the error values declared in errors.go.
package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/repository"
)

// SeatPublisher announces a committed inventory to live seat subscribers.
type SeatPublisher interface {
	Publish(ctx context.Context, inv *model.SeatInventory) error
}

// ReserveRequest asks for Seats on ShowID.  Meta is recorded as the show's
// last booking metadata.  When IdempotencyKey is set, the same caller
// presenting the same key with the same seats and payment reference again
// gets the earlier result without writing.  Any other use of a recorded key
// fails with ErrIdempotencyKeyReused.
type ReserveRequest struct {
	ShowID         string
	Seats          []string
	Meta           model.BookingMeta
	IdempotencyKey string
}

// Reservation is the outcome of a successful Reserve.
type Reservation struct {
	ShowID      string   `json:"show_id"`
	Reserved    []string `json:"reserved_seats"`
	BookedSeats []string `json:"booked_seats"`
	Version     int64    `json:"version"`
	Replayed    bool     `json:"replayed"`
}

type ReservationService struct {
	repo    repository.InventoryRepository
	pub     SeatPublisher
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewReservationService wires the reservation workflow.  pub may be nil when
// no live feed is configured.  A positive timeout bounds each reservation
// independently of the caller's context.
func NewReservationService(repo repository.InventoryRepository, pub SeatPublisher, log *zap.Logger, timeout time.Duration) *ReservationService {
	if repo == nil {
		panic("nil inventory repository passed to NewReservationService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{repo: repo, pub: pub, log: log, timeout: timeout, now: time.Now}
}

// Reserve books all requested seats on the show or none of them.
//
// The check and the write happen inside one optimistic update, so two
// overlapping requests can never both succeed.  The work is detached from
// ctx cancellation: once started it either commits or fails on its own
// timeout.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	showID := strings.TrimSpace(req.ShowID)
	if showID == "" {
		return nil, invalid("show id is required")
	}
	seats, err := normalizeSeats(req.Seats)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(req.IdempotencyKey)

	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var replayed bool
	inv, err := s.repo.Update(ctx, showID, func(cur *model.SeatInventory) (*model.SeatInventory, error) {
		replayed = false
		if key != "" {
			if prev, ok := cur.IdempotencyKeys[key]; ok {
				if prev.UID != req.Meta.UID || prev.PaymentRef != req.Meta.PaymentRef || !sameSeats(prev.Seats, seats) {
					return nil, ErrIdempotencyKeyReused
				}
				replayed = true
				return nil, nil
			}
		}
		if c := cur.Conflicts(seats); len(c) > 0 {
			return nil, &SeatConflictError{ShowID: showID, Seats: c}
		}
		cur.BookedSeats = append(cur.BookedSeats, seats...)
		cur.UpdatedAt = s.now().UTC()
		meta := req.Meta
		meta.SeatCount = len(seats)
		meta.IdempotencyKey = key
		cur.LastBookingMeta = &meta
		if key != "" {
			if cur.IdempotencyKeys == nil {
				cur.IdempotencyKeys = make(map[string]model.IdempotencyEntry)
			}
			cur.IdempotencyKeys[key] = model.IdempotencyEntry{
				Seats:      slices.Clone(seats),
				UID:        req.Meta.UID,
				PaymentRef: req.Meta.PaymentRef,
			}
		}
		return cur, nil
	})
	if err != nil {
		if IsValidationError(err) || IsConflictError(err) {
			s.log.Info("reservation rejected",
				zap.String("show_id", showID), zap.Strings("seats", seats), zap.Error(err))
			return nil, err
		}
		s.log.Error("reservation failed",
			zap.String("show_id", showID), zap.Strings("seats", seats), zap.Error(err))
		return nil, storeUnavailable(err)
	}

	if replayed {
		s.log.Info("reservation replayed", zap.String("show_id", showID), zap.String("idempotency_key", key))
	} else {
		s.log.Info("seats reserved",
			zap.String("show_id", showID), zap.Strings("seats", seats), zap.Int64("version", inv.Version))
		s.publish(ctx, inv)
	}

	return &Reservation{
		ShowID:      showID,
		Reserved:    seats,
		BookedSeats: inv.BookedSeats,
		Version:     inv.Version,
		Replayed:    replayed,
	}, nil
}

// publish is best effort; the reservation is already committed.
func (s *ReservationService) publish(ctx context.Context, inv *model.SeatInventory) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, inv); err != nil {
		s.log.Warn("seat feed publish failed",
			zap.String("show_id", inv.ShowID), zap.Int64("version", inv.Version), zap.Error(err))
	}
}

// BookedSeats returns the seats booked on showID, empty when none.
func (s *ReservationService) BookedSeats(ctx context.Context, showID string) ([]string, error) {
	inv, err := s.Inventory(ctx, showID)
	if err != nil {
		return nil, err
	}
	return inv.BookedSeats, nil
}

// Inventory returns the full record for showID including its last booking
// metadata.
func (s *ReservationService) Inventory(ctx context.Context, showID string) (*model.SeatInventory, error) {
	showID = strings.TrimSpace(showID)
	if showID == "" {
		return nil, invalid("show id is required")
	}
	inv, err := s.repo.Get(ctx, showID)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return inv, nil
}

// normalizeSeats trims each code and drops repeats, keeping request order.
// Codes are otherwise opaque.
func normalizeSeats(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, invalid("at least one seat is required")
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		seat := strings.TrimSpace(raw)
		if seat == "" {
			return nil, invalid("seat codes must not be blank")
		}
		if _, dup := seen[seat]; dup {
			continue
		}
		seen[seat] = struct{}{}
		out = append(out, seat)
	}
	return out, nil
}

func sameSeats(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
