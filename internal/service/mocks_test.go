package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/queue"
	"github.com/iliyamo/seat-inventory/internal/repository"
)

// MockInventoryRepository is a mock implementation of InventoryRepository
type MockInventoryRepository struct {
	GetFunc    func(ctx context.Context, showID string) (*model.SeatInventory, error)
	UpdateFunc func(ctx context.Context, showID string, fn repository.MutateFunc) (*model.SeatInventory, error)
}

func (m *MockInventoryRepository) Get(ctx context.Context, showID string) (*model.SeatInventory, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, showID)
	}
	return model.NewSeatInventory(showID), nil
}

func (m *MockInventoryRepository) Update(ctx context.Context, showID string, fn repository.MutateFunc) (*model.SeatInventory, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, showID, fn)
	}
	return nil, errors.New("unexpected Update call")
}

// MockBookingStore keeps bookings in memory and enforces one booking per
// (CheckoutRef, UID) like the bookings table.  CreateFunc, when set, runs
// before the booking is stored and may reject it.
type MockBookingStore struct {
	CreateFunc func(ctx context.Context, b *model.Booking) error
	ListFunc   func(ctx context.Context, uid string) ([]model.Booking, error)

	mu       sync.Mutex
	bookings []model.Booking
}

func (m *MockBookingStore) Create(ctx context.Context, b *model.Booking) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, b); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CheckoutRef != "" {
		for _, prev := range m.bookings {
			if prev.CheckoutRef == b.CheckoutRef && prev.UID == b.UID {
				return repository.ErrDuplicateCheckout
			}
		}
	}
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *MockBookingStore) ListByUser(ctx context.Context, uid string) ([]model.Booking, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, uid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Booking{}
	for i := len(m.bookings) - 1; i >= 0; i-- {
		if m.bookings[i].UID == uid {
			out = append(out, m.bookings[i])
		}
	}
	return out, nil
}

func (m *MockBookingStore) GetByTicketAndUser(_ context.Context, ticketID, uid string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.TicketID == ticketID && b.UID == uid {
			b := b
			return &b, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (m *MockBookingStore) FindByPaymentRef(_ context.Context, uid, paymentRef string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.CheckoutRef == paymentRef && b.UID == uid {
			b := b
			return &b, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (m *MockBookingStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

// recordingPublisher captures published inventories.
type recordingPublisher struct {
	mu   sync.Mutex
	err  error
	sent []*model.SeatInventory
}

func (p *recordingPublisher) Publish(_ context.Context, inv *model.SeatInventory) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, inv.Clone())
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

// recordingEvents captures booking events.
type recordingEvents struct {
	mu     sync.Mutex
	err    error
	events []queue.BookingConfirmedEvent
}

func (e *recordingEvents) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func newRedisInventory(t *testing.T) *repository.RedisInventoryRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return repository.NewRedisInventoryRepo(rdb, "", 200)
}
