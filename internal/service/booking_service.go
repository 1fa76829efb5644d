package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/queue"
	"github.com/iliyamo/seat-inventory/internal/repository"
)

// maxTicketAttempts bounds ticket id regeneration on a duplicate key.
const maxTicketAttempts = 3

// BookingStore is the persistence the booking workflow needs.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	ListByUser(ctx context.Context, uid string) ([]model.Booking, error)
	GetByTicketAndUser(ctx context.Context, ticketID, uid string) (*model.Booking, error)
	FindByPaymentRef(ctx context.Context, uid, paymentRef string) (*model.Booking, error)
}

// TicketGenerator hands out ticket ids.
type TicketGenerator interface {
	Next() (string, error)
}

// EventPublisher forwards booking events to the message broker.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// CreateBookingInput describes a purchase whose seats are already reserved.
type CreateBookingInput struct {
	UID           string
	MovieID       string
	MovieTitle    string
	Theater       string
	Date          string
	Time          string
	ShowID        string
	Seats         []string
	TotalAmount   int64
	PaymentRef    string
	PaymentMethod string
	// CheckoutRef is set by checkout.  A uid gets at most one booking per
	// CheckoutRef; a second attempt fails with repository.ErrDuplicateCheckout.
	CheckoutRef string
}

type BookingService struct {
	repo    BookingStore
	tickets TicketGenerator
	events  EventPublisher
	log     *zap.Logger
	now     func() time.Time
}

// NewBookingService wires the booking workflow.  events may be nil.
func NewBookingService(repo BookingStore, tickets TicketGenerator, events EventPublisher, log *zap.Logger) *BookingService {
	if repo == nil || tickets == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingService{repo: repo, tickets: tickets, events: events, log: log, now: time.Now}
}

// CreateBooking stores a confirmed booking with a fresh id and ticket id.
// It is not idempotent: two identical calls create two bookings, unless
// CheckoutRef is set.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	showID := strings.TrimSpace(in.ShowID)
	if showID == "" {
		return nil, invalid("show id is required")
	}
	seats, err := normalizeSeats(in.Seats)
	if err != nil {
		return nil, err
	}
	if in.TotalAmount < 0 {
		return nil, invalid("total amount must not be negative")
	}

	b := &model.Booking{
		ID:            uuid.NewString(),
		UID:           in.UID,
		MovieID:       in.MovieID,
		MovieTitle:    in.MovieTitle,
		Theater:       in.Theater,
		Date:          in.Date,
		Time:          in.Time,
		ShowID:        showID,
		Seats:         seats,
		TotalAmount:   in.TotalAmount,
		PaymentRef:    in.PaymentRef,
		PaymentMethod: in.PaymentMethod,
		CheckoutRef:   in.CheckoutRef,
		Status:        model.BookingStatusConfirmed,
		CreatedAt:     s.now().UTC(),
	}

	for attempt := 1; ; attempt++ {
		ticketID, err := s.tickets.Next()
		if err != nil {
			return nil, fmt.Errorf("generate ticket id: %w", err)
		}
		b.TicketID = ticketID
		err = s.repo.Create(ctx, b)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateTicket) && attempt < maxTicketAttempts {
			s.log.Warn("ticket id collision, regenerating", zap.String("ticket_id", ticketID))
			continue
		}
		if errors.Is(err, repository.ErrDuplicateCheckout) {
			return nil, err
		}
		return nil, storeUnavailable(err)
	}

	s.log.Info("booking created",
		zap.String("ticket_id", b.TicketID), zap.String("uid", b.UID),
		zap.String("show_id", b.ShowID), zap.Strings("seats", b.Seats))
	s.publishConfirmed(ctx, b)
	return b, nil
}

func (s *BookingService) publishConfirmed(ctx context.Context, b *model.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBookingConfirmed(ctx, queue.NewBookingConfirmedEvent(b)); err != nil {
		s.log.Warn("booking event publish failed", zap.String("ticket_id", b.TicketID), zap.Error(err))
	}
}

// ListUserBookings returns uid's bookings, newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, uid string) ([]model.Booking, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, invalid("user id is required")
	}
	out, err := s.repo.ListByUser(ctx, uid)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return out, nil
}

// GetBookingByTicket returns the booking with ticketID if uid owns it.
// Otherwise repository.ErrBookingNotFound is returned.
func (s *BookingService) GetBookingByTicket(ctx context.Context, ticketID, uid string) (*model.Booking, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, invalid("ticket id is required")
	}
	if strings.TrimSpace(uid) == "" {
		return nil, invalid("user id is required")
	}
	b, err := s.repo.GetByTicketAndUser(ctx, ticketID, uid)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, err
		}
		return nil, storeUnavailable(err)
	}
	return b, nil
}

// FindByPaymentRef returns uid's earliest booking paid with paymentRef.
func (s *BookingService) FindByPaymentRef(ctx context.Context, uid, paymentRef string) (*model.Booking, error) {
	b, err := s.repo.FindByPaymentRef(ctx, uid, paymentRef)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, err
		}
		return nil, storeUnavailable(err)
	}
	return b, nil
}
