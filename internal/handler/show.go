package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-inventory/internal/feed"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/showid"
)

// SeatReader serves point reads of a show's inventory.
type SeatReader interface {
	BookedSeats(ctx context.Context, showID string) ([]string, error)
	Inventory(ctx context.Context, showID string) (*model.SeatInventory, error)
}

// SeatSubscriber streams booked-seat changes.
type SeatSubscriber interface {
	Subscribe(ctx context.Context, showID string, onSeats func([]string), onError func(error)) (func(), error)
}

// ShowHandler exposes show ids, seat snapshots and the live seat stream.
type ShowHandler struct {
	seats    SeatReader
	live     SeatSubscriber
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewShowHandler wires the handler.  live may be nil when Redis is not
// configured; the live endpoint then answers 503.
func NewShowHandler(seats SeatReader, live SeatSubscriber, log *zap.Logger) *ShowHandler {
	if seats == nil {
		panic("nil seat reader passed to NewShowHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ShowHandler{
		seats: seats,
		live:  live,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ShowID handles GET /v1/show-id.
func (h *ShowHandler) ShowID(c echo.Context) error {
	var p showid.Parts
	if err := c.Bind(&p); err != nil {
		return badRequest(c, "invalid query")
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showid.Build(p)})
}

// Seats handles GET /v1/shows/:show_id/seats.
func (h *ShowHandler) Seats(c echo.Context) error {
	showID := c.Param("show_id")
	booked, err := h.seats.BookedSeats(c.Request().Context(), showID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "booked_seats": booked})
}

// Inventory handles GET /v1/admin/shows/:show_id/inventory.
func (h *ShowHandler) Inventory(c echo.Context) error {
	inv, err := h.seats.Inventory(c.Request().Context(), c.Param("show_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, inv)
}

// liveFrame is one server-to-client WebSocket message.
type liveFrame struct {
	Type        string   `json:"type"` // seats, selection or error
	ShowID      string   `json:"show_id"`
	BookedSeats []string `json:"booked_seats,omitempty"`
	Selected    []string `json:"selected_seats"`
	Deselected  []string `json:"deselected_seats,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// liveCommand is a client-to-server WebSocket message.
type liveCommand struct {
	Toggle string `json:"toggle"`
}

const liveWriteTimeout = 5 * time.Second

// LiveSeats handles GET /v1/shows/:show_id/seats/live.  After the upgrade
// the server sends the booked seats immediately and again after every
// change.  Clients may send {"toggle": "A1"} to pick or unpick a seat;
// picks that get booked by someone else are dropped and reported in
// deselected_seats.  Closing the socket ends the subscription.
func (h *ShowHandler) LiveSeats(c echo.Context) error {
	if h.live == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "live feed unavailable"})
	}
	showID := strings.TrimSpace(c.Param("show_id"))
	if showID == "" {
		return badRequest(c, "show id is required")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	defer cancel()

	var writeMu sync.Mutex
	send := func(f liveFrame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		return ws.WriteJSON(f)
	}

	sel := feed.NewSelection()
	unsubscribe, err := h.live.Subscribe(ctx, showID,
		func(booked []string) {
			dropped := sel.ApplyBooked(booked)
			f := liveFrame{Type: "seats", ShowID: showID, BookedSeats: booked, Selected: sel.Selected(), Deselected: dropped}
			if err := send(f); err != nil {
				cancel()
			}
		},
		func(err error) {
			h.log.Warn("live seat feed error", zap.String("show_id", showID), zap.Error(err))
			_ = send(liveFrame{Type: "error", ShowID: showID, Selected: sel.Selected(), Error: "seat feed error"})
		},
	)
	if err != nil {
		h.log.Warn("live seat subscribe failed", zap.String("show_id", showID), zap.Error(err))
		_ = send(liveFrame{Type: "error", ShowID: showID, Error: "seat feed unavailable"})
		return nil
	}
	defer unsubscribe()

	// a failed write cancels ctx; closing the socket unblocks the reader
	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()

	for {
		var cmd liveCommand
		if err := ws.ReadJSON(&cmd); err != nil {
			return nil
		}
		seat := strings.TrimSpace(cmd.Toggle)
		if seat == "" {
			continue
		}
		sel.Toggle(seat)
		if err := send(liveFrame{Type: "selection", ShowID: showID, Selected: sel.Selected()}); err != nil {
			return nil
		}
	}
}
