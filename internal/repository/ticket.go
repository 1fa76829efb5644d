package repository

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

// TicketPrefix starts every ticket id.
const TicketPrefix = "TKT"

// TicketIDGenerator produces ticket ids made of a millisecond timestamp and
// 80 random bits (a ULID) behind TicketPrefix.  Ids generated within the
// same millisecond by one generator are strictly increasing, so a burst of
// ids from one process never repeats.
type TicketIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewTicketIDGenerator returns a generator backed by crypto/rand.
func NewTicketIDGenerator() *TicketIDGenerator {
	return &TicketIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Next returns a new ticket id such as TKT01J9Z3M6Q4W8X2C7B5N0R1T3V6.
func (g *TicketIDGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", err
	}
	return TicketPrefix + id.String(), nil
}
