package feed

import (
	"slices"
	"sync"
)

type SeatStatus string

const (
	StatusAvailable SeatStatus = "available"
	StatusSelected  SeatStatus = "selected"
	StatusBooked    SeatStatus = "booked"
)

// Selection combines the live booked set with a viewer's own picks.  A
// picked seat that shows up as booked is dropped automatically.
type Selection struct {
	mu       sync.Mutex
	booked   map[string]struct{}
	selected []string
}

func NewSelection() *Selection {
	return &Selection{booked: make(map[string]struct{})}
}

// Toggle selects seat, or deselects it when already selected.  Booked seats
// cannot be selected.  It reports whether seat is selected afterwards.
func (s *Selection) Toggle(seat string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.selected, seat); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
		return false
	}
	if _, ok := s.booked[seat]; ok {
		return false
	}
	s.selected = append(s.selected, seat)
	return true
}

// ApplyBooked replaces the booked set and returns the selected seats that
// were dropped because they are now booked.
func (s *Selection) ApplyBooked(booked []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.booked = make(map[string]struct{}, len(booked))
	for _, b := range booked {
		s.booked[b] = struct{}{}
	}
	var dropped []string
	kept := s.selected[:0]
	for _, seat := range s.selected {
		if _, ok := s.booked[seat]; ok {
			dropped = append(dropped, seat)
			continue
		}
		kept = append(kept, seat)
	}
	s.selected = kept
	return dropped
}

func (s *Selection) Status(seat string) SeatStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.booked[seat]; ok {
		return StatusBooked
	}
	if slices.Contains(s.selected, seat) {
		return StatusSelected
	}
	return StatusAvailable
}

// Selected returns the selected seats in the order they were picked.
func (s *Selection) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.selected))
	copy(out, s.selected)
	return out
}
