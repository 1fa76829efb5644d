package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelection_Toggle(t *testing.T) {
	s := NewSelection()
	assert.True(t, s.Toggle("A1"))
	assert.True(t, s.Toggle("A2"))
	assert.Equal(t, StatusSelected, s.Status("A1"))
	assert.False(t, s.Toggle("A1"))
	assert.Equal(t, StatusAvailable, s.Status("A1"))
	assert.Equal(t, []string{"A2"}, s.Selected())
}

func TestSelection_BookedSeatsAreDeselected(t *testing.T) {
	s := NewSelection()
	s.Toggle("A1")
	s.Toggle("A2")
	s.Toggle("A3")

	dropped := s.ApplyBooked([]string{"A2", "B7"})
	assert.Equal(t, []string{"A2"}, dropped)
	assert.Equal(t, []string{"A1", "A3"}, s.Selected())
	assert.Equal(t, StatusBooked, s.Status("A2"))
	assert.Equal(t, StatusBooked, s.Status("B7"))
	assert.Equal(t, StatusSelected, s.Status("A3"))
	assert.Equal(t, StatusAvailable, s.Status("C1"))

	assert.False(t, s.Toggle("B7"), "booked seats cannot be selected")
	assert.Empty(t, s.ApplyBooked([]string{"A2", "B7"}))
}
