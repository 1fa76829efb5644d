package repository

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketIDGenerator_Format(t *testing.T) {
	g := NewTicketIDGenerator()
	id, err := g.Next()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, TicketPrefix))
	assert.Len(t, id, len(TicketPrefix)+26)
}

func TestTicketIDGenerator_Unique(t *testing.T) {
	g := NewTicketIDGenerator()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := g.Next()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate ticket id %s", id)
		seen[id] = struct{}{}
	}
}

func TestTicketIDGenerator_UniqueAcrossGoroutines(t *testing.T) {
	g := NewTicketIDGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				id, err := g.Next()
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 2000)
}
