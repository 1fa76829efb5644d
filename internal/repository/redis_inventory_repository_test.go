package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-inventory/internal/model"
)

func newTestRedisRepo(t *testing.T) (*RedisInventoryRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisInventoryRepo(rdb, "", 200), mr
}

func appendSeats(seats ...string) MutateFunc {
	return func(cur *model.SeatInventory) (*model.SeatInventory, error) {
		if c := cur.Conflicts(seats); len(c) > 0 {
			return nil, fmt.Errorf("conflict %v", c)
		}
		cur.BookedSeats = append(cur.BookedSeats, seats...)
		return cur, nil
	}
}

func TestRedisInventoryRepo_GetAbsent(t *testing.T) {
	repo, _ := newTestRedisRepo(t)

	inv, err := repo.Get(context.Background(), "mv1__pvr__d__t")
	require.NoError(t, err)
	assert.False(t, inv.Exists())
	assert.Equal(t, "mv1__pvr__d__t", inv.ShowID)
	assert.Empty(t, inv.BookedSeats)
	assert.NotNil(t, inv.BookedSeats)
}

func TestRedisInventoryRepo_UpdateCommits(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	inv, err := repo.Update(ctx, "show-1", appendSeats("A1", "A2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), inv.Version)
	assert.Equal(t, []string{"A1", "A2"}, inv.BookedSeats)
	assert.False(t, inv.UpdatedAt.IsZero())
	assert.True(t, mr.Exists("seat_inventory:show-1"))

	inv, err = repo.Update(ctx, "show-1", appendSeats("B1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), inv.Version)

	got, err := repo.Get(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2", "B1"}, got.BookedSeats)
	assert.Equal(t, int64(2), got.Version)
}

func TestRedisInventoryRepo_AbortWritesNothing(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := repo.Update(ctx, "show-1", func(*model.SeatInventory) (*model.SeatInventory, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("seat_inventory:show-1"))
}

func TestRedisInventoryRepo_NoChange(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()
	_, err := repo.Update(ctx, "show-1", appendSeats("A1"))
	require.NoError(t, err)

	inv, err := repo.Update(ctx, "show-1", func(*model.SeatInventory) (*model.SeatInventory, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inv.Version)
	assert.Equal(t, []string{"A1"}, inv.BookedSeats)
}

func TestRedisInventoryRepo_MutateGetsCopy(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()
	_, err := repo.Update(ctx, "show-1", appendSeats("A1"))
	require.NoError(t, err)

	_, err = repo.Update(ctx, "show-1", func(cur *model.SeatInventory) (*model.SeatInventory, error) {
		cur.BookedSeats[0] = "Z9"
		return nil, nil
	})
	require.NoError(t, err)
	got, err := repo.Get(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, got.BookedSeats)
}

func TestRedisInventoryRepo_ConcurrentWritersLoseNothing(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "show-1", appendSeats(fmt.Sprintf("S%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "show-1")
	require.NoError(t, err)
	assert.Len(t, got.BookedSeats, writers)
	assert.Equal(t, int64(writers), got.Version)
}

func TestRedisInventoryRepo_ConcurrentSameSeatOneWinner(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	const racers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Update(ctx, "show-1", appendSeats("A1")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, err := repo.Get(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, got.BookedSeats)
}

func TestRedisInventoryRepo_ShowsAreIndependent(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	_, err := repo.Update(ctx, "show-1", appendSeats("A1"))
	require.NoError(t, err)
	_, err = repo.Update(ctx, "show-2", appendSeats("A1"))
	require.NoError(t, err)

	a, _ := repo.Get(ctx, "show-1")
	b, _ := repo.Get(ctx, "show-2")
	assert.Equal(t, []string{"A1"}, a.BookedSeats)
	assert.Equal(t, []string{"A1"}, b.BookedSeats)
}

func TestRedisInventoryRepo_CorruptValue(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	require.NoError(t, mr.Set("seat_inventory:show-1", "not json"))

	_, err := repo.Get(context.Background(), "show-1")
	assert.Error(t, err)
}
