package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Increment(ctx context.Context, key LimitKey, limit Limit) (int, error) {
	return 0, errors.New("store down")
}

func (brokenStore) Reset(ctx context.Context, key LimitKey) error {
	return errors.New("store down")
}

func TestServiceAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to rate plus burst", func(t *testing.T) {
		svc := NewService(NewMemoryStore(), slog.Default())
		key := LimitKey{Type: TypeLocalAuth, RemoteIP: "192.168.1.10"}

		limit := svc.GetLimit(TypeLocalAuth)
		for i := 0; i < limit.Rate+limit.BurstSize; i++ {
			assert.NoError(t, svc.Allow(ctx, key), "attempt %d", i)
		}
		assert.ErrorIs(t, svc.Allow(ctx, key), ErrLimitExceeded)
	})

	t.Run("peers are limited independently", func(t *testing.T) {
		svc := NewService(NewMemoryStore(), slog.Default())
		limit := svc.GetLimit(TypeLocalAuth)

		noisy := LimitKey{Type: TypeLocalAuth, RemoteIP: "192.168.1.10"}
		for i := 0; i < limit.Rate+limit.BurstSize+1; i++ {
			svc.Allow(ctx, noisy)
		}
		require.ErrorIs(t, svc.Allow(ctx, noisy), ErrLimitExceeded)

		quiet := LimitKey{Type: TypeLocalAuth, RemoteIP: "192.168.1.11"}
		assert.NoError(t, svc.Allow(ctx, quiet))
	})

	t.Run("limit types are counted separately", func(t *testing.T) {
		svc := NewService(NewMemoryStore(), slog.Default())
		limit := svc.GetLimit(TypeLocalAuth)

		auth := LimitKey{Type: TypeLocalAuth, RemoteIP: "192.168.1.10"}
		for i := 0; i < limit.Rate+limit.BurstSize+1; i++ {
			svc.Allow(ctx, auth)
		}
		require.ErrorIs(t, svc.Allow(ctx, auth), ErrLimitExceeded)

		poll := LimitKey{Type: TypePairingPoll, RemoteIP: "192.168.1.10"}
		assert.NoError(t, svc.Allow(ctx, poll))
	})

	t.Run("unregistered types are not limited", func(t *testing.T) {
		svc := NewService(NewMemoryStore(), slog.Default())
		key := LimitKey{Type: "bulk_export", RemoteIP: "192.168.1.10"}

		for i := 0; i < 1000; i++ {
			require.NoError(t, svc.Allow(ctx, key))
		}
	})

	t.Run("broken store fails open", func(t *testing.T) {
		svc := NewService(brokenStore{}, slog.Default())
		key := LimitKey{Type: TypeLocalAuth, RemoteIP: "192.168.1.10"}

		assert.NoError(t, svc.Allow(ctx, key))
	})

	t.Run("reset clears the counter", func(t *testing.T) {
		svc := NewService(NewMemoryStore(), slog.Default())
		key := LimitKey{Type: TypeLocalAuth, RemoteIP: "192.168.1.10"}

		limit := svc.GetLimit(TypeLocalAuth)
		for i := 0; i < limit.Rate+limit.BurstSize+1; i++ {
			svc.Allow(ctx, key)
		}
		require.ErrorIs(t, svc.Allow(ctx, key), ErrLimitExceeded)

		require.NoError(t, svc.Reset(ctx, key))
		assert.NoError(t, svc.Allow(ctx, key))
	})
}

func TestMemoryStoreWindow(t *testing.T) {
	t.Run("counter resets after the period", func(t *testing.T) {
		now := time.Now()
		store := NewMemoryStore()
		store.now = func() time.Time { return now }

		key := LimitKey{Type: TypeLocalAuth, RemoteIP: "192.168.1.10"}
		limit := Limit{Rate: 2, Period: time.Minute, BurstSize: 0}

		_, err := store.Increment(context.Background(), key, limit)
		require.NoError(t, err)
		_, err = store.Increment(context.Background(), key, limit)
		require.NoError(t, err)
		_, err = store.Increment(context.Background(), key, limit)
		require.ErrorIs(t, err, ErrLimitExceeded)

		now = now.Add(time.Minute + time.Second)
		_, err = store.Increment(context.Background(), key, limit)
		assert.NoError(t, err)
	})
}
