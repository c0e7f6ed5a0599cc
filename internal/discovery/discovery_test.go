package discovery

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	werrors "github.com/versewall/versewall/internal/errors"
)

func TestResolveErr(t *testing.T) {
	t.Run("lapsed timeout is a discovery timeout", func(t *testing.T) {
		err := resolveErr(context.Background(), "MDNS.Resolve")
		assert.True(t, werrors.IsDiscoveryTimeout(err))
	})

	t.Run("caller cancellation is the caller's error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := resolveErr(ctx, "MDNS.Resolve")
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, werrors.IsDiscoveryTimeout(err))
	})
}

func TestResolveAbandoned(t *testing.T) {
	m := NewMDNS("", slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Resolve(ctx, "display-42", time.Second)
	assert.Error(t, err)
	assert.False(t, werrors.IsDiscoveryTimeout(err),
		"abandonment must not be reported as a timeout")
}
