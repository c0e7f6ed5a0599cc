package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/versewall/versewall/internal/versed/store"
)

// notifyChannel is the LISTEN/NOTIFY channel fed by the display table
// trigger
const notifyChannel = "versewall_display_changes"

const (
	minReconnectInterval = time.Second
	maxReconnectInterval = 30 * time.Second
)

// ChangeFeed implements store.ChangeFeed using PostgreSQL LISTEN/NOTIFY
type ChangeFeed struct {
	listener *pq.Listener
	logger   *slog.Logger
}

// NewChangeFeed creates a change feed over the given connection string
func NewChangeFeed(connStr string, logger *slog.Logger) *ChangeFeed {
	listener := pq.NewListener(connStr, minReconnectInterval, maxReconnectInterval,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				logger.Error("change feed listener event",
					"event", int(event),
					"error", err,
				)
			}
		})

	return &ChangeFeed{listener: listener, logger: logger}
}

// Subscribe starts delivering changes to the handler until ctx ends.
// Notification payloads that fail to parse are logged and dropped.
func (f *ChangeFeed) Subscribe(ctx context.Context, handler store.ChangeHandler) error {
	if err := f.listener.Listen(notifyChannel); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-f.listener.Notify:
				if !ok {
					return
				}
				// nil notifications signal a reconnect; the listener
				// re-establishes LISTEN on its own.
				if n == nil {
					continue
				}

				var change store.Change
				if err := json.Unmarshal([]byte(n.Extra), &change); err != nil {
					f.logger.Error("invalid change notification",
						"error", err,
						"payload", n.Extra,
					)
					continue
				}
				handler(change)
			}
		}
	}()

	return nil
}

// Close stops the feed
func (f *ChangeFeed) Close() error {
	return f.listener.Close()
}
