package relay

import (
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"

	werrors "github.com/versewall/versewall/internal/errors"
)

// stalledToken never completes until released, like a broker that sits
// on its acknowledgement
type stalledToken struct {
	done chan struct{}
}

func (t *stalledToken) Wait() bool {
	<-t.done
	return true
}

func (t *stalledToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *stalledToken) Done() <-chan struct{} { return t.done }
func (t *stalledToken) Error() error          { return nil }

type fakeBroker struct {
	mqtt.Client

	open  bool
	token mqtt.Token
}

func (f *fakeBroker) IsConnectionOpen() bool { return f.open }

func (f *fakeBroker) Publish(string, byte, bool, interface{}) mqtt.Token {
	return f.token
}

func TestPublish(t *testing.T) {
	t.Run("does not await broker confirmation", func(t *testing.T) {
		token := &stalledToken{done: make(chan struct{})}
		defer close(token.done)

		c := &Client{raw: &fakeBroker{open: true, token: token}, qos: 1, logger: slog.Default()}

		errc := make(chan error, 1)
		go func() {
			errc <- c.Publish(CommandTopic("display-42"), []byte(`{}`), false)
		}()

		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("publish blocked on the acknowledgement round trip")
		}
	})

	t.Run("fails fast while the link is down", func(t *testing.T) {
		c := &Client{raw: &fakeBroker{open: false}, qos: 1, logger: slog.Default()}

		err := c.Publish(CommandTopic("display-42"), []byte(`{}`), false)
		assert.ErrorIs(t, err, werrors.ErrRelayUnavailable)
	})
}
