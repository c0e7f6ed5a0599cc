package client

import (
	"encoding/json"
	"log/slog"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/relay"
)

// cloudTransport reaches one display through the relay broker. The
// broker link itself is shared; each transport only owns its display's
// subscriptions.
type cloudTransport struct {
	client    Relay
	displayID string
	logger    *slog.Logger
}

// newCloudTransport subscribes to the display's state and pong topics.
// The state topic retains the latest broadcast, so a fresh subscriber
// gets an immediate snapshot.
func newCloudTransport(client Relay, displayID string, onState func(*v1alpha1.HostState), onPong func(), logger *slog.Logger) (*cloudTransport, error) {
	t := &cloudTransport{
		client:    client,
		displayID: displayID,
		logger:    logger,
	}

	if err := client.Subscribe(relay.StateTopic(displayID), func(_ string, payload []byte) {
		var state v1alpha1.HostState
		if err := json.Unmarshal(payload, &state); err != nil {
			logger.Info("dropping unparseable state broadcast", "error", err)
			return
		}
		onState(&state)
	}); err != nil {
		return nil, err
	}

	if err := client.Subscribe(relay.PongTopic(displayID), func(string, []byte) {
		if onPong != nil {
			onPong()
		}
	}); err != nil {
		_ = client.Unsubscribe(relay.StateTopic(displayID))
		return nil, err
	}

	return t, nil
}

// SendCommand publishes one command to the display's command topic
func (t *cloudTransport) SendCommand(cmd *v1alpha1.ClientCommand) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return t.client.Publish(relay.CommandTopic(t.displayID), payload, false)
}

// Ping publishes a liveness probe; the host echoes it to the pong topic
func (t *cloudTransport) Ping() error {
	return t.client.Publish(relay.PingTopic(t.displayID), []byte(`{}`), false)
}

// Alive reports whether the broker link is up
func (t *cloudTransport) Alive() bool {
	return t.client.Connected()
}

// Close drops this display's subscriptions, leaving the shared broker
// link intact
func (t *cloudTransport) Close() {
	if err := t.client.Unsubscribe(
		relay.StateTopic(t.displayID),
		relay.PongTopic(t.displayID),
	); err != nil {
		t.logger.Error("error unsubscribing", "displayId", t.displayID, "error", err)
	}
}
