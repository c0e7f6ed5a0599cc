// Package uplink is the display side of the cloud relay: command and
// ping subscriptions, state broadcasts, presence, and the backing-store
// liveness writes that accompany them.
package uplink

import (
	"encoding/json"
	"log/slog"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/relay"
)

// Host is the display side of the relay: it subscribes for commands and
// pings addressed to this display, publishes state broadcasts, and
// tracks itself on the tenant presence topic.
type Host struct {
	client    *relay.Client
	displayID string
	tenantID  string
	name      string
	logger    *slog.Logger
}

// NewHost creates the host-side relay adapter
func NewHost(client *relay.Client, displayID, tenantID, name string, logger *slog.Logger) *Host {
	return &Host{
		client:    client,
		displayID: displayID,
		tenantID:  tenantID,
		name:      name,
		logger:    logger,
	}
}

// JoinPresence returns the retained-nothing join event payload for this
// host; exposed so the dial options can reuse the matching leave event
// as the connection's will.
func JoinPresence(displayID, name string) ([]byte, error) {
	return json.Marshal(v1alpha1.PresenceEvent{
		Type:      v1alpha1.PresenceJoin,
		DisplayID: displayID,
		Name:      name,
		OnlineAt:  time.Now(),
	})
}

// LeavePresence returns the leave event payload for a display
func LeavePresence(displayID, name string) ([]byte, error) {
	return json.Marshal(v1alpha1.PresenceEvent{
		Type:      v1alpha1.PresenceLeave,
		DisplayID: displayID,
		Name:      name,
	})
}

// Start subscribes to this display's topics and announces presence.
// Incoming commands are handed to apply, the host's single
// command-application pipeline; payloads that fail to parse are logged
// and dropped.
func (h *Host) Start(apply func(*v1alpha1.ClientCommand)) error {
	if err := h.client.Subscribe(relay.CommandTopic(h.displayID), func(_ string, payload []byte) {
		var cmd v1alpha1.ClientCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			h.logger.Error("dropping unparseable relay command", "error", err)
			return
		}
		apply(&cmd)
	}); err != nil {
		return err
	}

	if err := h.client.Subscribe(relay.PingTopic(h.displayID), func(_ string, payload []byte) {
		// Echo the probe payload so the prober can correlate
		if err := h.client.Publish(relay.PongTopic(h.displayID), payload, false); err != nil {
			h.logger.Error("error answering relay ping", "error", err)
		}
	}); err != nil {
		return err
	}

	return h.AnnouncePresence()
}

// AnnouncePresence publishes a join event for this display. Called on
// every (re)connect so controllers that subscribed while the host was
// away still learn it is online.
func (h *Host) AnnouncePresence() error {
	payload, err := JoinPresence(h.displayID, h.name)
	if err != nil {
		return err
	}
	return h.client.Publish(relay.PresenceTopic(h.tenantID), payload, false)
}

// PublishState broadcasts the host state. The latest state is retained
// on the topic so a controller that subscribes later gets an immediate
// snapshot.
func (h *Host) PublishState(state *v1alpha1.HostState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return h.client.Publish(relay.StateTopic(h.displayID), payload, true)
}

// Stop announces departure and unsubscribes. Used for intentional
// shutdown; an unclean death is covered by the connection's will.
func (h *Host) Stop() {
	payload, err := LeavePresence(h.displayID, h.name)
	if err == nil {
		if err := h.client.Publish(relay.PresenceTopic(h.tenantID), payload, false); err != nil {
			h.logger.Error("error publishing leave event", "error", err)
		}
	}
	if err := h.client.Unsubscribe(
		relay.CommandTopic(h.displayID),
		relay.PingTopic(h.displayID),
	); err != nil {
		h.logger.Error("error unsubscribing", "error", err)
	}
}
