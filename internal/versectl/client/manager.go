package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/discovery"
	werrors "github.com/versewall/versewall/internal/errors"
	"github.com/versewall/versewall/internal/relay"
)

// Lookup resolves display registry rows, including advertised LAN
// addresses
type Lookup interface {
	Get(ctx context.Context, displayID string) (*v1alpha1.DisplayIdentity, error)
}

// Resolver finds hosts on the LAN when no advertised address works
type Resolver interface {
	Resolve(ctx context.Context, displayID string, timeout time.Duration) (*discovery.Entry, error)
}

// Relay is the broker surface the manager consumes. *relay.Client
// satisfies it; tests substitute an in-process fake.
type Relay interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Unsubscribe(topics ...string) error
	Connected() bool
}

// Options configures a connection manager
type Options struct {
	// Token is presented during local handshakes
	Token string
	// TenantID scopes the presence subscription
	TenantID string
	// Registry resolves advertised addresses; optional
	Registry Lookup
	// Discovery resolves LAN addresses when the registry has none;
	// optional
	Discovery Resolver
	// Relay is the shared broker link; optional, cloud transport is
	// skipped without it
	Relay Relay
	// LocalDialTimeout bounds each local dial plus handshake
	LocalDialTimeout time.Duration
	// DiscoveryTimeout bounds mDNS resolution; zero disables discovery
	DiscoveryTimeout time.Duration
	// OnState receives every accepted state update
	OnState func(displayID string, state *v1alpha1.HostState)
	Logger  *slog.Logger
}

// Manager holds per-display connections, preferring the local transport
// and falling back to the cloud relay. Commands are fired on every
// transport that is up; the host's dedup layer absorbs the overlap.
type Manager struct {
	opts Options

	mu       sync.Mutex
	displays map[string]*displayConn
	roster   map[string]time.Time
}

// displayConn is the connection bundle for one display
type displayConn struct {
	displayID string

	mu         sync.Mutex
	local      *localTransport
	cloud      *cloudTransport
	connecting bool
	lastState  *v1alpha1.HostState
	pong       chan struct{}
}

// transports returns the current transport pair; either may be nil
func (d *displayConn) transports() (*localTransport, *cloudTransport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.local, d.cloud
}

// NewManager creates a connection manager
func NewManager(opts Options) *Manager {
	if opts.LocalDialTimeout <= 0 {
		opts.LocalDialTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		opts:     opts,
		displays: make(map[string]*displayConn),
		roster:   make(map[string]time.Time),
	}
}

// Connect establishes transports to one display. The cloud subscription
// comes up whenever the relay is configured; the local transport is
// attempted via the advertised address first, then discovery. A display
// is reachable when either path is up.
func (m *Manager) Connect(ctx context.Context, displayID string) (*v1alpha1.DisplaySessionStatus, error) {
	m.mu.Lock()
	if _, ok := m.displays[displayID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("already connected to display %s", displayID)
	}
	d := &displayConn{
		displayID:  displayID,
		connecting: true,
		pong:       make(chan struct{}, 1),
	}
	m.displays[displayID] = d
	m.mu.Unlock()

	onState := func(state *v1alpha1.HostState) {
		if !d.acceptState(state) {
			return
		}
		if m.opts.OnState != nil {
			m.opts.OnState(displayID, state)
		}
	}
	onPong := func() {
		select {
		case d.pong <- struct{}{}:
		default:
		}
	}

	if m.opts.Relay != nil {
		cloud, err := newCloudTransport(m.opts.Relay, displayID, onState, onPong, m.opts.Logger)
		if err != nil {
			m.opts.Logger.Error("error subscribing cloud transport", "displayId", displayID, "error", err)
		} else {
			d.mu.Lock()
			d.cloud = cloud
			d.mu.Unlock()
		}
	}

	auth := v1alpha1.LocalAuth{Token: m.opts.Token, DisplayID: displayID}
	for _, addr := range m.localCandidates(ctx, displayID) {
		if ctx.Err() != nil {
			break
		}
		local, err := dialLocal(addr, auth, m.opts.LocalDialTimeout, onState, onPong, m.opts.Logger)
		if err != nil {
			if errors.Is(err, werrors.ErrDisplayMismatch) {
				// Stale address now owned by a different display
				m.opts.Logger.Info("address belongs to another display", "displayId", displayID, "addr", addr)
			} else {
				m.opts.Logger.Info("local dial failed", "displayId", displayID, "addr", addr, "error", err)
			}
			continue
		}
		d.mu.Lock()
		d.local = local
		d.mu.Unlock()
		break
	}

	if ctx.Err() != nil {
		// Cancellation must not leave half-open connections behind
		m.Disconnect(displayID)
		return nil, ctx.Err()
	}

	d.mu.Lock()
	d.connecting = false
	d.mu.Unlock()

	status := d.status()
	if status.State == v1alpha1.ConnectionDisconnected {
		m.Disconnect(displayID)
		return nil, fmt.Errorf("no transport available for display %s", displayID)
	}
	return &status, nil
}

// localCandidates collects LAN addresses worth dialing, in preference
// order: the advertised address from the registry, then discovery.
func (m *Manager) localCandidates(ctx context.Context, displayID string) []string {
	var addrs []string

	if m.opts.Registry != nil {
		identity, err := m.opts.Registry.Get(ctx, displayID)
		if err != nil {
			m.opts.Logger.Info("registry lookup failed", "displayId", displayID, "error", err)
		} else if identity.LocalIP != nil && identity.LocalPort != nil {
			addrs = append(addrs, fmt.Sprintf("%s:%d", *identity.LocalIP, *identity.LocalPort))
		}
	}

	if m.opts.Discovery != nil && m.opts.DiscoveryTimeout > 0 {
		entry, err := m.opts.Discovery.Resolve(ctx, displayID, m.opts.DiscoveryTimeout)
		if err != nil {
			if !werrors.IsDiscoveryTimeout(err) {
				m.opts.Logger.Info("discovery failed", "displayId", displayID, "error", err)
			}
		} else {
			addr := fmt.Sprintf("%s:%d", entry.Host, entry.Port)
			if len(addrs) == 0 || addrs[0] != addr {
				addrs = append(addrs, addr)
			}
		}
	}

	return addrs
}

// Send delivers one command to a display on every transport that is up.
// Delivery is fire and forget; the host deduplicates by command id when
// both paths carry it.
func (m *Manager) Send(displayID string, cmd *v1alpha1.ClientCommand) error {
	d, err := m.get(displayID)
	if err != nil {
		return err
	}

	if cmd.CommandID == "" {
		cmd.CommandID = uuid.NewString()
	}

	local, cloud := d.transports()
	sent := false
	if local != nil && local.Alive() {
		if err := local.SendCommand(cmd); err != nil {
			m.opts.Logger.Info("local send failed", "displayId", displayID, "error", err)
		} else {
			sent = true
		}
	}
	if cloud != nil && cloud.Alive() {
		if err := cloud.SendCommand(cmd); err != nil {
			m.opts.Logger.Info("cloud send failed", "displayId", displayID, "error", err)
		} else {
			sent = true
		}
	}

	if !sent {
		return fmt.Errorf("no transport available for display %s", displayID)
	}
	return nil
}

// Ping probes a display on every transport that is up and returns the
// round-trip time of the first answer.
func (m *Manager) Ping(ctx context.Context, displayID string, timeout time.Duration) (time.Duration, error) {
	d, err := m.get(displayID)
	if err != nil {
		return 0, err
	}

	// Drain any stale pong
	select {
	case <-d.pong:
	default:
	}

	start := time.Now()
	local, cloud := d.transports()
	sent := false
	if local != nil && local.Alive() {
		if err := local.Ping(); err == nil {
			sent = true
		}
	}
	if cloud != nil && cloud.Alive() {
		if err := cloud.Ping(); err == nil {
			sent = true
		}
	}
	if !sent {
		return 0, fmt.Errorf("no transport available for display %s", displayID)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(timeout):
		return 0, fmt.Errorf("ping timed out after %s", timeout)
	case <-d.pong:
		return time.Since(start), nil
	}
}

// State returns the most recent state received from a display, if any
func (m *Manager) State(displayID string) *v1alpha1.HostState {
	d, err := m.get(displayID)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastState == nil {
		return nil
	}
	return d.lastState.Clone()
}

// Status aggregates connection state across all connected displays
func (m *Manager) Status() *v1alpha1.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := &v1alpha1.ConnectionStatus{
		State:      v1alpha1.ConnectionDisconnected,
		PerDisplay: make(map[string]v1alpha1.DisplaySessionStatus, len(m.displays)),
	}
	for id, d := range m.displays {
		ds := d.status()
		status.PerDisplay[id] = ds
		switch ds.State {
		case v1alpha1.ConnectionConnected:
			status.State = v1alpha1.ConnectionConnected
			if status.Transport != v1alpha1.TransportLocal {
				status.Transport = ds.Transport
			}
		case v1alpha1.ConnectionConnecting:
			if status.State == v1alpha1.ConnectionDisconnected {
				status.State = v1alpha1.ConnectionConnecting
			}
		}
	}
	return status
}

// WatchPresence subscribes to the tenant's presence roster. Events
// refine liveness instantly between heartbeat writes.
func (m *Manager) WatchPresence(handler func(v1alpha1.PresenceEvent)) error {
	if m.opts.Relay == nil {
		return werrors.ErrRelayUnavailable
	}
	return m.opts.Relay.Subscribe(relay.PresenceTopic(m.opts.TenantID), func(_ string, payload []byte) {
		var event v1alpha1.PresenceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			m.opts.Logger.Info("dropping unparseable presence event", "error", err)
			return
		}

		m.mu.Lock()
		if event.Type == v1alpha1.PresenceJoin {
			m.roster[event.DisplayID] = time.Now()
		} else {
			delete(m.roster, event.DisplayID)
		}
		m.mu.Unlock()

		if handler != nil {
			handler(event)
		}
	})
}

// Disconnect tears down one display's transports
func (m *Manager) Disconnect(displayID string) {
	m.mu.Lock()
	d, ok := m.displays[displayID]
	delete(m.displays, displayID)
	m.mu.Unlock()

	if !ok {
		return
	}
	local, cloud := d.transports()
	if local != nil {
		local.Close()
	}
	if cloud != nil {
		cloud.Close()
	}
}

// Reconnect tears down every display's transports and runs the connect
// sequence again from scratch. It serves explicit operator action and
// recovery from a dead LAN stream that silently degraded to cloud.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.displays))
	for id := range m.displays {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		m.Disconnect(id)
		if _, err := m.Connect(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("display %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close tears down all transports
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.displays))
	for id := range m.displays {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Disconnect(id)
	}
}

func (m *Manager) get(displayID string) (*displayConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[displayID]
	if !ok {
		return nil, fmt.Errorf("not connected to display %s", displayID)
	}
	return d, nil
}

// acceptState keeps the newest state per display. The same broadcast
// often arrives on both transports; the older or equal timestamp is the
// duplicate.
func (d *displayConn) acceptState(state *v1alpha1.HostState) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastState != nil && !state.LastUpdated.After(d.lastState.LastUpdated) {
		return false
	}
	d.lastState = state
	return true
}

// status reports this display's transport view, preferring local
func (d *displayConn) status() v1alpha1.DisplaySessionStatus {
	d.mu.Lock()
	local, cloud := d.local, d.cloud
	lastState := d.lastState
	connecting := d.connecting
	d.mu.Unlock()

	s := v1alpha1.DisplaySessionStatus{
		State:     v1alpha1.ConnectionDisconnected,
		LastState: lastState,
	}
	switch {
	case local != nil && local.Alive():
		s.State = v1alpha1.ConnectionConnected
		s.Transport = v1alpha1.TransportLocal
	case cloud != nil && cloud.Alive():
		s.State = v1alpha1.ConnectionConnected
		s.Transport = v1alpha1.TransportCloud
	case connecting:
		s.State = v1alpha1.ConnectionConnecting
	}
	return s
}
