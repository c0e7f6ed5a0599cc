package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/discovery"
	werrors "github.com/versewall/versewall/internal/errors"
	"github.com/versewall/versewall/internal/versed/local"
	"github.com/versewall/versewall/internal/versed/ratelimit"
)

type fakeLookup struct {
	identity *v1alpha1.DisplayIdentity
	err      error
}

func (f fakeLookup) Get(context.Context, string) (*v1alpha1.DisplayIdentity, error) {
	return f.identity, f.err
}

type fakeResolver struct {
	entry *discovery.Entry
	err   error
}

func (f fakeResolver) Resolve(context.Context, string, time.Duration) (*discovery.Entry, error) {
	return f.entry, f.err
}

type fakeHost struct {
	mu       sync.Mutex
	commands []*v1alpha1.ClientCommand
	state    *v1alpha1.HostState
}

func (h *fakeHost) ApplyCommand(cmd *v1alpha1.ClientCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
}

func (h *fakeHost) Snapshot() *v1alpha1.HostState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != nil {
		return h.state.Clone()
	}
	return &v1alpha1.HostState{}
}

func (h *fakeHost) ClientConnected()    {}
func (h *fakeHost) ClientDisconnected() {}

func (h *fakeHost) commandIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.commands))
	for _, cmd := range h.commands {
		ids = append(ids, cmd.CommandID)
	}
	return ids
}

func controllerToken(t *testing.T, tenantID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenantId": tenantID,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func startHost(t *testing.T, displayID string, handler local.Handler) *local.Server {
	t.Helper()
	server := local.NewServer(local.Config{
		DisplayID: displayID,
		TenantID:  "church-1",
		Host:      "127.0.0.1",
		Port:      0,
	}, handler, ratelimit.NewService(ratelimit.NewMemoryStore(), slog.Default()), slog.Default())
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)
	return server
}

func addrParts(t *testing.T, addr net.Addr) (*string, *int) {
	t.Helper()
	tcp, ok := addr.(*net.TCPAddr)
	require.True(t, ok)
	host := tcp.IP.String()
	port := tcp.Port
	return &host, &port
}

func TestLocalCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing configured yields no candidates", func(t *testing.T) {
		m := NewManager(Options{})
		assert.Empty(t, m.localCandidates(ctx, "display-42"))
	})

	t.Run("advertised address comes first", func(t *testing.T) {
		ip := "192.168.1.20"
		port := 9300
		m := NewManager(Options{
			Registry: fakeLookup{identity: &v1alpha1.DisplayIdentity{
				DisplayID: "display-42",
				LocalIP:   &ip,
				LocalPort: &port,
			}},
			Discovery:        fakeResolver{entry: &discovery.Entry{Host: "192.168.1.30", Port: 9300}},
			DiscoveryTimeout: time.Second,
		})

		addrs := m.localCandidates(ctx, "display-42")
		require.Len(t, addrs, 2)
		assert.Equal(t, "192.168.1.20:9300", addrs[0])
		assert.Equal(t, "192.168.1.30:9300", addrs[1])
	})

	t.Run("discovery duplicate of the advertised address is dropped", func(t *testing.T) {
		ip := "192.168.1.20"
		port := 9300
		m := NewManager(Options{
			Registry: fakeLookup{identity: &v1alpha1.DisplayIdentity{
				LocalIP:   &ip,
				LocalPort: &port,
			}},
			Discovery:        fakeResolver{entry: &discovery.Entry{Host: "192.168.1.20", Port: 9300}},
			DiscoveryTimeout: time.Second,
		})

		assert.Equal(t, []string{"192.168.1.20:9300"}, m.localCandidates(ctx, "display-42"))
	})

	t.Run("zero discovery timeout disables discovery", func(t *testing.T) {
		m := NewManager(Options{
			Registry:  fakeLookup{identity: &v1alpha1.DisplayIdentity{DisplayID: "display-42"}},
			Discovery: fakeResolver{entry: &discovery.Entry{Host: "192.168.1.30", Port: 9300}},
		})

		assert.Empty(t, m.localCandidates(ctx, "display-42"))
	})

	t.Run("discovery timeout is quietly skipped", func(t *testing.T) {
		m := NewManager(Options{
			Discovery:        fakeResolver{err: werrors.ErrDiscoveryTimeout},
			DiscoveryTimeout: time.Second,
		})

		assert.Empty(t, m.localCandidates(ctx, "display-42"))
	})
}

func TestAcceptState(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d := &displayConn{displayID: "display-42"}

	assert.True(t, d.acceptState(&v1alpha1.HostState{LastUpdated: base}))

	// Same broadcast arriving on the second transport
	assert.False(t, d.acceptState(&v1alpha1.HostState{LastUpdated: base}))
	assert.False(t, d.acceptState(&v1alpha1.HostState{LastUpdated: base.Add(-time.Second)}))

	assert.True(t, d.acceptState(&v1alpha1.HostState{LastUpdated: base.Add(time.Second)}))
}

func TestConnect(t *testing.T) {
	t.Run("connects locally via the advertised address", func(t *testing.T) {
		host := &fakeHost{state: &v1alpha1.HostState{DisplayID: "display-42", IsLogo: true}}
		server := startHost(t, "display-42", host)
		ip, port := addrParts(t, server.Addr())

		m := NewManager(Options{
			Token: controllerToken(t, "church-1"),
			Registry: fakeLookup{identity: &v1alpha1.DisplayIdentity{
				DisplayID: "display-42",
				LocalIP:   ip,
				LocalPort: port,
			}},
		})
		t.Cleanup(m.Close)

		status, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)
		assert.Equal(t, v1alpha1.ConnectionConnected, status.State)
		assert.Equal(t, v1alpha1.TransportLocal, status.Transport)

		// The post-handshake state sync lands shortly after
		assert.Eventually(t, func() bool {
			state := m.State("display-42")
			return state != nil && state.IsLogo
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("no transport at all is an error", func(t *testing.T) {
		m := NewManager(Options{})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		assert.Error(t, err)

		// The failed attempt leaves nothing behind
		_, err = m.Connect(context.Background(), "display-42")
		assert.ErrorContains(t, err, "no transport")
	})

	t.Run("connecting twice is an error", func(t *testing.T) {
		host := &fakeHost{}
		server := startHost(t, "display-42", host)
		ip, port := addrParts(t, server.Addr())

		m := NewManager(Options{
			Token: controllerToken(t, "church-1"),
			Registry: fakeLookup{identity: &v1alpha1.DisplayIdentity{
				LocalIP:   ip,
				LocalPort: port,
			}},
		})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)

		_, err = m.Connect(context.Background(), "display-42")
		assert.ErrorContains(t, err, "already connected")
	})

	t.Run("stale address owned by another display is skipped", func(t *testing.T) {
		// The registry still points at an address where a different
		// display now listens
		server := startHost(t, "display-99", &fakeHost{})
		ip, port := addrParts(t, server.Addr())

		m := NewManager(Options{
			Token: controllerToken(t, "church-1"),
			Registry: fakeLookup{identity: &v1alpha1.DisplayIdentity{
				DisplayID: "display-42",
				LocalIP:   ip,
				LocalPort: port,
			}},
		})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		assert.ErrorContains(t, err, "no transport")
	})
}

func TestSendAndPing(t *testing.T) {
	connect := func(t *testing.T, host *fakeHost) *Manager {
		t.Helper()
		server := startHost(t, "display-42", host)
		ip, port := addrParts(t, server.Addr())

		m := NewManager(Options{
			Token: controllerToken(t, "church-1"),
			Registry: fakeLookup{identity: &v1alpha1.DisplayIdentity{
				LocalIP:   ip,
				LocalPort: port,
			}},
		})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)
		return m
	}

	t.Run("send assigns a command id and reaches the host", func(t *testing.T) {
		host := &fakeHost{}
		m := connect(t, host)

		require.NoError(t, m.Send("display-42", &v1alpha1.ClientCommand{
			Type: v1alpha1.CommandNextSlide,
		}))

		assert.Eventually(t, func() bool {
			ids := host.commandIDs()
			return len(ids) == 1 && ids[0] != ""
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("send to an unknown display is an error", func(t *testing.T) {
		m := NewManager(Options{})
		err := m.Send("display-42", &v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		assert.ErrorContains(t, err, "not connected")
	})

	t.Run("ping returns a round trip time", func(t *testing.T) {
		m := connect(t, &fakeHost{})

		rtt, err := m.Ping(context.Background(), "display-42", 2*time.Second)
		require.NoError(t, err)
		assert.Greater(t, rtt, time.Duration(0))
	})

	t.Run("status prefers the local transport", func(t *testing.T) {
		m := connect(t, &fakeHost{})

		status := m.Status()
		assert.Equal(t, v1alpha1.ConnectionConnected, status.State)
		assert.Equal(t, v1alpha1.TransportLocal, status.Transport)
		require.Contains(t, status.PerDisplay, "display-42")
	})

	t.Run("disconnect tears the session down", func(t *testing.T) {
		m := connect(t, &fakeHost{})
		m.Disconnect("display-42")

		err := m.Send("display-42", &v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide})
		assert.ErrorContains(t, err, "not connected")
	})
}

// fakeRelay is an in-process broker link: subscriptions are invoked by
// deliver, publications are recorded per topic
type fakeRelay struct {
	mu        sync.Mutex
	connected bool
	subs      map[string]func(topic string, payload []byte)
	published map[string][][]byte
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		connected: true,
		subs:      make(map[string]func(string, []byte)),
		published: make(map[string][][]byte),
	}
}

func (f *fakeRelay) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeRelay) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handler
	return nil
}

func (f *fakeRelay) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.subs, topic)
	}
	return nil
}

func (f *fakeRelay) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeRelay) setConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

func (f *fakeRelay) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	f.mu.Lock()
	handler := f.subs[topic]
	f.mu.Unlock()
	require.NotNil(t, handler, "no subscription on %s", topic)
	handler(topic, payload)
}

func (f *fakeRelay) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

func (f *fakeRelay) publications(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.published[topic]...)
}

// countingResolver records how often discovery was attempted
type countingResolver struct {
	mu    sync.Mutex
	calls int
	entry *discovery.Entry
}

func (r *countingResolver) Resolve(context.Context, string, time.Duration) (*discovery.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.entry == nil {
		return nil, werrors.ErrDiscoveryTimeout
	}
	return r.entry, nil
}

func (r *countingResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// switchLookup is a registry fake whose row can change between calls
type switchLookup struct {
	mu       sync.Mutex
	identity *v1alpha1.DisplayIdentity
}

func (s *switchLookup) Get(context.Context, string) (*v1alpha1.DisplayIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil, werrors.ErrNotFound
	}
	return s.identity, nil
}

func (s *switchLookup) set(identity *v1alpha1.DisplayIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
}

func TestCloudTransport(t *testing.T) {
	t.Run("falls back to cloud without attempting the lan", func(t *testing.T) {
		fr := newFakeRelay()
		resolver := &countingResolver{}
		m := NewManager(Options{
			Relay: fr,
			// Registry row exists but carries no advertised address
			Registry:         fakeLookup{identity: &v1alpha1.DisplayIdentity{DisplayID: "display-42"}},
			Discovery:        resolver,
			DiscoveryTimeout: 0,
		})
		t.Cleanup(m.Close)

		status, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)
		assert.Equal(t, v1alpha1.ConnectionConnected, status.State)
		assert.Equal(t, v1alpha1.TransportCloud, status.Transport)

		assert.Equal(t, 0, resolver.callCount())
		assert.True(t, fr.subscribed("display:display-42:state"))
		assert.True(t, fr.subscribed("display:display-42:pong"))
	})

	t.Run("commands are dual routed with one command id", func(t *testing.T) {
		host := &fakeHost{}
		server := startHost(t, "display-42", host)
		ip, port := addrParts(t, server.Addr())

		fr := newFakeRelay()
		m := NewManager(Options{
			Token: controllerToken(t, "church-1"),
			Relay: fr,
			Registry: fakeLookup{identity: &v1alpha1.DisplayIdentity{
				LocalIP:   ip,
				LocalPort: port,
			}},
		})
		t.Cleanup(m.Close)

		status, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)
		require.Equal(t, v1alpha1.TransportLocal, status.Transport)

		require.NoError(t, m.Send("display-42", &v1alpha1.ClientCommand{Type: v1alpha1.CommandNextSlide}))

		var localIDs []string
		assert.Eventually(t, func() bool {
			localIDs = host.commandIDs()
			return len(localIDs) == 1
		}, time.Second, 10*time.Millisecond)

		cloudCopies := fr.publications("display:display-42:command")
		require.Len(t, cloudCopies, 1)
		var cloudCmd v1alpha1.ClientCommand
		require.NoError(t, json.Unmarshal(cloudCopies[0], &cloudCmd))
		assert.Equal(t, localIDs[0], cloudCmd.CommandID, "both copies must share the command id so the host can deduplicate")
	})

	t.Run("cloud state broadcasts reach the caller", func(t *testing.T) {
		fr := newFakeRelay()
		var seen []*v1alpha1.HostState
		m := NewManager(Options{
			Relay: fr,
			OnState: func(_ string, state *v1alpha1.HostState) {
				seen = append(seen, state)
			},
		})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)

		payload, err := json.Marshal(&v1alpha1.HostState{
			DisplayID:         "display-42",
			CurrentSlideIndex: 5,
			LastUpdated:       time.Now(),
		})
		require.NoError(t, err)
		fr.deliver(t, "display:display-42:state", payload)

		require.Len(t, seen, 1)
		state := m.State("display-42")
		require.NotNil(t, state)
		assert.Equal(t, 5, state.CurrentSlideIndex)
	})

	t.Run("ping is answered over the cloud", func(t *testing.T) {
		fr := newFakeRelay()
		m := NewManager(Options{Relay: fr})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)

		go func() {
			for len(fr.publications("display:display-42:ping")) == 0 {
				time.Sleep(5 * time.Millisecond)
			}
			fr.deliver(t, "display:display-42:pong", []byte(`{}`))
		}()

		rtt, err := m.Ping(context.Background(), "display-42", 2*time.Second)
		require.NoError(t, err)
		assert.Greater(t, rtt, time.Duration(0))
	})

	t.Run("disconnect drops the display's subscriptions", func(t *testing.T) {
		fr := newFakeRelay()
		m := NewManager(Options{Relay: fr})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)
		m.Disconnect("display-42")

		assert.False(t, fr.subscribed("display:display-42:state"))
		assert.False(t, fr.subscribed("display:display-42:pong"))
	})
}

func TestReconnect(t *testing.T) {
	t.Run("reestablishes the cloud subscriptions", func(t *testing.T) {
		fr := newFakeRelay()
		m := NewManager(Options{Relay: fr})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)

		require.NoError(t, m.Reconnect(context.Background()))

		status := m.Status()
		assert.Equal(t, v1alpha1.ConnectionConnected, status.State)
		assert.Equal(t, v1alpha1.TransportCloud, status.Transport)
		assert.True(t, fr.subscribed("display:display-42:state"))
	})

	t.Run("recovers the lan path once an address appears", func(t *testing.T) {
		fr := newFakeRelay()
		lookup := &switchLookup{}
		m := NewManager(Options{
			Token:    controllerToken(t, "church-1"),
			Relay:    fr,
			Registry: lookup,
		})
		t.Cleanup(m.Close)

		status, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)
		require.Equal(t, v1alpha1.TransportCloud, status.Transport)

		// The host comes up on the LAN and advertises its address
		host := &fakeHost{}
		server := startHost(t, "display-42", host)
		ip, port := addrParts(t, server.Addr())
		lookup.set(&v1alpha1.DisplayIdentity{DisplayID: "display-42", LocalIP: ip, LocalPort: port})

		require.NoError(t, m.Reconnect(context.Background()))

		status2 := m.Status()
		assert.Equal(t, v1alpha1.ConnectionConnected, status2.State)
		assert.Equal(t, v1alpha1.TransportLocal, status2.Transport)
	})

	t.Run("reports displays it could not reestablish", func(t *testing.T) {
		fr := newFakeRelay()
		m := NewManager(Options{Relay: fr})
		t.Cleanup(m.Close)

		_, err := m.Connect(context.Background(), "display-42")
		require.NoError(t, err)

		fr.setConnected(false)
		err = m.Reconnect(context.Background())
		assert.ErrorContains(t, err, "display-42")
	})

	t.Run("nothing connected is a no-op", func(t *testing.T) {
		m := NewManager(Options{})
		assert.NoError(t, m.Reconnect(context.Background()))
	})
}

// blockedLookup parks Connect inside the registry lookup so the
// in-flight interval can be observed
type blockedLookup struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockedLookup) Get(context.Context, string) (*v1alpha1.DisplayIdentity, error) {
	close(b.entered)
	<-b.release
	return nil, werrors.ErrNotFound
}

func TestStatusWhileConnecting(t *testing.T) {
	lookup := &blockedLookup{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManager(Options{Registry: lookup})
	t.Cleanup(m.Close)

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background(), "display-42")
		done <- err
	}()

	<-lookup.entered
	status := m.Status()
	require.Contains(t, status.PerDisplay, "display-42")
	assert.Equal(t, v1alpha1.ConnectionConnecting, status.PerDisplay["display-42"].State)
	assert.Equal(t, v1alpha1.ConnectionConnecting, status.State)

	close(lookup.release)
	assert.Error(t, <-done, "no transport exists once the lookup comes back empty")
}
