package uplink

import (
	"context"
	"log/slog"
	"net"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/versed/store"
)

// Heartbeat periodically writes the display's liveness timestamp to the
// backing store. It is the fallback liveness signal when presence is
// unavailable, and feeds historical "last seen" display.
type Heartbeat struct {
	repo      store.Repository
	displayID string
	interval  time.Duration
	logger    *slog.Logger
}

// NewHeartbeat creates a heartbeat writer
func NewHeartbeat(repo store.Repository, displayID string, interval time.Duration, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		repo:      repo,
		displayID: displayID,
		interval:  interval,
		logger:    logger,
	}
}

// Run beats until ctx ends. The first beat happens immediately.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	if err := h.repo.UpdateLastSeen(ctx, h.displayID, time.Now()); err != nil {
		h.logger.Error("heartbeat write failed", "error", err)
	}
}

// MarkOffline back-dates the liveness timestamp past the online
// threshold so dependent UIs flip to offline immediately instead of
// waiting out the heartbeat TTL. Used on intentional disconnect only.
func (h *Heartbeat) MarkOffline(ctx context.Context) {
	backdated := time.Now().Add(-(v1alpha1.OnlineThreshold + 15*time.Second))
	if err := h.repo.UpdateLastSeen(ctx, h.displayID, backdated); err != nil {
		h.logger.Error("error back-dating last seen", "error", err)
	}
}

// AddressAdvertiser periodically persists the host's LAN address to the
// backing store so controllers can try the local transport without
// discovery. The address is advisory and may go stale.
type AddressAdvertiser struct {
	repo      store.Repository
	displayID string
	port      int
	interval  time.Duration
	logger    *slog.Logger
}

// NewAddressAdvertiser creates an address advertiser for the local
// transport port
func NewAddressAdvertiser(repo store.Repository, displayID string, port int, interval time.Duration, logger *slog.Logger) *AddressAdvertiser {
	return &AddressAdvertiser{
		repo:      repo,
		displayID: displayID,
		port:      port,
		interval:  interval,
		logger:    logger,
	}
}

// Run advertises until ctx ends, then clears the persisted address
func (a *AddressAdvertiser) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.advertise(ctx)
	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown clears the advertisement; use a fresh
			// context because ours is already done.
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.repo.ClearLocalAddress(cleanupCtx, a.displayID); err != nil {
				a.logger.Error("error clearing local address", "error", err)
			}
			return
		case <-ticker.C:
			a.advertise(ctx)
		}
	}
}

func (a *AddressAdvertiser) advertise(ctx context.Context) {
	ip, err := outboundIP()
	if err != nil {
		a.logger.Error("error determining local address", "error", err)
		return
	}
	if err := a.repo.UpdateLocalAddress(ctx, a.displayID, ip, a.port); err != nil {
		a.logger.Error("error advertising local address", "error", err)
	}
}

// outboundIP returns the interface address the host would use for
// outbound traffic. No packets are sent; the dial only selects a route.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "198.51.100.1:53")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr := conn.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), nil
}
