// Package discovery advertises and resolves displays on the local
// network over mDNS, without any centralized registry.
package discovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	werrors "github.com/versewall/versewall/internal/errors"
)

// ServiceType is the fixed mDNS service type for Versewall displays
const ServiceType = "_versewall._tcp"

// DefaultDomain is the standard mDNS domain
const DefaultDomain = "local."

// Entry describes one discovered display
type Entry struct {
	DisplayID string
	TenantID  string
	Name      string
	Host      string
	Port      int
}

// Service advertises this host's display and resolves other displays to
// transport addresses
type Service interface {
	// Advertise publishes a service record for the display. Idempotent:
	// re-advertising replaces the prior record.
	Advertise(displayID, tenantID, name string, port int) error

	// Withdraw removes the advertisement. Safe to call if the display
	// was never advertised.
	Withdraw(displayID string)

	// Resolve browses for the display and returns its address on first
	// match. It fails with a not-found error after the timeout, and can
	// be abandoned early through ctx.
	Resolve(ctx context.Context, displayID string, timeout time.Duration) (*Entry, error)

	// Close withdraws all advertisements
	Close()
}

// MDNS implements Service using multicast DNS
type MDNS struct {
	domain string
	logger *slog.Logger

	mu      sync.Mutex
	servers map[string]*zeroconf.Server
}

// NewMDNS creates an mDNS discovery service
func NewMDNS(domain string, logger *slog.Logger) *MDNS {
	if domain == "" {
		domain = DefaultDomain
	}
	return &MDNS{
		domain:  domain,
		logger:  logger,
		servers: make(map[string]*zeroconf.Server),
	}
}

// Advertise publishes a service record for the display
func (m *MDNS) Advertise(displayID, tenantID, name string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.servers[displayID]; ok {
		prior.Shutdown()
		delete(m.servers, displayID)
	}

	server, err := zeroconf.Register(
		displayID,
		ServiceType,
		m.domain,
		port,
		encodeTXT(displayID, tenantID, name),
		nil,
	)
	if err != nil {
		return err
	}

	m.servers[displayID] = server
	m.logger.Info("advertising display",
		"displayId", displayID,
		"name", name,
		"port", port,
	)
	return nil
}

// Withdraw removes the advertisement
func (m *MDNS) Withdraw(displayID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if server, ok := m.servers[displayID]; ok {
		server.Shutdown()
		delete(m.servers, displayID)
		m.logger.Info("withdrew advertisement", "displayId", displayID)
	}
}

// Resolve browses for a display of the fixed service type. Matches for
// other displays are filtered out rather than assumed absent.
func (m *MDNS) Resolve(ctx context.Context, displayID string, timeout time.Duration) (*Entry, error) {
	const op = "MDNS.Resolve"

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, werrors.NewError("DISCOVERY", "error creating resolver", op, err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(browseCtx, ServiceType, m.domain, entries); err != nil {
		return nil, werrors.NewError("DISCOVERY", "error browsing network", op, err)
	}

	for {
		select {
		case <-browseCtx.Done():
			return nil, resolveErr(ctx, op)
		case se, ok := <-entries:
			if !ok {
				return nil, resolveErr(ctx, op)
			}
			entry := fromServiceEntry(se)
			if entry == nil || entry.DisplayID != displayID {
				continue
			}
			return entry, nil
		}
	}
}

// resolveErr maps the end of a browse to its cause: abandonment by the
// caller is the caller's context error, not a discovery timeout.
func resolveErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return werrors.NewError(
		"DISCOVERY_TIMEOUT",
		"no matching display found",
		op,
		werrors.ErrDiscoveryTimeout,
	)
}

// Close withdraws all advertisements
func (m *MDNS) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, server := range m.servers {
		server.Shutdown()
		delete(m.servers, id)
	}
}

// fromServiceEntry converts a browse result, preferring IPv4 addresses
func fromServiceEntry(se *zeroconf.ServiceEntry) *Entry {
	meta := parseTXT(se.Text)
	if meta["displayId"] == "" {
		return nil
	}

	entry := &Entry{
		DisplayID: meta["displayId"],
		TenantID:  meta["tenantId"],
		Name:      meta["name"],
		Port:      se.Port,
	}
	if len(se.AddrIPv4) > 0 {
		entry.Host = se.AddrIPv4[0].String()
	} else if len(se.AddrIPv6) > 0 {
		entry.Host = se.AddrIPv6[0].String()
	} else {
		entry.Host = se.HostName
	}
	return entry
}
