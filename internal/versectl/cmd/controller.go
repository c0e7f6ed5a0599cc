package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/versewall/versewall/internal/discovery"
	"github.com/versewall/versewall/internal/relay"
	"github.com/versewall/versewall/internal/versectl/client"
	"github.com/versewall/versewall/internal/versectl/config"
	"github.com/versewall/versewall/internal/versectl/registry"
)

// controller bundles the live resources one command invocation needs:
// the registry handle, the broker link, and the connection manager.
type controller struct {
	context  *config.Context
	registry *registry.Registry
	relay    *relay.Client
	manager  *client.Manager
	mdns     *discovery.MDNS
	logger   *slog.Logger
}

// newController builds a controller from the active context. Both the
// registry and the broker are optional; commands fail later if the
// piece they need is missing.
func newController() (*controller, error) {
	ctx, err := currentContext()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c := &controller{
		context: ctx,
		logger:  logger,
	}

	if ctx.Database != "" {
		reg, err := registry.Connect(ctx.Database)
		if err != nil {
			return nil, err
		}
		c.registry = reg
	}

	if ctx.Broker != "" {
		relayClient, err := relay.Dial(relay.Options{
			BrokerURL:      ctx.Broker,
			ClientID:       "versectl-" + uuid.NewString()[:8],
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
		}, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.relay = relayClient
	}

	c.mdns = discovery.NewMDNS("", logger)
	c.manager = client.NewManager(client.Options{
		Token:            ctx.Token,
		TenantID:         ctx.Tenant,
		Registry:         managerLookup(c.registry),
		Discovery:        c.mdns,
		Relay:            managerRelay(c.relay),
		LocalDialTimeout: 5 * time.Second,
		DiscoveryTimeout: 3 * time.Second,
		Logger:           logger,
	})

	return c, nil
}

// managerLookup avoids handing the manager a typed-nil interface
func managerLookup(reg *registry.Registry) client.Lookup {
	if reg == nil {
		return nil
	}
	return reg
}

// managerRelay avoids handing the manager a typed-nil interface
func managerRelay(rc *relay.Client) client.Relay {
	if rc == nil {
		return nil
	}
	return rc
}

// requireRegistry fails fast for commands that need registry access
func (c *controller) requireRegistry() error {
	if c.registry == nil {
		return fmt.Errorf("this command needs a registry database; set one with versectl config set-context --database")
	}
	return nil
}

// requireTenant fails fast for commands that need a tenant scope
func (c *controller) requireTenant() error {
	if c.context.Tenant == "" {
		return fmt.Errorf("this command needs a tenant; set one with versectl config set-context --tenant")
	}
	return nil
}

// Close releases everything the invocation acquired
func (c *controller) Close() {
	if c.manager != nil {
		c.manager.Close()
	}
	if c.mdns != nil {
		c.mdns.Close()
	}
	if c.relay != nil {
		c.relay.Close()
	}
	if c.registry != nil {
		if err := c.registry.Close(); err != nil {
			c.logger.Error("error closing registry", "error", err)
		}
	}
}
