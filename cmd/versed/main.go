// The versed command implements the Versewall display host daemon
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/versed/config"
	"github.com/versewall/versewall/internal/versed/database"
	"github.com/versewall/versewall/internal/discovery"
	werrors "github.com/versewall/versewall/internal/errors"
	opshttp "github.com/versewall/versewall/internal/versed/http"
	"github.com/versewall/versewall/internal/versed/local"
	"github.com/versewall/versewall/internal/versed/migrations"
	"github.com/versewall/versewall/internal/versed/pairing"
	"github.com/versewall/versewall/internal/versed/ratelimit"
	ratelimitredis "github.com/versewall/versewall/internal/versed/ratelimit/redis"
	"github.com/versewall/versewall/internal/relay"
	"github.com/versewall/versewall/internal/versed/uplink"
	"github.com/versewall/versewall/internal/versed/session"
	"github.com/versewall/versewall/internal/versed/store"
	storepg "github.com/versewall/versewall/internal/versed/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Structured logging with JSON format for easier parsing
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			logger.Error("failed to load config file", "error", err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			logger.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
	}

	db, err := database.Connect(cfg.Database, 5, time.Second)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.NewManager(db).ApplyMigrations(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := newDaemon(cfg, db, logger)
	if err := d.run(ctx); err != nil {
		logger.Error("daemon error", "error", err)
		os.Exit(1)
	}

	logger.Info("versed stopped")
}

// daemon wires the host's subsystems around one display session
type daemon struct {
	cfg     *config.Config
	repo    store.Repository
	limiter ratelimit.Service
	session *session.Session
	pairing *pairing.Service
	mdns    *discovery.MDNS
	logger  *slog.Logger

	relayProbe relayProbe
	localProbe localProbe
}

func newDaemon(cfg *config.Config, db *sql.DB, logger *slog.Logger) *daemon {
	repo := storepg.NewRepository(db, logger)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	limiter := ratelimit.NewService(ratelimitredis.NewStore(redisClient), logger)

	sess := session.New(logger)
	pairingFile := pairing.NewFile(cfg.Display.DataDir)

	return &daemon{
		cfg:     cfg,
		repo:    repo,
		limiter: limiter,
		session: sess,
		pairing: pairing.NewService(repo, pairingFile, limiter, logger),
		mdns:    discovery.NewMDNS(cfg.Discovery.Domain, logger),
		logger:  logger,
	}
}

// run serves until ctx ends, pairing and re-pairing as needed
func (d *daemon) run(ctx context.Context) error {
	opsServer := d.startOpsServer()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("ops server shutdown error", "error", err)
		}
	}()
	defer d.mdns.Close()

	for {
		identity, err := d.resolveIdentity(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		d.session.SetPaired(identity)

		if err := d.serveDisplay(ctx, identity); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		// Unpaired while running; go back to pairing
	}
}

// resolveIdentity loads the persisted pairing or walks the pairing flow
// until the display is claimed
func (d *daemon) resolveIdentity(ctx context.Context) (*v1alpha1.DisplayIdentity, error) {
	for {
		identity, err := d.pairing.Resolve(ctx)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, werrors.ErrNotPaired) {
			d.logger.Error("error resolving pairing", "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				continue
			}
		}

		d.session.BeginPairing()

		code, err := d.pairing.NewCode(ctx)
		if err != nil {
			d.logger.Error("error creating pairing code", "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				continue
			}
		}

		// The UI layer renders these; the log line is the operator's view
		d.logger.Info("awaiting pairing",
			"code", code.Value,
			"uri", code.URI,
			"expiresAt", code.ExpiresAt,
		)

		identity, err = d.pairing.AwaitClaim(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Expired or transient store failure; issue a fresh code
			d.logger.Info("pairing attempt ended, retrying", "error", err)
			continue
		}
		return identity, nil
	}
}

// serveDisplay runs all transports for one paired identity. It returns
// nil when the pairing is revoked (so run can pair again) or when ctx
// ends.
func (d *daemon) serveDisplay(ctx context.Context, identity *v1alpha1.DisplayIdentity) error {
	displayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// LAN listener
	localServer := local.NewServer(local.Config{
		DisplayID:    identity.DisplayID,
		TenantID:     identity.TenantID,
		Host:         d.cfg.Local.Host,
		Port:         d.cfg.Local.Port,
		WriteTimeout: d.cfg.Local.WriteTimeout,
	}, d.session, d.limiter, d.logger)
	if err := localServer.Start(); err != nil {
		return fmt.Errorf("error starting local server: %w", err)
	}
	defer localServer.Stop()
	d.localProbe.set(localServer)
	defer d.localProbe.set(nil)

	if d.cfg.Discovery.Enabled {
		if err := d.mdns.Advertise(identity.DisplayID, identity.TenantID, identity.Name, d.cfg.Local.Port); err != nil {
			// Discovery is best-effort: controllers fall back to the
			// advertised address or the cloud relay.
			d.logger.Error("error starting mdns advertisement", "error", err)
		} else {
			defer d.mdns.Withdraw(identity.DisplayID)
		}
	}

	// Cloud relay
	will, err := uplink.LeavePresence(identity.DisplayID, identity.Name)
	if err != nil {
		return fmt.Errorf("error encoding presence will: %w", err)
	}
	// Presence joins must repeat after every broker reconnect; the
	// buffered channel decouples the connect callback from host setup
	connected := make(chan struct{}, 1)
	relayClient, err := relay.Dial(relay.Options{
		BrokerURL:      d.cfg.Relay.BrokerURL,
		ClientID:       "versed-" + identity.DisplayID,
		QoS:            byte(d.cfg.Relay.QoS),
		ConnectTimeout: d.cfg.Relay.ConnectTimeout,
		Will: &relay.Message{
			Topic:   relay.PresenceTopic(identity.TenantID),
			Payload: will,
		},
		OnConnect: func() {
			select {
			case connected <- struct{}{}:
			default:
			}
		},
	}, d.logger)
	if err != nil {
		return fmt.Errorf("error dialing relay: %w", err)
	}
	relayHost := uplink.NewHost(relayClient, identity.DisplayID, identity.TenantID, identity.Name, d.logger)
	if err := relayHost.Start(d.session.ApplyCommand); err != nil {
		d.logger.Error("error starting relay host", "error", err)
	}
	defer relayClient.Close()
	defer relayHost.Stop()
	d.relayProbe.set(relayClient)
	defer d.relayProbe.set(nil)

	go func() {
		for {
			select {
			case <-displayCtx.Done():
				return
			case <-connected:
				if err := relayHost.AnnouncePresence(); err != nil {
					d.logger.Error("error announcing presence", "error", err)
				}
			}
		}
	}()

	// Every state change goes to both transports, fire and forget
	d.session.SetBroadcasters(
		localServer.BroadcastState,
		func(state *v1alpha1.HostState) {
			if err := relayHost.PublishState(state); err != nil {
				d.logger.Error("error publishing state to relay", "error", err)
			}
		},
	)
	defer d.session.SetBroadcasters()

	// Liveness and address advertisement
	var wg sync.WaitGroup
	heartbeat := uplink.NewHeartbeat(d.repo, identity.DisplayID, d.cfg.Display.HeartbeatInterval, d.logger)
	advertiser := uplink.NewAddressAdvertiser(d.repo, identity.DisplayID, d.cfg.Local.Port, d.cfg.Display.AdvertiseInterval, d.logger)
	wg.Add(2)
	go func() {
		defer wg.Done()
		heartbeat.Run(displayCtx)
	}()
	go func() {
		defer wg.Done()
		advertiser.Run(displayCtx)
	}()

	// Watch the registry for this display's row being removed
	unpaired := make(chan struct{}, 1)
	feed := storepg.NewChangeFeed(database.ConnString(d.cfg.Database), d.logger)
	err = feed.Subscribe(displayCtx, func(change store.Change) {
		if change.Op == store.OpRemove && change.DisplayID == identity.DisplayID {
			select {
			case unpaired <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		d.logger.Error("error subscribing to registry changes", "error", err)
	} else {
		defer func() {
			if err := feed.Close(); err != nil {
				d.logger.Error("error closing change feed", "error", err)
			}
		}()
	}

	d.logger.Info("display serving",
		"displayId", identity.DisplayID,
		"tenantId", identity.TenantID,
		"name", identity.Name,
		"localPort", d.cfg.Local.Port,
	)

	select {
	case <-ctx.Done():
		// Intentional disconnect: flip to offline immediately rather
		// than waiting out the liveness TTL
		cancel()
		wg.Wait()
		offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer offlineCancel()
		heartbeat.MarkOffline(offlineCtx)
		return nil
	case <-unpaired:
		d.logger.Info("display removed from registry", "displayId", identity.DisplayID)
		d.session.Unpair()
		if err := d.pairing.Forget(); err != nil {
			d.logger.Error("error clearing pairing file", "error", err)
		}
		cancel()
		wg.Wait()
		return nil
	}
}

// startOpsServer serves health checks and the status endpoint
func (d *daemon) startOpsServer() *http.Server {
	handler := opshttp.NewHandler(d.session, &d.relayProbe, &d.localProbe, d.logger)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", d.cfg.Server.Host, d.cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  d.cfg.Server.ReadTimeout,
		WriteTimeout: d.cfg.Server.WriteTimeout,
		IdleTimeout:  d.cfg.Server.IdleTimeout,
	}

	go func() {
		d.logger.Info("starting ops server",
			"host", d.cfg.Server.Host,
			"port", d.cfg.Server.Port,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error("ops server error", "error", err)
		}
	}()

	return server
}

// relayProbe exposes the current relay client's connectivity to the ops
// handler across pairing cycles
type relayProbe struct {
	mu     sync.RWMutex
	client *relay.Client
}

func (p *relayProbe) set(c *relay.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = c
}

func (p *relayProbe) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil && p.client.Connected()
}

// localProbe exposes the current LAN listener to the ops handler
type localProbe struct {
	mu     sync.RWMutex
	server *local.Server
}

func (p *localProbe) set(s *local.Server) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.server = s
}

func (p *localProbe) Addr() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.server == nil {
		return ""
	}
	if addr := p.server.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (p *localProbe) ClientCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.server == nil {
		return 0
	}
	return p.server.ClientCount()
}
