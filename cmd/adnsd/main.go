package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shuque/adnsd/internal/dns/common/log"
	"github.com/shuque/adnsd/internal/dns/common/privilege"
	"github.com/shuque/adnsd/internal/dns/config"
	"github.com/shuque/adnsd/internal/dns/resolver"
	"github.com/shuque/adnsd/internal/dns/respond"
	"github.com/shuque/adnsd/internal/dns/transport"
	"github.com/shuque/adnsd/internal/dns/zones"
)

const (
	version = "0.1.0-dev"
	appName = "adnsd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application wires together a zone store, resolver, response builder, and
// network listeners into one runnable server.
type Application struct {
	config *config.AppConfig
	store  *zones.Store
	server *transport.Server
}

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure("prod", cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":   version,
		"listen":    cfg.Listen,
		"log_level": cfg.LogLevel,
		"zones":     len(cfg.Zones),
	}, "starting adnsd")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGHUP:
				log.Info(nil, "caught SIGHUP, reloading zones")
				if err := app.reloadZones(); err != nil {
					log.Error(map[string]any{"error": err.Error()}, "zone reload failed, keeping previous zone set")
				}
			case syscall.SIGINT, syscall.SIGTERM:
				log.Info(map[string]any{"signal": sig.String()}, "shutdown signal received")
				cancel()
				return
			}
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "server failed")
	}

	log.Info(nil, "adnsd stopped gracefully")
}

// buildApplication loads the configured zones, and wires the store,
// resolver, response builder, and listeners together. It does not bind any
// sockets; that happens in Run.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	store := zones.NewStore(nil)
	if err := loadZonesInto(store, cfg); err != nil {
		return nil, fmt.Errorf("loading zones: %w", err)
	}

	res := resolver.New(store, logger)
	builder := respond.New(res, respond.Options{
		Advertise:   cfg.EDNS.Advertise,
		MaxSend:     cfg.EDNS.MaxSend,
		DisableEDNS: cfg.EDNS.Disable,
		Logger:      logger,
	})

	server := transport.NewServer(cfg.Listen, builder, logger)

	return &Application{
		config: cfg,
		store:  store,
		server: server,
	}, nil
}

// loadZonesInto loads every configured zone file and installs the result
// into store as a single atomic replacement.
func loadZonesInto(store *zones.Store, cfg *config.AppConfig) error {
	refs := make([]zones.FileRef, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		refs = append(refs, zones.FileRef{Name: z.Name, File: z.File})
	}

	loaded, err := zones.LoadAll(refs)
	if err != nil {
		return err
	}
	store.Replace(loaded)

	log.Info(map[string]any{"zones": store.Zones()}, "zone store loaded")
	return nil
}

// reloadZones re-reads every configured zone file and swaps them into the
// running store atomically. A failure leaves the previously loaded zones in
// place untouched.
func (app *Application) reloadZones() error {
	return loadZonesInto(app.store, app.config)
}

// Run binds the listeners, optionally drops privileges, and blocks until
// ctx is cancelled, then shuts the listeners down within a bounded timeout.
func (app *Application) Run(ctx context.Context) error {
	if err := app.server.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}

	if err := privilege.Drop(app.config.User, app.config.Group); err != nil {
		_ = app.server.Stop()
		return fmt.Errorf("dropping privileges: %w", err)
	}

	log.Info(map[string]any{"address": app.server.Address()}, "adnsd listening")

	<-ctx.Done()
	log.Info(nil, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- app.server.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "error during transport shutdown")
		}
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out after %s", defaultShutdownTimeout)
	}
}
