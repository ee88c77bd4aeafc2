// Command tabled serves the table access API: a policy-gated CRUD surface
// over a fixed allow-list of database tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/incisive-io/tabled/internal/audit"
	"github.com/incisive-io/tabled/internal/catalog"
	"github.com/incisive-io/tabled/internal/config"
	"github.com/incisive-io/tabled/internal/engine"
	"github.com/incisive-io/tabled/internal/hash"
	"github.com/incisive-io/tabled/internal/logger"
	"github.com/incisive-io/tabled/internal/policy"
	"github.com/incisive-io/tabled/internal/revshare"
	"github.com/incisive-io/tabled/internal/server"
	"github.com/incisive-io/tabled/internal/storage"
	"github.com/incisive-io/tabled/internal/storage/mysql"
	"github.com/incisive-io/tabled/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "tabled: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()
	log.Infof("connected to %s", cfg.Database.Driver)

	cat, err := loadCatalog(ctx, cfg, store)
	if err != nil {
		return err
	}
	log.Infof("catalog loaded with %d tables", len(cat.TableNames()))

	pol := policy.New(policy.Config{
		Allowed:   cfg.Tables.Allowed,
		Excluded:  cfg.Tables.Excluded,
		AdminOnly: cfg.Tables.AdminOnly,
		ReadOnly:  cfg.Tables.ReadOnly,
	})

	sink := audit.NewStoreSink(store, log)
	rev := revshare.New(store, sink)

	eng := engine.New(cat, pol, store, hash.NewBcrypt(), sink, rev, log, engine.Config{
		HiddenFields:      cfg.Tables.HiddenFields,
		TableHiddenFields: cfg.Tables.TableHiddenFields,
	})

	srv := server.New(cfg.Server, eng, store, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	storeCfg := &storage.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		QueryTimeout:    cfg.Database.QueryTimeout,
	}
	if cfg.Database.Driver == "mysql" {
		return mysql.New(ctx, storeCfg)
	}
	return postgres.New(ctx, storeCfg)
}

// loadCatalog prefers a schema definition file when configured, falling
// back to live introspection.
func loadCatalog(ctx context.Context, cfg *config.Config, store storage.Store) (*catalog.Catalog, error) {
	if cfg.Tables.SchemaFile != "" {
		return catalog.LoadFile(cfg.Tables.SchemaFile)
	}
	intr, ok := store.(catalog.Introspector)
	if !ok {
		return nil, fmt.Errorf("driver cannot introspect and no schema file configured")
	}
	return catalog.Load(ctx, intr)
}
