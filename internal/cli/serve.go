package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/woxQAQ/sqlcursor/internal/addon"
	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/config"
	"github.com/woxQAQ/sqlcursor/internal/lsp"
	"github.com/woxQAQ/sqlcursor/internal/wasm"
)

func newServeCommand(opts *options) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the language server",
		Long: `Start the LSP server. It speaks JSON-RPC over stdin/stdout unless a
TCP port is given with --port or lsp.port in the config file.`,
		Example: `  sqlcursor serve
  sqlcursor serve --port 7777 --config sqlcursor.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				opts.cfg.LSP.Port = port
			}
			return runServe(commandContext(cmd), opts.cfg, opts.logger)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "TCP port for LSP server (0 for stdio)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) error {
	logger.Info("Starting sqlcursor",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("date", BuildDate),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sources.close(logger)

	session := lsp.NewSession(sources.snapshot, sources.lookup)
	server := lsp.NewServer(cfg, session, logger, Version)

	if cfg.LSP.Port > 0 {
		err = server.ServeTCP(ctx, cfg.LSP.Port)
	} else {
		err = server.ServeStdio(ctx)
	}
	if err != nil {
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}

// catalogSources is everything completion reads objects from, plus what
// must be released on exit.
type catalogSources struct {
	snapshot *catalog.Snapshot
	lookup   catalog.LiveLookup

	postgres *catalog.Postgres
	addons   *addon.Manager
}

// openCatalog merges the built-in objects, the snapshot file, a live
// PostgreSQL introspection and the add-on catalogs. Unreachable databases
// and broken add-ons degrade completion but never stop the server.
func openCatalog(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (*catalogSources, error) {
	s := &catalogSources{snapshot: catalog.Builtin()}
	var lookups catalog.Lookups

	if path := cfg.Catalog.SnapshotFile; path != "" {
		snap, err := catalog.LoadSnapshotFile(path)
		if err != nil {
			return nil, err
		}
		s.snapshot = s.snapshot.Merge(snap)
		logger.Info("Loaded catalog snapshot", zap.String("path", path), zap.Int("objects", snap.Len()))
	}

	if cfg.Catalog.DSN != "" {
		if pg, snap, err := introspect(ctx, cfg, logger); err != nil {
			logger.Warn("Catalog introspection failed", zap.Error(err))
		} else {
			s.postgres = pg
			s.snapshot = s.snapshot.Merge(snap)
			lookups = append(lookups, pg)
		}
	}

	runtime, err := wasm.NewRuntime(ctx, logger, runtimeConfig(cfg.Wasm))
	if err != nil {
		s.close(logger)
		return nil, err
	}
	s.addons = addon.NewManager(cfg, runtime, logger)
	if err := s.addons.LoadAll(ctx); err != nil {
		logger.Warn("Failed to load add-ons", zap.Error(err))
	}
	s.snapshot = s.snapshot.Merge(s.addons.Snapshot())
	if l := s.addons.LiveLookup(); l != nil {
		lookups = append(lookups, l)
	}

	s.lookup = append(lookups, catalog.SnapshotLookup{Snapshot: s.snapshot})
	return s, nil
}

func introspect(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) (*catalog.Postgres, *catalog.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.IntrospectionTimeout())
	defer cancel()

	pg, err := catalog.OpenPostgres(ctx, cfg.Catalog.DSN, catalog.PostgresOptions{Schemas: cfg.Catalog.Schemas}, logger)
	if err != nil {
		return nil, nil, err
	}
	snap, err := pg.Snapshot(ctx)
	if err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, snap, nil
}

func (s *catalogSources) close(logger *zap.Logger) {
	if s.postgres != nil {
		if err := s.postgres.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	if s.addons != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.addons.Shutdown(ctx); err != nil {
			logger.Warn("Failed to shut down add-ons", zap.Error(err))
		}
	}
}

func runtimeConfig(c config.WasmConfig) *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:      c.MemoryPages,
		DebugEnabled:     c.Debug,
		CacheDir:         c.CacheDir,
		MaxInstances:     c.MaxInstances,
		ExecutionTimeout: time.Duration(c.ExecutionTimeout) * time.Second,
	}
}
