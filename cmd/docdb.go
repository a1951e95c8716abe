package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adfharrison1/go-docdb/pkg/config"
	"github.com/adfharrison1/go-docdb/pkg/server"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

func main() {
	// Command line flags
	var (
		configFile   = flag.String("config", "", "YAML config file")
		addr         = flag.String("addr", "", "Listen address (overrides server.addr)")
		snapshotFile = flag.String("snapshot-file", "", "Snapshot file loaded at startup and saved on shutdown (overrides storage.snapshot_file)")
		snapshotInt  = flag.Duration("snapshot-interval", 0, "Periodic snapshot interval, e.g. 5m (overrides storage.snapshot_interval)")
		logLevel     = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides logging.level)")
		noMetrics    = flag.Bool("no-metrics", false, "Disable the /metrics endpoint")
		showHelp     = flag.Bool("help", false, "Show help message")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ngo-docdb is an in-memory document database with snapshot export.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                    # Start with defaults\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config docdb.yml                 # Load a YAML config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -addr :9090 -snapshot-interval 5m # Custom port and periodic snapshots\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSafety Note:\n")
		fmt.Fprintf(os.Stderr, "  Without -snapshot-interval, data is only saved on graceful shutdown.\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *snapshotFile != "" {
		cfg.Storage.SnapshotFile = *snapshotFile
	}
	if *snapshotInt > 0 {
		cfg.Storage.SnapshotInterval = *snapshotInt
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *noMetrics {
		cfg.Server.Metrics = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger.Sugar()); err != nil {
		logger.Sugar().Fatalw("server exited with error", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	engine := storage.NewEngine(storage.WithLogger(log.Named("storage")))
	if cfg.Storage.SnapshotFile != "" {
		if err := engine.LoadFromFile(cfg.Storage.SnapshotFile); err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
	}

	var options []server.Option
	options = append(options, server.WithLogger(log.Named("http")))
	if cfg.Server.Metrics {
		options = append(options, server.WithMetrics())
	}
	srv := server.NewServer(engine, options...)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	log.Infow("starting go-docdb server", "addr", ln.Addr().String(), "metrics", cfg.Server.Metrics)
	err = serve(ctx, log, httpServer, ln, engine, cfg)
	log.Infow("server exited")
	return err
}

// serve runs httpServer on ln until ctx is done, drains in-flight requests
// and then writes the final snapshot, so every acknowledged write is saved.
func serve(ctx context.Context, log *zap.SugaredLogger, httpServer *http.Server, ln net.Listener, engine *storage.Engine, cfg *config.Config) error {
	g, gctx := errgroup.WithContext(ctx)

	// snapshotCtx outlives gctx until the HTTP drain is over.
	snapshotCtx, stopSnapshots := context.WithCancel(context.Background())
	defer stopSnapshots()

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	periodic := cfg.Storage.SnapshotInterval > 0
	if periodic {
		log.Infow("periodic snapshots enabled", "file", cfg.Storage.SnapshotFile, "interval", cfg.Storage.SnapshotInterval)
		// RunSnapshots writes a final snapshot when snapshotCtx ends.
		g.Go(func() error {
			return engine.RunSnapshots(snapshotCtx, cfg.Storage.SnapshotFile, cfg.Storage.SnapshotInterval)
		})
	} else if cfg.Storage.SnapshotFile != "" {
		log.Warnw("periodic snapshots disabled, data is only saved on graceful shutdown")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)

		switch {
		case periodic:
			stopSnapshots()
		case cfg.Storage.SnapshotFile != "":
			err = multierr.Append(err, engine.SaveToFile(cfg.Storage.SnapshotFile))
		}
		return err
	})

	return g.Wait()
}
