package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/mcsched/internal/config"
	"github.com/me/mcsched/internal/logging"
	"github.com/me/mcsched/internal/scheduler"
	"github.com/me/mcsched/internal/server"
	"github.com/me/mcsched/internal/snapshot"
)

func main() {
	defaults := config.DefaultServerConfig()

	configFile := flag.String("config", "", "Path to YAML server config")
	addr := flag.String("addr", defaults.Addr, "Listen address")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", defaults.LogFormat, "Log format (text, json)")
	interval := flag.Duration("interval", defaults.Scheduler.Interval, "Time between scheduling passes")
	timeout := flag.Duration("worker-timeout", defaults.Scheduler.WorkerTimeout, "Heartbeat age after which a worker is UNKNOWN")
	snapshotPath := flag.String("snapshot", defaults.Snapshot.Path, "Snapshot file path for the file backend")
	noRestore := flag.Bool("no-restore", false, "Do not restore the latest snapshot at startup")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg := defaults
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadServerConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "interval":
			cfg.Scheduler.Interval = *interval
		case "worker-timeout":
			cfg.Scheduler.WorkerTimeout = *timeout
		case "snapshot":
			cfg.Snapshot.Path = *snapshotPath
		case "no-restore":
			cfg.Snapshot.Restore = !*noRestore
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := snapshot.Open(ctx, cfg.Snapshot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open snapshot store: %v\n", err)
		os.Exit(1)
	}

	var opts []scheduler.Option
	if store != nil {
		defer store.Close()
		opts = append(opts, scheduler.WithSnapshotStore(store))
	}

	core := scheduler.NewCore(scheduler.Config{
		Interval:      cfg.Scheduler.Interval,
		WorkerTimeout: cfg.Scheduler.WorkerTimeout,
		Autosave:      cfg.Snapshot.Autosave,
	}, logger, opts...)

	if store != nil && cfg.Snapshot.Restore {
		restored, err := core.Restore(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "restore snapshot: %v\n", err)
			os.Exit(1)
		case restored:
			st := core.Stats()
			logger.Info("snapshot restored", "queued", st.Queued, "history", st.History)
		}
	}

	srv := server.New(cfg, core, logger, server.WithLoopContext(ctx))
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	core.Start(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdown(shutdownCtx, httpServer, core, store != nil, logger)
	logger.Info("server stopped")
}

// shutdown drains HTTP requests, stops the loop and then writes the final
// snapshot, so no request or pass can change state after the save.
func shutdown(ctx context.Context, httpServer *http.Server, core *scheduler.Core, save bool, logger *slog.Logger) {
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	core.Stop()
	core.Wait()

	if save {
		if err := core.Save(ctx); err != nil {
			logger.Error("final snapshot failed", "error", err)
		}
	}
}
