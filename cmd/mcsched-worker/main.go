package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/me/mcsched/internal/config"
	"github.com/me/mcsched/internal/logging"
	"github.com/me/mcsched/internal/worker"
)

func main() {
	defaults := config.DefaultWorkerConfig()

	configFile := flag.String("config", "", "Path to YAML worker config (chains and their commands)")
	serverURL := flag.String("server", defaults.ServerURL, "Scheduler URL")
	name := flag.String("name", defaults.Name, "Worker name (default: hostname)")
	address := flag.String("address", defaults.Address, "Address reported to the scheduler (default: hostname)")
	workDir := flag.String("workdir", "", "Local working directory (default: $TMPDIR/mcsched-worker)")
	poll := flag.Duration("poll", defaults.PollInterval, "Poll interval")
	heartbeat := flag.Duration("heartbeat", defaults.HeartbeatInterval, "Heartbeat interval")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", defaults.LogFormat, "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg := defaults
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadWorkerConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.ServerURL = *serverURL
		case "name":
			cfg.Name = *name
		case "address":
			cfg.Address = *address
		case "workdir":
			cfg.WorkDir = *workDir
		case "poll":
			cfg.PollInterval = *poll
		case "heartbeat":
			cfg.HeartbeatInterval = *heartbeat
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "mcsched-worker")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if len(cfg.Chains) == 0 {
		logger.Warn("no chains configured; the scheduler will never assign jobs to this worker")
	}

	runner := worker.NewCommandRunner(cfg.Chains, cfg.Env, cfg.WorkDir, logger)
	agent := worker.New(cfg, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker starting",
		"server", cfg.ServerURL,
		"name", cfg.Name,
		"chains", len(cfg.Chains),
		"workdir", cfg.WorkDir,
	)

	if err := agent.Run(ctx); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
