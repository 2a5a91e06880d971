package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/config"
	"github.com/marmos91/dittofiles/pkg/server"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

const usage = `dittofiles - file storage API with image thumbnails

Usage:
  dittofiles init [--force]          Write a default config file
  dittofiles start [--config path]   Start the server
  dittofiles schema [path]           Write the config JSON schema (default: stdout)
  dittofiles version                 Print version information
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "start":
		runStart(os.Args[2:])
	case "schema":
		runSchema(os.Args[2:])
	case "version":
		fmt.Printf("dittofiles %s (commit %s)\n", version, commit)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	_ = fs.Parse(args)

	path, err := config.InitConfig(*force)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	fmt.Printf("Configuration written to %s\n", path)
}

func runSchema(args []string) {
	schema, err := config.JSONSchema()
	if err != nil {
		log.Fatalf("Failed to generate schema: %v", err)
	}

	if len(args) == 0 {
		_, _ = os.Stdout.Write(schema)
		return
	}
	if err := os.WriteFile(args[0], schema, 0644); err != nil {
		log.Fatalf("Failed to write schema: %v", err)
	}
	fmt.Printf("JSON schema written to %s\n", args[0])
}

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dittofiles/config.yaml)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	if err := run(cfg); err != nil {
		logger.Error("Server error: %v", err)
		_ = logger.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger.Info("dittofiles %s starting", version)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Step 1: Metrics collectors
	// ========================================================================

	m := config.InitializeMetrics(cfg)

	// ========================================================================
	// Step 2: Stores and services
	// ========================================================================

	reg, err := config.InitializeRegistry(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("Failed to close stores: %v", err)
		}
	}()

	// ========================================================================
	// Step 3: Server, adapters and background components
	// ========================================================================

	srv := server.New(reg, server.Options{ShutdownTimeout: cfg.Server.ShutdownTimeout})

	adapters, err := config.CreateAdapters(cfg, m.HTTP)
	if err != nil {
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	if worker := config.CreateThumbnailWorker(cfg, reg, m); worker != nil {
		srv.SetThumbnailWorker(worker)
		logger.Info("Thumbnail worker: widths=%v concurrency=%d", cfg.Thumbnails.Widths, cfg.Thumbnails.Concurrency)
	}
	if collector := config.CreateCollector(cfg, reg, m); collector != nil {
		srv.SetCollector(collector)
		logger.Info("Garbage collector: interval=%v grace=%v dry_run=%v", cfg.GC.Interval, cfg.GC.GracePeriod, cfg.GC.DryRun)
	}
	if metricsServer := config.CreateMetricsServer(cfg, reg.Healthcheck); metricsServer != nil {
		srv.SetMetricsServer(metricsServer)
		logger.Info("Metrics server on port %d", cfg.Server.Metrics.Port)
	}

	// ========================================================================
	// Step 4: Serve until signalled
	// ========================================================================

	logger.Info("Server is running. Press Ctrl+C to stop.")
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
