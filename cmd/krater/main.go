// Package main implements the krater query service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kraterdb/krater/internal/app"
	"github.com/kraterdb/krater/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		httpAddr    string
		storeHost   string
		cacheAddr   string
		debugErrors bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&storeHost, "store-host", "", "Event store host")
	flag.StringVar(&cacheAddr, "cache-addr", "", "Redis cache address")
	flag.BoolVar(&debugErrors, "debug-errors", false, "Expose backend error text in responses")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Krater - Analytics Query Engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: krater [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  krater --store-host cockroach.internal --cache-addr redis.internal:6379\n")
		fmt.Fprintf(os.Stderr, "  krater --config /etc/krater/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  KRATER_HTTP_ADDR        HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  KRATER_STORE_*          Event store connection settings\n")
		fmt.Fprintf(os.Stderr, "  KRATER_CACHE_*          Redis connection settings\n")
		fmt.Fprintf(os.Stderr, "  KRATER_EXPORT_*         Extraction export settings\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("krater version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, httpAddr, storeHost, cacheAddr, debugErrors)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// Block until SIGTERM/SIGINT; the shutdown manager drains
	// in-flight queries and tears the clients down in order.
	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, httpAddr, storeHost, cacheAddr string, debugErrors bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if storeHost != "" {
		cfg.Store.Host = storeHost
	}
	if cacheAddr != "" {
		cfg.Cache.Addr = cacheAddr
	}
	if debugErrors {
		cfg.Query.DebugErrors = true
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════╗")
	log.Printf("║                 KRATER                    ║")
	log.Printf("║         Analytics Query Engine            ║")
	log.Printf("╚═══════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  HTTP:    %s", cfg.HTTP.Addr)
	log.Printf("  Store:   %s:%d/%s", cfg.Store.Host, cfg.Store.Port, cfg.Store.DBName)
	log.Printf("  Cache:   %s", cfg.Cache.Addr)
	log.Printf("  Row cap: %d", cfg.Query.RowCap)
	if cfg.Export.Enabled {
		log.Printf("  Export:  %s (compress=%t)", cfg.Export.Type, cfg.Export.Compress)
	}
	log.Printf("")
}
