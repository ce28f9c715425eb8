package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/artpar/skybite/internal/shell/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file")
	seedPath := flag.String("seed", "", "Load a YAML catalog fixture into the database and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("skybite %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	logger := SetupLogger(cfg)

	if *seedPath != "" {
		return runSeed(cfg, *seedPath, logger)
	}

	logger.Info("starting skybite",
		"version", Version,
		"config", *configPath,
		"database_driver", cfg.Database.Driver,
	)

	server, err := NewServer(cfg, logger)
	if err != nil {
		return exitCode(logger, "failed to create server", err)
	}

	if err := server.Start(context.Background()); err != nil {
		return exitCode(logger, "server error", err)
	}
	return ExitSuccess
}

func runSeed(cfg *Config, path string, logger *slog.Logger) int {
	fixture, err := LoadFixture(path)
	if err != nil {
		logger.Error("failed to load fixture", "path", path, "error", err)
		return ExitConfigError
	}

	s, err := store.NewStore(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return ExitDatabaseError
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sum, err := Seed(ctx, s, fixture, time.Now().UTC())
	if err != nil {
		logger.Error("seed failed, nothing was written", "path", path, "error", err)
		return ExitDatabaseError
	}
	logger.Info("seed complete",
		"path", path,
		"categories", sum.Categories,
		"restaurants", sum.Restaurants,
		"dishes", sum.Dishes,
		"promotions", sum.Promotions,
		"stations", sum.Stations,
		"drones", sum.Drones,
	)
	return ExitSuccess
}

func exitCode(logger *slog.Logger, msg string, err error) int {
	if sErr, ok := err.(*ServerError); ok {
		logger.Error(msg, "error", sErr.Err, "operation", sErr.Op)
		return sErr.ExitCode
	}
	logger.Error(msg, "error", err)
	return ExitConfigError
}
