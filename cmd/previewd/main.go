package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sketchlab-dev/previewd/internal/api"
	"github.com/sketchlab-dev/previewd/internal/config"
	"github.com/sketchlab-dev/previewd/internal/database"
)

// Set via ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const shutdownGrace = 15 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("previewd %s (commit %s, built %s)\n", version, commit, buildDate)
		return
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration is not usable")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// The preview policy decides how every project bundles. Surface it in
	// the first log lines so a misconfigured deployment is caught before
	// the first broken preview, not after.
	log.Info().
		Str("version", version).
		Str("cdn", cfg.Preview.CDNBaseURL).
		Str("react", cfg.Preview.ReactVersion).
		Str("react_native_web", cfg.Preview.ReactNativeWebVersion).
		Dur("bundle_timeout", cfg.Preview.BundleTimeout).
		Int("max_bundle_bytes", cfg.Preview.MaxBundleSize).
		Msg("Preview policy loaded")

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Project store is unreachable")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Schema migration failed")
	}

	server := api.NewServer(cfg, db)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Serving previews")
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("Server stopped unexpectedly")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown requested")
	}

	// In-flight bundles get the grace window to finish rendering.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}
