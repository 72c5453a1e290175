// Command server is the entry point for the DevShelf API server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devshelf/internal/bootstrap"
	"devshelf/internal/config"
	"devshelf/internal/middleware"
	"devshelf/internal/observability"
	"devshelf/internal/server"
)

var version = "dev"

func main() {
	seedDemo := flag.Bool("seed", false, "seed demo content into an empty database")
	flag.Parse()

	if err := run(*seedDemo); err != nil {
		middleware.Logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(seedDemo bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	stopTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "devshelf-api",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Exporter:       cfg.TracingMode,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   1,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, bootstrap.Options{SeedDemo: seedDemo})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		middleware.Logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, serr)
	}
	if terr := stopTracing(shutdownCtx); terr != nil {
		middleware.Logger.Error("tracing shutdown", slog.String("error", terr.Error()))
	}
	return err
}
