package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/cyderes/canvas-notion-sync/internal/canvas"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/ingestion"
	"github.com/cyderes/canvas-notion-sync/internal/logger"
	"github.com/cyderes/canvas-notion-sync/internal/notion"
	"github.com/cyderes/canvas-notion-sync/internal/server"
	"github.com/cyderes/canvas-notion-sync/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "canvas-notion-sync",
		Usage: "copy Canvas assignments into a Notion database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "optional YAML config file"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file"},
		},
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "run one sync pass",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "look up pages without writing to Notion"},
				},
				Action: runSync,
			},
			{
				Name:   "serve",
				Usage:  "serve stored sync reports over HTTP",
				Action: runServe,
			},
		},
		DefaultCommand: "sync",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setup builds the logger and run-report storage; the caller runs cleanup
func setup(c *cli.Context, cfg *config.Config) (zerolog.Logger, storage.Storage, func(), error) {
	log, logCloser, err := logger.New(cfg.Logging, os.Stdout)
	if err != nil {
		return zerolog.Nop(), nil, nil, err
	}

	store, err := storage.NewStorage(c.Context, cfg.Storage)
	if err != nil {
		logCloser.Close()
		return zerolog.Nop(), nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close storage")
		}
		logCloser.Close()
	}
	return log, store, cleanup, nil
}

func runSync(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// nothing touches the network until the required settings are present
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, store, cleanup, err := setup(c, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	source := canvas.NewClient(cfg.Canvas.BaseURL(), cfg.Canvas, httpClient, log)
	destination := notion.NewClient(cfg.Notion, httpClient, log)
	service := ingestion.NewService(source, destination, store, log, ingestion.Options{
		DryRun: c.Bool("dry-run"),
	})

	report, err := service.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync %s failed: %w", report.ID, err)
	}
	return nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, store, cleanup, err := setup(c, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := server.NewServer(cfg.Server, store, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-sigChan:
		log.Info().Msg("Shutdown signal received, gracefully shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	log.Info().Msg("Shutdown complete")
	return nil
}
