package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gymbro/internal/config"
	"gymbro/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	app, err := NewApp(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize app", "error", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("error closing resources", "error", err)
		}
	}()

	if err := app.StartEventLog(); err != nil {
		log.Warn("failed to start event consumer", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.AppPort)
		return app.Fiber.Listen(cfg.AppPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		return app.Fiber.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped with error", "error", err)
		return
	}
	log.Info("server gracefully stopped")
}
