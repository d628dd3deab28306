package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aq2208/stitch-order-api/cmd/order-api/app"
	"github.com/aq2208/stitch-order-api/configs"
	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	defEnv := os.Getenv("APP_ENV") // dev | staging | prod
	if defEnv == "" {
		defEnv = "dev"
	}
	configDir := pflag.String("config-dir", "configs", "directory holding base.yaml and <env>.yaml")
	env := pflag.String("env", defEnv, "config overlay to load")
	pflag.Parse()

	cfg, err := configs.Load(*configDir, *env)
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.InitWithConfig(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      a.Router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("order-api listening", "env", *env, "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	for _, w := range a.Workers {
		w := w
		g.Go(func() error {
			if err := w(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("order-api stopped", "err", err)
		cleanup()
		os.Exit(1)
	}
	logger.Info("order-api stopped")
}
