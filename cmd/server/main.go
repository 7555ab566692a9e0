// Package main serves the read-only dashboard API over the collected data:
// merged and priced chains, screens, derived metrics and the change log,
// with run events pushed over /ws/events.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"options-data-lab/internal/api"
	"options-data-lab/internal/app"
	"options-data-lab/internal/config"
	"options-data-lab/internal/logger"
	"options-data-lab/internal/screening"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (default from SERVER_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.Must(cfg.App.LogLevel, cfg.App.Env)
	defer func() { _ = log.Sync() }()

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatalw("open storage", "error", err)
	}
	defer backend.Close()

	hubCfg := api.DefaultHubConfig()
	hubCfg.PollInterval = cfg.Server.PollInterval
	hub := api.NewHub(backend.Stores.ChangeLog, &hubCfg, time.Now(), log)

	server := api.New(api.Readers{
		Merged:     backend.Merged,
		Priced:     backend.Priced,
		IVStats:    backend.Stores.IVStats,
		Volatility: backend.Stores.Volatility,
		Streaks:    backend.Stores.Streaks,
		MasterData: backend.Stores.MasterData,
		ChangeLog:  backend.Stores.ChangeLog,
	}, screening.MarriedPutParams{
		MinOpenInterest: cfg.Screening.MinOpenInterest,
		MinDTE:          cfg.Screening.MinDTE,
		MinStrikeRatio:  cfg.Screening.MinStrikeRatio,
		MaxStrikeRatio:  cfg.Screening.MaxStrikeRatio,
		TopN:            cfg.Screening.TopN,
	}, hub, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := hub.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorw("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Infow("shutdown complete")
}
