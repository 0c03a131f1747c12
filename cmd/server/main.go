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
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/VibeRoom/internal/adapters/http"
	signalws "github.com/dkeye/VibeRoom/internal/adapters/signal"
	"github.com/dkeye/VibeRoom/internal/app"
	"github.com/dkeye/VibeRoom/internal/app/orch"
	"github.com/dkeye/VibeRoom/internal/config"
	"github.com/dkeye/VibeRoom/internal/core"
	"github.com/dkeye/VibeRoom/internal/store"
)

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	setupLogger(config.LogConfig{Level: "info", Pretty: true})

	cfg, v, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Log)
	config.Watch(v, func(next *config.Config) {
		if level, err := zerolog.ParseLevel(next.Log.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})

	db, err := store.Open(ctx, store.Options{
		Driver:       cfg.Store.Driver,
		RedisURL:     cfg.Store.RedisURL,
		SQLitePath:   cfg.Store.SQLitePath,
		PostgresURL:  cfg.Store.PostgresURL,
		MessageLimit: cfg.History.Messages * 10,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	writer := store.NewWriter(db, cfg.Store.Workers, cfg.Store.Queue, cfg.Store.Timeout)

	reg := app.NewRegistry()
	broadcaster := app.NewBroadcaster(reg, app.SimplePolicy{})
	manager := app.NewRoomManager(core.RoomOptions{
		Publisher:      broadcaster,
		Recorder:       writer,
		MessageHistory: cfg.History.Messages,
		VibeHistory:    cfg.Vibe.History,
		DecayPerSecond: cfg.Vibe.DecayPerSecond,
	})
	broadcaster.Rooms = manager

	o := &orch.Orchestrator{
		Registry:     reg,
		Rooms:        manager,
		Replies:      broadcaster,
		Store:        db,
		StoreTimeout: cfg.Store.Timeout,
	}
	ctl := signalws.NewSignalWSController(o, signalws.Options{
		ReadLimit:          cfg.ReadLimit,
		PingPeriod:         cfg.PingPeriod,
		PongWait:           cfg.PongWait,
		WriteWait:          cfg.WriteWait,
		SendBuffer:         cfg.SendBuffer,
		ReactionsPerSecond: cfg.Reactions.PerSecond,
	})

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("VibeRoom server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return o.RunVibeTicker(gctx, cfg.Vibe.Tick) })
	g.Go(func() error { return ctl.RunSweeper(gctx, 30*time.Second) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	writer.Close()
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("close store")
	}
	log.Info().Msg("Server exited gracefully")
}
