package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/voxhall/voxhall/internal/adapters/http"
	wssignal "github.com/voxhall/voxhall/internal/adapters/signal"
	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/media"
	"github.com/voxhall/voxhall/internal/roommeta"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	worker, err := media.NewWorker(media.WorkerConfig{
		ICEServers:  cfg.ICEServers,
		AnnouncedIP: cfg.AnnouncedIP,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start media worker")
	}
	// An engine loss invalidates every router; restarting the process is the
	// only safe recovery.
	worker.OnDied(func(err error) {
		log.Fatal().Err(err).Msg("media worker died")
	})
	defer worker.Close()

	var meta roommeta.Service
	if cfg.RoomMetaURL != "" {
		meta = roommeta.NewHTTPClient(cfg.RoomMetaURL)
	} else {
		meta = roommeta.NewStatic()
	}

	rooms := core.NewRegistry()
	orch := app.New(worker, rooms, meta)

	limiter := wssignal.NewRateLimiter(cfg.EventRateLimit, cfg.EventRateWindow)
	ctrl := wssignal.NewController(orch, limiter, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, ctrl, rooms)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("voxhall server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited gracefully")
}
