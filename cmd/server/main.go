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

	router "github.com/codesketch/hub/internal/adapters/http"
	wsignal "github.com/codesketch/hub/internal/adapters/signal"
	"github.com/codesketch/hub/internal/app"
	"github.com/codesketch/hub/internal/app/orch"
	"github.com/codesketch/hub/internal/auth"
	"github.com/codesketch/hub/internal/config"
	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/exec"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store := core.NewRoomStore(core.StoreConfig{
		MaxRooms:       cfg.MaxRooms,
		MaxRoomMembers: cfg.MaxRoomMembers,
		RoomTTL:        cfg.RoomTTL,
		SweepInterval:  cfg.SweepInterval,
	})
	registry := app.NewRegistry()
	orchestrator := &orch.Orchestrator{
		Registry: registry,
		Rooms:    store,
	}

	limiter := wsignal.NewOpLimiter(cfg.RateWindow, cfg.Rates)

	var execClient *exec.Client
	if cfg.ExecURL != "" {
		execClient = exec.NewClient(cfg.ExecURL, cfg.ExecTimeout)
		log.Info().Str("exec_url", cfg.ExecURL).Msg("server-side execution enabled")
	}

	ctl := wsignal.NewController(orchestrator, limiter, execClient, cfg)
	jwtMgr := auth.NewJWTManager(cfg.Secret)

	r := router.SetupRouter(ctx, cfg, ctl, store, jwtMgr)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("hub server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	limiter.Stop()
	store.Shutdown()
	log.Info().Msg("Server exited gracefully")
}
