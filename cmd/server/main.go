package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/maxklim/huddle/internal/adapters/http"
	signalws "github.com/maxklim/huddle/internal/adapters/signal"
	"github.com/maxklim/huddle/internal/app"
	"github.com/maxklim/huddle/internal/auth"
	"github.com/maxklim/huddle/internal/config"
	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/store"
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
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("auth secret is not configured")
	}

	var meetings store.MeetingStore
	switch cfg.Store {
	case "redis":
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
		}
		meetings = store.NewRedisStore(rc)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis meeting store")
	default:
		meetings = store.NewLocalStore()
		log.Info().Msg("using in-memory meeting store")
	}

	registry := core.NewRegistry()
	negotiations := core.NewNegotiationTable()
	coordinator := app.NewCoordinator(registry, meetings, negotiations, app.KickSlowPolicy{})
	relay := app.NewRelay(registry, coordinator, negotiations)
	media := app.NewBroadcaster(registry, coordinator)
	verifier := auth.NewVerifier(cfg.Secret)
	ctrl := signalws.NewController(cfg, coordinator, relay, media)

	r := router.SetupRouter(ctx, cfg, registry, meetings, ctrl, verifier)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("huddle server started")
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
	log.Info().Msg("Server exited gracefully")
}
