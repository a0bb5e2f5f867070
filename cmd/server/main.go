package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/huddle/internal/adapter/driven/auth/token"
	"github.com/Wyydra/huddle/internal/adapter/driven/media/memory"
	"github.com/Wyydra/huddle/internal/adapter/driven/media/sfuhttp"
	"github.com/Wyydra/huddle/internal/adapter/driven/persistence/redis"
	handler "github.com/Wyydra/huddle/internal/adapter/driving/http"
	"github.com/Wyydra/huddle/internal/config"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/core/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server exited")
}

func setupLogger(cfg *config.Config) {
	var w io.Writer = os.Stdout
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Caller().Logger()
}

func run(ctx context.Context, cfg *config.Config) error {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	sessions := redis.NewSessionRepository(client)
	participants := redis.NewParticipantRepository(client)

	media, err := newMediaServer(cfg)
	if err != nil {
		return err
	}

	signer, err := token.NewSigner(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	verse := service.NewVerse(sessions, participants)
	if err := verse.StartTracking(ctx); err != nil {
		return err
	}
	if _, err := verse.Reconcile(ctx); err != nil {
		_ = verse.Close()
		return fmt.Errorf("initial reconcile: %w", err)
	}

	admission := service.NewAdmissionService(sessions, participants, signer, cfg.HuddleTTL)
	h := handler.NewHandler(admission, verse, participants, signer, media, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h.NewRouter(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if cfg.ReconcileInterval > 0 {
		g.Go(func() error {
			return verse.RunReconciler(gctx, cfg.ReconcileInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	drain(cfg, verse, h)
	return err
}

// drain disconnects every control connection and waits for their teardown,
// which still needs the store, before the Redis client is closed.
func drain(cfg *config.Config, verse *service.Verse, h *handler.Handler) {
	if err := verse.Close(); err != nil {
		log.Error().Err(err).Msg("Verse closed with error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := h.WaitConnections(ctx); err != nil {
		log.Warn().Err(err).Msg("Control connections still open at shutdown")
	}
}

func newMediaServer(cfg *config.Config) (port.MediaServer, error) {
	if cfg.InProcessMedia() {
		log.Warn().Msg("No media server configured, using the in-process one")
		return memory.NewMediaServer(), nil
	}
	return sfuhttp.NewClient(cfg.MediaServerURL, cfg.MediaServerTimeout)
}
