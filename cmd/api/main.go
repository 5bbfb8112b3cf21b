package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teamdevhq/media-relay/internal/config"
	"github.com/teamdevhq/media-relay/internal/handlers"
	"github.com/teamdevhq/media-relay/internal/services"
	"github.com/teamdevhq/media-relay/internal/store"
	"github.com/teamdevhq/media-relay/internal/workers"
	"github.com/teamdevhq/media-relay/pkg/database"
	"github.com/teamdevhq/media-relay/pkg/extractor"
)

func main() {
	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Str("environment", cfg.Environment).Msg("Starting Media Relay API")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations and seed the bootstrap key
	log.Info().Msg("Running database migrations...")
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if err := db.SeedKey(ctx, cfg.SeedKey); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed API key")
	}
	log.Info().Msg("Migrations completed successfully")

	// Optional Redis key-existence cache; the service runs fine without it
	rdb := connectRedis(cfg.RedisURL)
	if rdb != nil {
		defer rdb.Close()
	}

	st := store.New(db, rdb, cfg.SeedKey)

	// Upstream extractor client and relay service
	client := extractor.NewClient(cfg.ExtractorEndpoint, cfg.ExtractorTimeout, cfg.ExtractorRateLimit)
	relayService := services.NewRelayService(st, client, cfg)

	// Handlers
	relayHandler := handlers.NewRelayHandler(relayService, cfg)
	adminHandler := handlers.NewAdminHandler(st, cfg)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	// Liveness
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	// Relay API
	r.Route("/api/v1", func(r chi.Router) {
		r.With(handlers.RequireKey(st, cfg.ContactMessage)).Get("/relay", relayHandler.Download)
	})

	// Admin panel
	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", adminHandler.LoginForm)
		r.Post("/login", adminHandler.Login)
		r.Get("/logout", adminHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(handlers.RequireAdmin(cfg.SessionSecret))
			r.Get("/", adminHandler.Panel)
			r.Post("/create_key", adminHandler.CreateKey)
			r.Post("/delete_key", adminHandler.DeleteKey)
		})
	})

	// Background liveness pinger, bound to the process lifetime
	pinger := workers.NewPinger(cfg)
	go pinger.Start(ctx)

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		cancel()
	}()

	log.Info().Str("port", cfg.Port).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("Server stopped")
}

// connectRedis returns a verified client or nil when the cache is not
// configured or unreachable.
func connectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Error().Err(err).Msg("Invalid redis url, proceeding without key cache")
		return nil
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Msg("Failed to connect to redis, proceeding without key cache")
		_ = client.Close()
		return nil
	}

	log.Info().Msg("Redis key cache initialized")
	return client
}
