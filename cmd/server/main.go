package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/config"
	"github.com/nestlink/guardian-server-go/internal/database"
	"github.com/nestlink/guardian-server-go/internal/devicecache"
	"github.com/nestlink/guardian-server-go/internal/handler"
	"github.com/nestlink/guardian-server-go/internal/jobs"
	"github.com/nestlink/guardian-server-go/internal/middleware"
	"github.com/nestlink/guardian-server-go/internal/redis"
	"github.com/nestlink/guardian-server-go/internal/repository"
	"github.com/nestlink/guardian-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	pairingCodeRepo := repository.NewPairingCodeRepository(db.DB)
	relationshipRepo := repository.NewRelationshipRepository(db.DB)
	heartbeatRepo := repository.NewHeartbeatRepository(db.DB)
	restrictionRepo := repository.NewRestrictionRepository(db.DB)
	bedtimeRepo := repository.NewBedtimeRepository(db.DB)
	detectionRepo := repository.NewDetectionRepository(db.DB)
	notificationRepo := repository.NewNotificationRepository(db.DB)

	cache := devicecache.New(redisClient, cfg.DeviceCacheTTL())
	notifier := service.NewStoreNotifier(notificationRepo)

	pairingService := service.NewPairingService(
		db, pairingCodeRepo, relationshipRepo, userRepo, cache, notifier, cfg.CodeTTL(),
	)
	activityService := service.NewActivityService(heartbeatRepo, relationshipRepo, userRepo)
	restrictionService := service.NewRestrictionService(restrictionRepo, userRepo, cache, notifier)
	bedtimeService := service.NewBedtimeService(bedtimeRepo, userRepo, cache)
	detectionService := service.NewDetectionService(detectionRepo, restrictionRepo, cache, notifier)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	pairingHandler := handler.NewPairingHandler(pairingService)
	relationshipHandler := handler.NewRelationshipHandler(pairingService)
	activityHandler := handler.NewActivityHandler(activityService)
	restrictionHandler := handler.NewRestrictionHandler(restrictionService)
	usageHandler := handler.NewUsageHandler(restrictionService, detectionService, pairingService)
	bedtimeHandler := handler.NewBedtimeHandler(bedtimeService)
	detectionHandler := handler.NewDetectionHandler(detectionService)
	deviceHandler := handler.NewDeviceHandler(cache, pairingService)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		r.Mount("/pairing", pairingHandler.Routes())
		r.Mount("/relationships", relationshipHandler.Routes())
		r.Mount("/activity", activityHandler.Routes())
		r.Mount("/restrictions", restrictionHandler.Routes())
		r.Mount("/usage", usageHandler.Routes())
		r.Mount("/bedtime", bedtimeHandler.Routes())
		r.Mount("/detections", detectionHandler.Routes())
		r.Mount("/device", deviceHandler.Routes())
		r.Mount("/notifications", notificationHandler.Routes())
	})

	if !cfg.DisableSweeps {
		cleanupJob := jobs.NewCleanupJob(
			pairingCodeRepo, config.CodeSweepInterval, config.StalePurgeInterval,
		)
		cleanupJob.Start()
		defer cleanupJob.Stop()

		heartbeatJob := jobs.NewHeartbeatSweepJob(
			relationshipRepo, notifier, config.HeartbeatSweepInterval,
		)
		heartbeatJob.Start()
		defer heartbeatJob.Stop()

		inactivityJob := jobs.NewInactivitySweepJob(
			userRepo, relationshipRepo, notifier, config.InactivitySweepInterval,
		)
		inactivityJob.Start()
		defer inactivityJob.Stop()

		bedtimeJob := jobs.NewBedtimeSweepJob(bedtimeService, config.BedtimeSweepInterval)
		bedtimeJob.Start()
		defer bedtimeJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
