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
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/companionly/booking-server-go/internal/config"
	"github.com/companionly/booking-server-go/internal/database"
	"github.com/companionly/booking-server-go/internal/geo"
	"github.com/companionly/booking-server-go/internal/handler"
	"github.com/companionly/booking-server-go/internal/jobs"
	"github.com/companionly/booking-server-go/internal/middleware"
	"github.com/companionly/booking-server-go/internal/payment"
	"github.com/companionly/booking-server-go/internal/redis"
	"github.com/companionly/booking-server-go/internal/repository"
	"github.com/companionly/booking-server-go/internal/service"
	"github.com/companionly/booking-server-go/internal/sse"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

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

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	partyRepo := repository.NewPartyRepository(db.DB)
	bookingRepo := repository.NewBookingRepository(db.DB)
	requestRepo := repository.NewRequestRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	paymentClient := payment.NewHTTPClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey)

	var geocoder geo.Client
	if cfg.GeocoderURL != "" {
		geocoder = geo.NewHTTPClient(cfg.GeocoderURL)
	}

	notifier := service.NewNotifier(broker)

	bookingService := service.NewBookingService(
		bookingRepo, partyRepo, paymentClient, geocoder, notifier,
		cfg.Currency, cfg.CompletionGrace(),
	)
	verificationService := service.NewVerificationService(
		bookingRepo, paymentClient, notifier,
		cfg.VerificationWindow(), cfg.ProximityThresholdMeters,
	)
	requestService := service.NewRequestService(db, requestRepo, bookingRepo, partyRepo, notifier)

	authMiddleware := middleware.NewAuthMiddleware(partyRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	verificationHandler := handler.NewVerificationHandler(verificationService)
	bookingHandler := handler.NewBookingHandler(bookingService, verificationHandler)
	requestHandler := handler.NewRequestHandler(requestService)
	paymentHandler := handler.NewPaymentHandler(bookingService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

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

		r.Mount("/bookings", bookingHandler.Routes())
		r.Mount("/requests", requestHandler.Routes())
		r.Mount("/payments", paymentHandler.Routes())
		r.Get("/events", eventsHandler.ServeHTTP)
	})

	sweepJob := jobs.NewSweepJob(bookingService, verificationService, config.SweepJobInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0, // SSE connections stay open
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
