package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/bookswap/internal/featureflags"
	"github.com/yourorg/bookswap/internal/handler"
	"github.com/yourorg/bookswap/internal/infrastructure/logger"
	"github.com/yourorg/bookswap/internal/infrastructure/redis"
	"github.com/yourorg/bookswap/internal/notify"
	"github.com/yourorg/bookswap/internal/observability/metrics"
	"github.com/yourorg/bookswap/internal/observability/tracing"
	"github.com/yourorg/bookswap/internal/repository"
	"github.com/yourorg/bookswap/internal/security/audit"
	"github.com/yourorg/bookswap/internal/security/auth"
	"github.com/yourorg/bookswap/internal/security/middleware"
	"github.com/yourorg/bookswap/internal/security/ratelimit"
	"github.com/yourorg/bookswap/internal/service"
	"github.com/yourorg/bookswap/internal/worker"
	"github.com/yourorg/bookswap/pkg/config"
	"github.com/yourorg/bookswap/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting BookSwap server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "bookswap", cfg.Environment)
	if err != nil {
		log.Warn("tracing disabled", slog.String("error", err.Error()))
	}

	// 4. Initialize database connection pool
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Initialize Redis client; the listing cache is optional, the server
	// runs without it and serves listings straight from Postgres.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, listing cache disabled", slog.String("error", err.Error()))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// 6. Initialize repositories
	db := pool.GetDB()
	userRepo := repository.NewPostgresUserRepository(db, log)
	bookRepo := repository.NewPostgresBookRepository(db, log)
	requestRepo := repository.NewPostgresRequestRepository(db, log)

	// 7. Initialize services
	listings := service.NewListingCache(redisClient, cfg.ListingCacheTTL, log)
	broker := notify.NewBroker()
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "bookswap")
	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour

	authService := service.NewAuthService(userRepo, tokenManager, tokenTTL, log)
	catalogService := service.NewCatalogService(bookRepo, userRepo, listings, log)
	exchangeService := service.NewExchangeService(bookRepo, requestRepo, userRepo, listings, broker, log)

	// 7a. Initialize security components
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 8. Initialize handlers
	authHandler := handler.NewAuthHandler(authService, rateLimiter, log)
	booksHandler := handler.NewBooksHandler(catalogService, exchangeService, log)
	requestsHandler := handler.NewRequestsHandler(exchangeService, log)
	healthHandler := handler.NewHealthHandler(pool, redisClient, log)
	notificationsHandler := handler.NewNotificationsHandler(broker, log, cfg.CORSAllowedOrigins)

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", authHandler.Register)
	mux.HandleFunc("POST /api/login", authHandler.Login)
	mux.HandleFunc("GET /api/books", booksHandler.ListAvailable)
	mux.HandleFunc("POST /api/books", booksHandler.Add)
	mux.HandleFunc("GET /api/books/my-books", booksHandler.ListMine)
	mux.HandleFunc("PUT /api/books/{id}", booksHandler.UpdateAvailability)
	mux.HandleFunc("POST /api/requests", requestsHandler.Submit)
	mux.HandleFunc("GET /api/requests/received", requestsHandler.Received)
	mux.HandleFunc("GET /api/requests/sent", requestsHandler.Sent)
	mux.HandleFunc("PUT /api/requests/{id}", requestsHandler.Decide)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	if featureflags.Enabled("request_notifications") {
		mux.Handle("GET /ws/requests", notificationsHandler)
		log.Info("websocket notifications enabled")
	}

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> JWT -> rate limit -> audit -> content type -> CORS.
	// JWT runs first so the rate limiter and audit log key on the verified user.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.JWTMiddleware(tokenManager, log)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.AuditMiddleware(auditLogger)(
						middleware.ValidateJSONContentType(log)(handlerWithCORS),
					),
				),
			),
		),
		log,
	)

	// 10. Start stats worker in background
	statsWorker := worker.NewStatsWorker(
		bookRepo,
		requestRepo,
		log,
		time.Duration(cfg.StatsIntervalSecs)*time.Second,
	)
	go statsWorker.Start(ctx)

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "bookswap"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop stats worker
	rateLimiter.Stop()
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
