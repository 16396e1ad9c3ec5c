package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/centavo/backend/src/config"
	"github.com/username/centavo/backend/src/database"
	"github.com/username/centavo/backend/src/handlers"
	"github.com/username/centavo/backend/src/logger"
	"github.com/username/centavo/backend/src/promotion"
	"github.com/username/centavo/backend/src/refdata"
	"github.com/username/centavo/backend/src/repository/hybrid"
	"github.com/username/centavo/backend/src/repository/local"
	"github.com/username/centavo/backend/src/repository/remote"
	"github.com/username/centavo/backend/src/security"
	"github.com/username/centavo/backend/src/services"
	"github.com/username/centavo/backend/src/synclock"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			"https://centavo.app":   true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Centavo backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing local database...", "path", config.Cfg.DatabasePath)
	localDB := database.InitLocalDB(config.Cfg.DatabasePath)
	database.RunMigrations(localDB, config.Cfg.DatabasePath)

	logger.L.Info("Connecting to remote database...")
	remoteDB := database.ConnectRemote(config.Cfg.RemoteDatabaseURL)

	locks := synclock.NewRegistry()
	localStore := local.NewStore(localDB, locks)
	remoteStore := remote.NewStore(remoteDB)
	repo := hybrid.New(localStore, remoteStore)

	accounts := refdata.NewSource(localDB, config.Cfg.RefdataCacheTTL)
	authService := security.NewAuthService(config.Cfg.JWTSecret)

	runner := promotion.NewRunner(repo,
		promotion.WithMaxRetries(config.Cfg.PromoteMaxRetries),
		promotion.WithJitter(config.Cfg.PromoteRetryJitter),
	)

	stagingService := services.NewStagingService(
		repo,
		security.ContextIdentity{},
		services.NewSlogReporter(),
		accounts,
		runner,
		config.Cfg.ReferenceCurrency,
	)

	inboxHandler := handlers.NewInboxHandler(stagingService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Centavo Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware(authService))

			r.Get("/inbox", inboxHandler.HandleListPending)
			r.Post("/inbox", inboxHandler.HandleCreate)
			r.Post("/inbox/batch", inboxHandler.HandleCreateBatch)
			r.Get("/inbox/{id}", inboxHandler.HandleGet)
			r.Patch("/inbox/{id}", inboxHandler.HandleUpdate)
			r.Post("/inbox/{id}/promote", inboxHandler.HandlePromote)
			r.Post("/inbox/{id}/dismiss", inboxHandler.HandleDismiss)
			r.Get("/inbox/{id}/readiness", inboxHandler.HandleReadiness)
		})
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
