package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/greenledger-api/internal/config"
	"github.com/greenledger/greenledger-api/internal/domain/credit"
	"github.com/greenledger/greenledger-api/internal/domain/feed"
	"github.com/greenledger/greenledger-api/internal/domain/ledger"
	"github.com/greenledger/greenledger-api/internal/domain/marketplace"
	"github.com/greenledger/greenledger-api/internal/domain/overview"
	"github.com/greenledger/greenledger-api/internal/domain/user"
	"github.com/greenledger/greenledger-api/internal/middleware"
	"github.com/greenledger/greenledger-api/internal/pkg/archive"
	"github.com/greenledger/greenledger-api/internal/pkg/database"
	"github.com/greenledger/greenledger-api/internal/pkg/jwt"
	"github.com/greenledger/greenledger-api/internal/pkg/lockmgr"
	pkgresponse "github.com/greenledger/greenledger-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting GreenLedger API")

	// ---------- Repositories ----------
	var (
		userRepo   user.Repository
		creditRepo credit.Repository
		ledgerRepo ledger.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)

		userRepo = user.NewRepository(db)
		creditRepo = credit.NewRepository(db)
		ledgerRepo = ledger.NewRepository(db)
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
		userRepo = user.NewMemoryRepository()
		creditRepo = credit.NewMemoryRepository()
		ledgerRepo = ledger.NewMemoryRepository()
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	// ---------- Audit archive ----------
	var archiveStore archive.Store
	if cfg.R2AccountID != "" {
		archiveStore, err = archive.NewR2Store(archive.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 archive")
		}
	} else {
		archiveStore, err = archive.NewLocalStore(cfg.ArchiveLocalPath, "")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local archive")
		}
	}

	// ---------- Services ----------
	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTTTL)
	userService := user.NewService(userRepo, jwtService)

	creditStore := credit.NewStore(creditRepo)
	txLedger := ledger.New(ledgerRepo)
	engine := marketplace.NewEngine(creditStore, txLedger, lockmgr.New(cfg.LockWait), userService)
	aggregator := overview.NewAggregator(creditStore)

	// The ledger is the source of truth. Replay it before serving so the
	// credit projections reflect every committed transaction.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.Reconcile(startupCtx); err != nil {
		cancelStartup()
		log.Fatal().Err(err).Msg("Ledger reconciliation failed")
	}
	cancelStartup()

	// ---------- Live feed ----------
	feedHub := feed.NewHub(redisClient)
	go feedHub.Run()
	engine.SetFeed(feedHub)

	// ---------- Handlers ----------
	userHandler := user.NewHandler(userService)
	marketHandler := marketplace.NewHandler(engine)
	overviewHandler := overview.NewHandler(aggregator, txLedger, userService, archiveStore)
	feedHandler := feed.NewHandler(feedHub, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress)
	r.Get("/ws/ledger", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(middleware.RequireRegulator()(http.HandlerFunc(feedHandler.Subscribe))).ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
	})

	health := func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	}
	r.Get("/health", health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health)
		r.Mount("/auth", userHandler.Routes())
		r.Mount("/producer", marketHandler.ProducerRoutes(authMiddleware))
		r.Mount("/buyer", marketHandler.BuyerRoutes(authMiddleware))
		r.Mount("/credits", marketHandler.CreditRoutes(authMiddleware))
		r.Mount("/regulator", overviewHandler.Routes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	feedHub.Shutdown()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
