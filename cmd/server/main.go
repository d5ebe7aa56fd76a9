package main // Entry point package

import (
	"context"
	"log" // Logging library
	"time"

	"github.com/joho/godotenv"                 // loads .env files in development
	"github.com/labstack/echo/v4"              // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // built-in recover/request-id

	"github.com/arepabuelas/arepabuelas-api/internal/config"
	"github.com/arepabuelas/arepabuelas-api/internal/database"
	"github.com/arepabuelas/arepabuelas-api/internal/handler"
	"github.com/arepabuelas/arepabuelas-api/internal/middleware"
	"github.com/arepabuelas/arepabuelas-api/internal/repository"
	"github.com/arepabuelas/arepabuelas-api/internal/router"
	"github.com/arepabuelas/arepabuelas-api/internal/storage"
	"github.com/arepabuelas/arepabuelas-api/internal/worker"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load() fails fast on missing values or an undersized signing secret.
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Optional collaborators: the service runs without Redis (no rate
	// limiting) and without an object store (no photo uploads).
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}
	photos := storage.NewPhotoStoreFromEnv(cfg.APIURL)
	if photos == nil {
		log.Printf("object store not configured, photo uploads disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())

	authHandler := handler.NewAuthHandler(cfg, users, tokens, photos)
	adminHandler := handler.NewAdminHandler(users)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, adminHandler, limiter, cfg.JWTSecret, users)

	// Background sweep of expired and long-idle refresh tokens.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go (&worker.CleanupWorker{
		Tokens:       tokens,
		Interval:     time.Hour,
		InactiveDays: cfg.InactiveDays,
	}).Run(ctx)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
