package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"gatecheck/internal/api"
	"gatecheck/internal/audit"
	"gatecheck/internal/cache"
	"gatecheck/internal/config"
	"gatecheck/internal/db"
	"gatecheck/internal/geo"
	"gatecheck/internal/store"
	"gatecheck/internal/tasks"
	"gatecheck/internal/tasks/rate"
	"gatecheck/internal/utils/logger"
	"gatecheck/internal/verify"
)

func main() {

	log := logger.New("gatecheck")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		log.Info("No .env file found, skipping environment variable loading")
	} else {
		log.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			stdlog.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	if err := db.Connect(cfg); err != nil {
		stdlog.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database connection: %v", err)
		}
	}()

	dbInstance := db.GetDB()

	// One explicit cache instance shared by every component; tests build
	// their own isolated ones.
	ephemeralCache := cache.New()

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Cache.SweepInterval, func() {
		if removed := ephemeralCache.Sweep(); removed > 0 {
			log.Debug("cache sweep evicted %d entries", removed)
		}
	}); err != nil {
		stdlog.Fatalf("Failed to schedule cache sweep: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// GeoIP databases are optional; without them GEOIP/ASN rules simply
	// never match.
	maxmind, err := geo.OpenMaxMind(cfg.GeoIP.CountryDBPath, cfg.GeoIP.ASNDBPath)
	if err != nil {
		stdlog.Fatalf("Failed to open GeoIP databases: %v", err)
	}
	defer maxmind.Close()
	geoResolver := geo.NewCached(maxmind, ephemeralCache, cfg.Cache.GeoTTL)

	taskClient := tasks.NewTaskClient(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	defer func() {
		if err := taskClient.Close(); err != nil {
			log.Warn("Failed to close task client: %v", err)
		}
	}()

	taskHandler := tasks.NewTaskHandler(dbInstance)
	taskServer := tasks.NewServer(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		taskHandler,
		log,
	)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	go func() {
		if err := taskServer.Start(serverCtx); err != nil {
			log.Error("Task server error", err)
		}
	}()

	floodLimiter := rate.NewFloodLimiter(taskClient.Redis(), "audit", rate.FloodLimit{
		Window: cfg.Audit.FloodWindow,
		Max:    cfg.Audit.FloodMax,
	})
	recorder := audit.NewRecorder(taskClient, floodLimiter, cfg.Audit.QueueSize)
	defer recorder.Close()

	storage := store.New(dbInstance)
	ruleEngine := verify.NewRuleEngine(storage, ephemeralCache, geoResolver, cfg.Cache.AccessTTL)

	verifier := verify.New(
		storage,
		ephemeralCache,
		ruleEngine,
		store.NewPolicy(),
		geoResolver,
		recorder,
		store.NewFeatures(dbInstance),
		verify.Config{
			Version:                  cfg.App.Version,
			SessionCookieName:        cfg.Session.CookieName,
			AccessTTL:                cfg.Cache.AccessTTL,
			RequireEmailVerification: cfg.Session.RequireEmailVerification,
			TokenIDHeader:            cfg.Token.IDHeader,
			TokenSecretHeader:        cfg.Token.SecretHeader,
			TokenQueryParam:          cfg.Token.QueryParam,
		},
	)

	apiServer := api.NewServer(cfg, verifier, taskClient)
	go func() {
		log.Success("API server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := apiServer.Start(); err != nil {
			log.Error("API server error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("API server shutdown error", err)
	}

	taskServer.Shutdown()

	log.Success("Shutdown complete")
}
