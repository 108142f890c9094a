package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dailybread/api/internal/app"
	"dailybread/api/internal/authpw"
	"dailybread/api/internal/backup"
	"dailybread/api/internal/config"
	"dailybread/api/internal/plan"
	"dailybread/api/internal/reconcile"
	"dailybread/api/internal/search"
	"dailybread/api/internal/session"
	"dailybread/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	planStart, err := time.Parse("2006-01-02", cfg.PlanStartDate)
	if err != nil {
		log.Fatalf("invalid plan start date %q: %v", cfg.PlanStartDate, err)
	}
	readingPlan := plan.New(planStart)
	if cfg.PlanTotalDays != readingPlan.TotalDays() {
		log.Printf("WARNING: DAILYBREAD_PLAN_TOTAL_DAYS=%d ignored; the built-in plan has %d days", cfg.PlanTotalDays, readingPlan.TotalDays())
	}

	dataStore := store.NewPostgresStore(db)
	accounts := authpw.NewService(dataStore)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
		searchService.ReindexAllFromPG(ctx)
	}

	var sink reconcile.BackupSink
	if strings.TrimSpace(cfg.BackupEndpoint) != "" {
		minioSink, err := backup.NewMinioSink(cfg.BackupEndpoint, cfg.BackupAccessKey, cfg.BackupSecretKey, cfg.BackupBucket, cfg.BackupUseSSL)
		if err != nil {
			log.Fatalf("backup sink connection failed: %v", err)
		}
		sink = minioSink
	} else {
		log.Printf("Using local directory %s for pre-migration backups", cfg.BackupDir)
		sink = backup.NewFileSink(cfg.BackupDir)
	}
	reconciler := reconcile.New(dataStore, sink)

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.NewWithSessionStore(cfg, dataStore, redisStore, accounts, searchService, readingPlan, reconciler)
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
		service = app.New(cfg, dataStore, accounts, searchService, readingPlan, reconciler)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("DailyBread API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
