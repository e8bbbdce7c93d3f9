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

	"peraturan/api/internal/adminauth"
	"peraturan/api/internal/app"
	"peraturan/api/internal/archive"
	"peraturan/api/internal/config"
	"peraturan/api/internal/export"
	"peraturan/api/internal/gate"
	"peraturan/api/internal/gitrepo"
	"peraturan/api/internal/search"
	"peraturan/api/internal/session"
	"peraturan/api/internal/store"
	"peraturan/api/internal/suggest"
	"peraturan/api/internal/verify"
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

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	pgworks := search.NewPgWorks(db)
	chunks := search.NewPgChunks(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgworks, chunks)

	var authService app.AdminAuthenticator
	var sessionPinger app.SessionPinger
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		authService = adminauth.NewService(dataStore, redisStore, cfg.SessionSecret, cfg.SessionTTL)
		sessionPinger = redisStore
	} else {
		log.Printf("WARNING: Redis not configured, admin sessions disabled")
	}

	var verifier app.Verifier
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gen, err := verify.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("gemini client failed: %v", err)
		}
		defer gen.Close()
		verifier = verify.NewOrchestrator(dataStore, gen)
	} else {
		log.Printf("WARNING: Gemini not configured, suggestion verification disabled")
	}

	var sourceArchive app.SourceArchive
	if strings.TrimSpace(cfg.ArchiveEndpoint) != "" {
		svc, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			log.Fatalf("archive connection failed: %v", err)
		}
		sourceArchive = svc
	}

	service := app.NewService(dataStore, app.Deps{
		Search:    searchService,
		Validator: suggest.New(dataStore),
		Verifier:  verifier,
		Gate:      gate.New(cfg.AdminAPIKey, cfg.AdminEmails),
		Auth:      authService,
		Sessions:  sessionPinger,
		Repos:     gitService,
		Exporter:  export.NewService(dataStore),
		Archive:   sourceArchive,
	})
	service.Bootstrap(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.SuggestionOrigins, cfg.TrustedProxy)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Peraturan API listening on %s", cfg.Addr)
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
