package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/api"
	"resumeBuilder/internal/assistant"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/config"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/session"
	"resumeBuilder/internal/snapshot"
	"resumeBuilder/internal/storage"
	"resumeBuilder/internal/workspace"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Printf("database migrated")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	storageClient, err := storage.NewClient(ctx, cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	authService, err := auth.NewAuthService(
		[]byte(unescapePEM(cfg.Auth.PrivateKeyPEM)),
		[]byte(unescapePEM(cfg.Auth.PublicKeyPEM)),
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	var provider session.Provider
	if cfg.OAuth.GoogleClientID != "" {
		provider = session.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.RedirectURL)
		logger.Info("google sign-in enabled")
	}

	var generator assistant.Generator
	if cfg.Assistant.APIKey != "" {
		gemini, err := assistant.NewGemini(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.Assistant.MaxOutputToken)
		if err != nil {
			logger.Warn("init gemini failed, suggestions will use fallback text", slog.Any("error", err))
		} else {
			generator = gemini
		}
	}
	suggester := assistant.New(generator, assistant.Options{
		Timeout:       cfg.Assistant.Timeout,
		RatePerMinute: cfg.Assistant.RatePerMinute,
	}, logger)

	profiles := database.NewProfileStore(db)
	registry := workspace.NewRegistry(workspace.Deps{
		Snapshots: snapshot.NewSlots(snapshot.NewRedisBackend(redisClient, cfg.Snapshot.TTL), cfg.Snapshot.KeyPrefix, logger),
		Profiles:  profiles,
		Provider:  provider,
		Tokens:    authService,
		Resumes:   database.NewResumeStore(db),
	}, logger)
	defer registry.Close()
	go registry.Run(ctx, cfg.API.EvictInterval, cfg.API.WorkspaceIdleTTL)

	router := api.NewRouter(cfg.API, logger)
	api.RegisterRoutes(router, api.Handlers{
		Editor:    api.NewEditorHandler(api.NewClamdScanner(cfg.Clamd.Addr)),
		Resumes:   api.NewResumeHandler(),
		Exports:   api.NewExportHandler(queue, storageClient, cfg.Export.MaxRetry, cfg.Export.LinkTTL),
		Assistant: api.NewAssistantHandler(suggester),
		Session: api.NewSessionHandler(profiles, authService, redisClient, api.SessionOptions{
			LoginRatePerHour:   cfg.API.LoginRatePerHour,
			LoginLockThreshold: cfg.API.LoginLockThreshold,
			LoginLockTTL:       cfg.API.LoginLockTTL,
			OAuthStateTTL:      cfg.OAuth.StateTTL,
			CookieDomain:       cfg.API.CookieDomain,
		}),
		Templates: api.NewTemplateHandler(storageClient, queue),
		Ws:        api.NewWsHandler(api.NewRedisNotifier(redisClient), logger, cfg.API.AllowedOrigins),
	}, registry, cfg.API.InternalSecret)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("api shutdown failed", slog.Any("error", err))
		}
	}()

	logger.Info("api listening", slog.String("addr", address))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to start api server: %v", err)
	}
	logger.Info("api stopped")
}

// unescapePEM 兼容把换行写成 \n 的环境变量。
func unescapePEM(value string) string {
	return strings.ReplaceAll(value, `\n`, "\n")
}
