package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"learncircle/internal/util"
	"learncircle/pkg/contentgen"
	"learncircle/pkg/events"
	"learncircle/pkg/queue"
	"learncircle/pkg/storage"
	"learncircle/pkg/store"
	"learncircle/services/api/internal/app"
	"learncircle/services/api/internal/config"
	"learncircle/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL, 24*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	jwtLeeway, err := config.ParseDuration("jwtLeeway", cfg.JWTLeeway, 30*time.Second)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	contentTimeout, err := config.ParseDuration("contentTimeout", cfg.ContentTimeout, time.Hour)
	if err != nil {
		log.Fatalf("failed to parse content timeout: %v", err)
	}
	pdfURLExpiry, err := config.ParseDuration("pdfURLExpiry", cfg.PDFURLExpiry, 7*24*time.Hour)
	if err != nil {
		log.Fatalf("failed to parse pdf url expiry: %v", err)
	}
	verifyKeys, err := config.ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys)
	if err != nil {
		log.Fatalf("failed to parse jwt verify keys: %v", err)
	}
	trustedProxies, err := util.NewTrustedProxies(config.ParseTrustedProxies(cfg.TrustedProxies))
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer redisClient.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect redis: %v", err)
	}
	cancel()

	var dataStore store.Store
	if cfg.DatabaseURL == config.MemoryDatabaseURL {
		logger.Warn("using in-memory store; data is lost on restart")
		dataStore = store.NewMemoryStore()
	} else {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init postgres store: %v", err)
		}
		dataStore = gormStore
	}

	sessions, err := store.NewJWTSessionStore(store.JWTConfig{
		PrivateKeyPath: cfg.JWTPrivateKeyPath,
		PublicKeyPath:  cfg.JWTPublicKeyPath,
		KeyID:          cfg.JWTKeyID,
		VerifyKeyFiles: verifyKeys,
		TTL:            sessionTTL,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		Leeway:         jwtLeeway,
	}, store.NewRedisTokenRevoker(redisClient))
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	maxAttempts := cfg.ContentMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	stream := cfg.QueueStream
	if stream == "" {
		stream = "learncircle:content-jobs"
	}
	jobs, err := queue.NewRedisJobQueue(redisClient, queue.RedisQueueConfig{
		Stream:      stream,
		MaxAttempts: maxAttempts,
		ClaimIdle:   contentTimeout + 10*time.Minute,
	})
	if err != nil {
		log.Fatalf("failed to init job queue: %v", err)
	}

	objects, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	appCore, err := app.New(app.Config{
		Store:              dataStore,
		Sessions:           sessions,
		Jobs:               jobs,
		Generator:          contentgen.NewHTTPClient(cfg.CreateCourseAPI, cfg.GenerateChapterAPI, contentTimeout),
		Objects:            objects,
		Events:             publisher,
		AppURL:             cfg.AppURL,
		ContentTimeout:     contentTimeout,
		ContentMaxAttempts: maxAttempts,
		PDFURLExpiry:       pdfURLExpiry,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	workers := cfg.ContentWorkers
	if workers <= 0 {
		workers = 2
	}
	appCore.StartWorkers(ctx, workers)

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Redis:                      redisClient,
		TrustedProxies:             trustedProxies,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := cfg.Host + ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server listening", "addr", addr, "content_workers", workers)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
