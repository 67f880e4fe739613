package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prepwise/server/internal/ai"
	"prepwise/server/internal/config"
	"prepwise/server/internal/conversation"
	"prepwise/server/internal/db"
	"prepwise/server/internal/hub"
	internalhttp "prepwise/server/internal/http"
	"prepwise/server/internal/presence"
	"prepwise/server/internal/repository"
	"prepwise/server/internal/token"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection failed", zap.Error(err))
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	aiClient, err := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey)
	if err != nil {
		logger.Fatal("ai client init failed", zap.Error(err))
	}

	store := repository.NewStore(pool)
	authority := token.NewAuthority(store, store, cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	chatHub := hub.NewHub(cfg.Channels, store, logger)
	tracker := presence.NewTracker(redisClient, cfg.PresenceTTL)
	limiter := presence.NewLimiter(redisClient, cfg.ChatRateLimit, cfg.ChatRateWindow)
	assembler := conversation.NewAssembler(store, store, aiClient, logger, cfg.AIModel, cfg.HistoryWindow, cfg.AIMaxTokens, cfg.AITimeout, cfg.ChatXPAward)

	server := internalhttp.NewServer(cfg, authority, store, store, chatHub, assembler, tracker, limiter, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(chatHub.Handler(authority, tracker)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
