package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"llmbridge/internal/cache"
	"llmbridge/internal/handlers"
	"llmbridge/internal/httpserver"
	"llmbridge/internal/llm"
	"llmbridge/internal/metrics"
	"llmbridge/pkg/logging/logging"
)

const proxyName = "llmbridge"

type Config struct {
	Port         string
	CacheBackend string // "off", "memory" or "redis"
	VersionID    string
	RedisAddr    string
	Model        string
	BaseURL      string
	APIKey       string
}

func LoadConfig() Config {
	return Config{
		Port:         getenv("PORT", "8080"),
		CacheBackend: getenv("CACHE_BACKEND", "off"),
		VersionID:    getenv("PROXY_VERSION", "v1"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),
		Model:        getenv("OPENAI_MODEL", "gpt-4o"),
		BaseURL:      getenv("OPENAI_BASE_URL", "https://api.openai.com"),
		APIKey:       os.Getenv("OPENAI_API_KEY"),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("proxy exited with error: %v", err)
	}
}

func run() error {
	// .env is optional; CI sets real env vars.
	_ = godotenv.Load()

	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("version_id", cfg.VersionID),
		zap.String("model", cfg.Model),
		zap.String("base_url", cfg.BaseURL),
	)

	if cfg.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Exact response cache -----
	var exactCache cache.ExactCache
	cacheTTL := 5 * time.Minute
	if cfg.CacheBackend != "off" {
		cacheCfg := cache.Config{
			Backend: cfg.CacheBackend,
			TTL:     cacheTTL,
			Prefix:  proxyName,
		}
		exactCache = cache.NewExactCache(cacheCfg, redisClient)
		exactCache = cache.NewLoggingExactCache(exactCache)
	}

	// ----- Upstream client -----
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// ----- Handlers -----
	generateHandler := handlers.NewGenerateHandler(
		exactCache,
		cacheTTL,
		cfg.VersionID,
		proxyName,
		cfg.Model,
		llmClient,
	)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, generateHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting proxy",
		zap.String("addr", srv.Addr),
		zap.String("model", cfg.Model),
		zap.String("version_id", cfg.VersionID),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
