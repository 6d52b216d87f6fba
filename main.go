package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/inventoryscraper/config"
	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/services/cache"
	"sjsage522/inventoryscraper/services/export"
	"sjsage522/inventoryscraper/services/publisher"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Default.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

// Services holds the optional sinks named by the configuration
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *export.Store
}

// Cleanup closes every open service
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices connects the services whose address is configured.
// Memcache and Redis are best effort; a broken SQLite path is an error.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.Default
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, rate-limit blocks disabled")
		} else {
			services.Cache = mc
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	if cfg.RedisAddr != "" {
		pub, err := publisher.NewRedisPublisher(ctx, publisher.RedisOptions{
			Addr:            cfg.RedisAddr,
			DB:              cfg.RedisDB,
			StreamPrefix:    cfg.RedisStream,
			StreamCount:     cfg.RedisStreamCount,
			StreamMaxLength: cfg.RedisStreamMaxLength,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, publishing disabled")
		} else {
			services.Publisher = pub
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}

	if cfg.SQLitePath != "" {
		store, err := export.OpenStore(cfg.SQLitePath)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Store = store
	}

	return services, nil
}
