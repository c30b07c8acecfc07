package cli

import (
	"context"
	"fmt"
	_ "time/tzdata"

	"gastos/internal/aggregate"
	"gastos/internal/backend"
	"gastos/internal/cache"
	"gastos/internal/config"
	"gastos/internal/insight"
	"gastos/internal/log"
	"gastos/internal/ports"
)

// insightCacheSize bounds the in-process insight cache used without Redis.
const insightCacheSize = 512

// OpenStore creates the expense store selected by DATA_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.ExpenseStore, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, err
	}
	return res.Store, nil
}

// NewAggregator binds the aggregation clock to the configured timezone.
func NewAggregator(cfg *config.Config) *aggregate.Aggregator {
	return aggregate.New(aggregate.WithLocation(cfg.Location()))
}

// NewInsightStore returns the Redis backed insight cache when REDIS_ADDR is
// set and reachable, and an in-process LRU registered with manager
// otherwise. The returned close function is never nil.
func NewInsightStore(ctx context.Context, cfg *config.Config, manager *cache.Manager, logger *log.Logger) (cache.Store[insight.Insight], func() error) {
	cacheLogger := logger.WithComponent(log.ComponentCache)
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			cacheLogger.Info("Using Redis insight cache", "addr", cfg.RedisAddr, "ttl", cfg.InsightCacheTTL)
			return cache.NewRedisCache[insight.Insight](rdb, "gastos:insight:", cfg.InsightCacheTTL, cacheLogger.Logger), rdb.Close
		}
		cacheLogger.Warn("Redis unavailable, falling back to in-process insight cache", "error", err)
	}

	lru := cache.NewLRUCache[insight.Insight](insightCacheSize, cfg.InsightCacheTTL)
	if manager != nil {
		manager.Register(lru)
	}
	return cache.NewLocal[insight.Insight](lru), func() error { return nil }
}

// NewAdvisor builds the insight advisor for the configured provider. A
// missing provider or key leaves the advisor answering with the fallback
// message.
func NewAdvisor(ctx context.Context, cfg *config.Config, store cache.Store[insight.Insight], logger *log.Logger) (*insight.Advisor, error) {
	insightLogger := logger.WithComponent(log.ComponentInsight)

	provider, err := insight.NewProviderFromConfig(ctx, insight.ProviderConfig{
		Provider:        cfg.InsightProvider,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
	})
	if err != nil {
		return nil, fmt.Errorf("insight provider: %w", err)
	}
	if provider == nil {
		insightLogger.Warn("No insight provider configured, serving fallback advice", "provider", cfg.InsightProvider)
		return insight.NewAdvisor(nil, store, insightLogger.Logger), nil
	}

	insightLogger.Info("Insight provider ready", log.FieldProvider, provider.Name())
	return insight.NewAdvisor(insight.NewGenerator(provider), store, insightLogger.Logger), nil
}
