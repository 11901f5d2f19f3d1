// pkg/api/api.go

// Package api is the public surface of the bypass service: it assembles the
// configured backends into a Service and re-exports the result types.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/ai"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/antidetect"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/browser"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/bypass"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/cache"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/config"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/monitoring"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/pattern"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/store"
	"github.com/KeerthivasanKvm/Nova-adlink-bypasser-bot/internal/utils"
)

// Re-export the request/result vocabulary for embedders.
type (
	Config            = config.Config
	ResolutionRequest = bypass.ResolutionRequest
	ResolutionResult  = bypass.ResolutionResult
	Statistics        = bypass.Statistics
	Site              = store.Site
)

// Service is the assembled bypass engine with all configured backends.
type Service struct {
	cfg      *config.Config
	resolver *bypass.Resolver
	metrics  *monitoring.Metrics
	sites    *store.SiteRegistry
	backing  store.DocumentStore
	log      utils.Logger

	redisCache *cache.RedisCache
	browserMgr *browser.Manager
}

// NewService assembles the service from configuration. Optional backends
// (Redis, MongoDB, AI, browser) are wired only when configured; everything
// else falls back to in-process equivalents.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := utils.NewComponentLogger("service")

	var backing store.DocumentStore
	switch cfg.Store.Backend {
	case "mongo":
		ms, err := store.NewMongoStore(ctx, store.MongoOptions{
			ConnectionString: cfg.Store.URI,
			Database:         cfg.Store.Database,
			Timeout:          cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backing = ms
	default:
		log.Warn("using in-memory store; learned patterns will not survive restarts")
		backing = store.NewMemoryStore()
	}

	svc := &Service{cfg: cfg, backing: backing, log: log}

	var linkCache cache.LinkCache
	if cfg.Cache.Backend == "redis" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			svc.shutdown(ctx)
			return nil, err
		}
		svc.redisCache = rc
		linkCache = rc
	} else {
		linkCache = cache.NewStoreCache(backing, cfg.Cache.TTL)
	}

	client, err := bypass.NewClient(bypass.ClientConfig{
		Timeout:        cfg.Resolver.RequestTimeout,
		UserAgents:     cfg.Resolver.UserAgents,
		RateLimit:      cfg.Resolver.RateLimitPerSecond,
		RateBurst:      cfg.Resolver.RateBurst,
		MaxRedirectHop: cfg.Resolver.MaxRedirectHops,
	})
	if err != nil {
		svc.shutdown(ctx)
		return nil, err
	}

	challenge, err := antidetect.NewClient(antidetect.ClientConfig{
		Timeout:    cfg.Resolver.RequestTimeout,
		UserAgents: cfg.Resolver.UserAgents,
	})
	if err != nil {
		svc.shutdown(ctx)
		return nil, err
	}

	var agent bypass.AIAdapter
	if cfg.AI.APIKey != "" {
		chat := ai.NewChatClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.RequestTimeout)
		agent = ai.NewAgent(ai.AgentOptions{
			Generator:         chat,
			Fetcher:           client,
			Model:             chat.Model(),
			MaxOutputTokens:   cfg.AI.MaxOutputTokens,
			ExecuteStrategies: cfg.AI.ExecuteStrategies,
		})
	} else {
		log.Info("no AI key configured; pipeline stops after heuristic methods")
	}

	var browserResolver bypass.BrowserResolver
	if cfg.Browser.Enabled {
		mgr, err := browser.NewManager(browser.Config{
			Headless:      cfg.Browser.Headless,
			Timeout:       cfg.Browser.Timeout,
			DisableImages: true,
		})
		if err != nil {
			svc.shutdown(ctx)
			return nil, err
		}
		svc.browserMgr = mgr
		browserResolver = mgr
	}

	metrics := monitoring.NewMetrics()
	svc.metrics = metrics
	svc.sites = store.NewSiteRegistry(backing)
	svc.resolver = bypass.NewResolver(bypass.ResolverOptions{
		Client:              client,
		Cache:               linkCache,
		Patterns:            pattern.NewStore(backing),
		AI:                  agent,
		Challenge:           challenge,
		Browser:             browserResolver,
		Metrics:             metrics,
		MethodTimeout:       cfg.Resolver.MethodTimeout,
		CountdownCap:        time.Duration(cfg.Resolver.CountdownCapSeconds) * time.Second,
		ConfidenceThreshold: cfg.Resolver.ConfidenceThreshold,
	})

	return svc, nil
}

// Resolve runs a full resolution for one URL and records the origin domain
// in the supported-sites registry on success.
func (s *Service) Resolve(ctx context.Context, originalURL string) *ResolutionResult {
	result := s.resolver.Resolve(ctx, bypass.ResolutionRequest{OriginalURL: originalURL})
	if result.Success && !result.ServedFromCache {
		if domain := utils.ExtractDomain(originalURL); domain != "" {
			if err := s.sites.IncrementBypassCount(ctx, domain); err != nil {
				s.log.Warnf("site counter update failed for %s: %v", domain, err)
			}
		}
	}
	return result
}

// Statistics snapshots the pipeline counters.
func (s *Service) Statistics() Statistics {
	return s.resolver.Statistics()
}

// Sites exposes the supported-sites registry.
func (s *Service) Sites() *store.SiteRegistry {
	return s.sites
}

// MetricsHandler serves the Prometheus exposition endpoint.
func (s *Service) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Close releases all backends.
func (s *Service) Close(ctx context.Context) error {
	s.shutdown(ctx)
	return nil
}

func (s *Service) shutdown(ctx context.Context) {
	if s.browserMgr != nil {
		s.browserMgr.Close()
	}
	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			s.log.Warnf("redis close failed: %v", err)
		}
	}
	if s.backing != nil {
		if err := s.backing.Close(ctx); err != nil {
			s.log.Warnf("store close failed: %v", err)
		}
	}
}
