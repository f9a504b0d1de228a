// Command discoveryd runs the contact discovery engine against one or more
// URLs given on the command line and prints the resulting contacts as JSON.
//
// It stands in for the external HTTP-server/job-scheduler collaborators
// that the underlying system places out of scope for this module: wiring
// order (config -> logger -> store -> engine) follows the teacher's
// cmd/api/main.go without reproducing its HTTP routing.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/contactdiscovery/engine/internal/cache"
	"github.com/contactdiscovery/engine/internal/config"
	"github.com/contactdiscovery/engine/internal/contact"
	"github.com/contactdiscovery/engine/internal/database"
	"github.com/contactdiscovery/engine/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	enableCrawling := flag.Bool("crawl", true, "follow links up to max_depth")
	enableValidation := flag.Bool("validate", false, "run standard validation on found contacts")
	flag.Parse()
	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: discoveryd [flags] url [url...]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	resultCache := cache.New(cache.Options{
		Backend:   cache.Backend(cfg.Cache.Backend),
		RedisAddr: cfg.Cache.RedisAddr,
		RedisDB:   cfg.Cache.RedisDB,
	})
	defer resultCache.Close()

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
		go serveMetrics(cfg.Observability.MetricsAddr, logger)
	}
	logger.Info("observability configured",
		zap.String("service_name", cfg.Observability.ServiceName),
		zap.Bool("tracing_enabled", cfg.Observability.TracingEnabled),
	)

	engine := buildEngine(cfg, resultCache, logger, metrics)

	dctx := contact.DiscoveryContext{
		MaxDepth:            cfg.Discovery.MaxDepth,
		RespectRobots:       cfg.Discovery.RespectRobots,
		Timeout:             time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second,
		UserAgent:           cfg.Discovery.UserAgent,
		LanguagePreference:  cfg.Discovery.LanguagePreference,
		CulturalContext:     cfg.Discovery.CulturalContext,
		ExtractionMethods:   cfg.Discovery.ExtractionMethods,
		ConfidenceThreshold: contact.ConfidenceLevel(cfg.Discovery.ConfidenceThreshold),
		SmartScoring:        cfg.Discovery.SmartScoring,
	}

	results := engine.DiscoverBatch(ctx, urls, dctx, *enableCrawling, *enableValidation, nil, cfg.Discovery.ConcurrentWorkers)

	for i, res := range results {
		listingID := fmt.Sprintf("cli-%d", i)
		for _, c := range res.Contacts {
			if _, err := store.Upsert(ctx, listingID, c); err != nil {
				logger.Warn("store upsert failed", zap.String("url", res.SourceURL), zap.Error(err))
			}
		}
		for _, f := range res.Forms {
			if err := store.InsertForm(ctx, listingID, f); err != nil {
				logger.Warn("store form insert failed", zap.String("url", res.SourceURL), zap.Error(err))
			}
		}
	}

	if stats, err := engine.GetStats(ctx); err != nil {
		logger.Warn("sample host resources", zap.Error(err))
	} else {
		logger.Info("discovery run complete",
			zap.Int("urls_processed", stats.URLsProcessed),
			zap.Int("contacts_found", stats.ContactsFound),
			zap.Float64("cpu_percent", stats.CPUPercent),
			zap.Float64("memory_percent", stats.MemoryPercent),
		)
	}

	out, err := json.Marshal(results)
	if err != nil {
		logger.Fatal("marshal results", zap.Error(err))
	}
	fmt.Println(string(out))
}

// serveMetrics exposes the Prometheus registry on addr until the process
// exits; failures are logged rather than fatal since metrics export is
// diagnostic, not load-bearing for discovery itself.
func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return database.OpenPostgres(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	default:
		path := cfg.Database.SQLitePath
		if path == "" {
			path = "./discovery.db"
		}
		return database.OpenSQLite(ctx, path)
	}
}

func buildEngine(cfg *config.Config, resultCache cache.Cache, logger *zap.Logger, metrics *observability.Metrics) *contact.Engine {
	httpClient := &http.Client{Timeout: time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second}

	fetcher := contact.NewFetcher(httpClient, time.Duration(cfg.Discovery.RateLimitSeconds*float64(time.Second)), logger)
	crawler := contact.NewCrawler(fetcher, logger)

	extractors := contact.NewExtractors(logger,
		contact.NewEmailExtractor(logger),
		contact.NewPhoneExtractor(logger),
		contact.NewFormExtractor(logger),
		contact.NewSocialMediaExtractor(logger),
		contact.NewOCRExtractor(nil, "", httpClient, logger),
		contact.NewPDFExtractor(nil, httpClient, logger),
	)

	scorer := contact.NewScorer()
	validator := contact.NewValidator(httpClient, cfg.Discovery.ValidationRateLimit, "", logger)

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	return contact.NewEngine(fetcher, crawler, extractors, scorer, validator, resultCache, ttl, logger, metrics)
}
