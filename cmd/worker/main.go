// Command worker runs one DAG-executing consumer per platform queue (spec
// §4.F), resolving each platform's fetch mode (direct HTTP/JSON or headless
// browser) into the shared node.Registry's "fetch_api"/"fetch_scrape" node
// types.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/priceguard/sentinel/internal/browserpool"
	"github.com/priceguard/sentinel/internal/config"
	"github.com/priceguard/sentinel/internal/engine"
	"github.com/priceguard/sentinel/internal/metrics"
	"github.com/priceguard/sentinel/internal/node"
	"github.com/priceguard/sentinel/internal/obslog"
	"github.com/priceguard/sentinel/internal/platformclient"
	"github.com/priceguard/sentinel/internal/platformconfig"
	"github.com/priceguard/sentinel/internal/platformscheduler"
	"github.com/priceguard/sentinel/internal/queue"
	"github.com/priceguard/sentinel/internal/sor"
	"github.com/priceguard/sentinel/internal/workerfleet"
	"github.com/priceguard/sentinel/internal/workflow"
)

func main() {
	cfg, err := config.Load(os.Getenv("SENTINEL_CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	log := obslog.New(obslog.Options{Service: "sentinel-worker", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	platforms, err := platformconfig.Load(cfg.PlatformConfigDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.PlatformConfigDir).Msg("load platform config")
	}

	db, err := sor.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open source of record")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := queue.NewRedisStore(rdb, 100*time.Millisecond)

	reg := metrics.New(nil)
	go serveMetrics(cfg.MetricsAddr, log)

	apiFetchers, scrapeFetchers := buildFetchers(platforms, reg, log)

	registry := node.NewRegistry()
	registry.Register("fetch_api", &node.FetchNode{Store: db, Fetchers: apiFetchers})
	registry.Register("fetch_scrape", &node.FetchNode{Store: db, Fetchers: scrapeFetchers})
	registry.Register("compare", &node.CompareNode{})
	registry.Register("audit_write", &node.AuditWriteNode{OutputRoot: cfg.AuditOutputRoot})
	registry.Register("notify", &node.NotifyNode{})

	loader := workflow.NewLoader(cfg.WorkflowDir, log)
	eng := engine.New(registry, store, log, reg)

	// NotifyCompletion only touches shared platform state, so a Scheduler
	// built with no platform list still serves as the worker's hook into
	// the scheduler's cooldown clock (spec §4.E step 6).
	notifier := platformscheduler.New(platformscheduler.Config{}, nil, store, store, log)

	workers := make([]*workerfleet.Worker, 0, len(platforms.Platforms())+1)
	for _, tag := range platforms.Platforms() {
		workers = append(workers, &workerfleet.Worker{
			Platform:    tag,
			Queue:       store,
			Loader:      loader,
			Engine:      eng,
			Platforms:   platforms,
			Notifier:    notifier,
			DequeueWait: cfg.DequeueWait,
			Log:         log,
		})
	}
	workers = append(workers, &workerfleet.Worker{
		Platform:    "alert",
		Queue:       store,
		Loader:      loader,
		Engine:      eng,
		Platforms:   platforms,
		Notifier:    notifier,
		DequeueWait: cfg.DequeueWait,
		Log:         log,
	})

	fleet := workerfleet.New(workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fleet.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	fleet.Wait()
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

// buildFetchers splits the configured platforms into the API and scrape
// Fetcher maps the "fetch_api"/"fetch_scrape" node registrations need,
// one fetcher per platform tag.
func buildFetchers(platforms *platformconfig.Store, reg *metrics.Metrics, log zerolog.Logger) (map[string]platformclient.Fetcher, map[string]platformclient.Fetcher) {
	apiFetchers := make(map[string]platformclient.Fetcher)
	scrapeFetchers := make(map[string]platformclient.Fetcher)

	for _, tag := range platforms.Platforms() {
		cfg, err := platforms.Get(tag)
		if err != nil {
			continue
		}

		if cfg.IsScrape() {
			scrapeFetchers[tag] = buildScrapeFetcher(reg)
			continue
		}

		var fm platformclient.FieldMap
		if err := mapstructure.Decode(cfg.Extraction, &fm); err != nil {
			log.Warn().Err(err).Str("platform", tag).Msg("invalid extraction config, skipping fetcher")
			continue
		}
		apiFetchers[tag] = platformclient.NewAPIFetcher(cfg.UserAgent, platformclient.NewFieldMapExtract(fm))
	}
	return apiFetchers, scrapeFetchers
}

// errScrapeUnimplemented marks the boundary spec §1 draws around real
// per-platform browser navigation and field extraction: out of core
// scope, so this pool only exercises acquire/release/rotation, never a
// live page.
var errScrapeUnimplemented = errors.New("cmd/worker: scrape navigation/extraction is a platform-specific plugin, none wired")

type noopSession struct{}

func (noopSession) Close() error { return nil }

func buildScrapeFetcher(reg *metrics.Metrics) *platformclient.ScrapeFetcher {
	pool := browserpool.New(browserpool.Config{}, func(ctx context.Context) (browserpool.Session, error) {
		return noopSession{}, nil
	}, reg.IncBrowserRecycle)

	return platformclient.NewScrapeFetcher(pool, func(ctx context.Context, sess browserpool.Session, url string) (*platformclient.Snapshot, error) {
		return nil, errScrapeUnimplemented
	})
}
