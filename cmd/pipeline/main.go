package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/arxiv"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/auth"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/embedder"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/index"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/notify"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/org"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/fetch"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/monitor"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/orchestrator"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/internal/pipeline/process"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/config"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/health"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/kafka"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/logger"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/metrics"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/postgres"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/redis"
	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	reportPath := flag.String("report", "", "write the run report as JSON to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion pipeline",
		"workers", cfg.Pipeline.Workers,
		"max_organizations", cfg.Pipeline.MaxOrganizations,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := org.NewPostgresRepository(db)
	directory := org.NewDirectory(repo)

	var redisClient *redis.Client
	if rc, err := redis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, dedup and cleanup disabled", "error", err)
	} else {
		redisClient = rc
		defer redisClient.Close()
	}

	m := metrics.New()
	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Port)
	}

	tracer := tracing.NewNoop()
	if cfg.Tracing.Enabled {
		tracer = tracing.NewLogTracer(uuid.NewString())
	}

	source := arxiv.NewHTTPClient(cfg.Arxiv, nil)
	idx := index.NewHTTPClient(cfg.Index, nil)

	emb, err := embedder.NewOpenAI(cfg.Embedding)
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	cachedEmb := embedder.NewCached(emb, cfg.Embedding.CacheSize, m)

	var extractor process.ContentProcessor = process.AbstractExtractor{}
	if cfg.Extraction.Endpoint != "" {
		extractor = process.NewHTTPExtractor(cfg.Extraction.Endpoint, cfg.Extraction.RequestTimeout)
	} else {
		slog.Warn("no extraction endpoint configured, indexing abstracts only")
	}

	var seen *fetch.RedisSeenCache
	if redisClient != nil {
		seen = fetch.NewRedisSeenCache(redisClient, cfg.Redis.SeenTTL)
	}

	runHealthChecks(ctx, db, redisClient, idx)

	fetcher := fetch.New(source, seenOrNil(seen), tracer, fetch.Options{
		QueryTerms:   cfg.Arxiv.Categories,
		Workers:      cfg.Pipeline.Workers,
		StageTimeout: cfg.Pipeline.StageTimeout,
		LimitCeiling: cfg.Pipeline.IngestionCeiling,
	})
	processor := process.New(extractor, cachedEmb, idx, repo, markerOrNil(seen), tracer, process.Options{
		Workers:         cfg.Pipeline.Workers,
		StageTimeout:    cfg.Pipeline.StageTimeout,
		ChunkSize:       cfg.Pipeline.ChunkSize,
		ChunkOverlap:    cfg.Pipeline.ChunkOverlap,
		ReplaceExisting: cfg.Pipeline.ReplaceExisting,
	})
	evaluator := monitor.NewEngine(
		monitor.WithDurationCeiling(cfg.Pipeline.DurationCeiling),
		monitor.WithResourceSnapshot(monitor.HostSnapshot),
	)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notification.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notification)
	}

	var events orchestrator.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.RunEventsTopic)
		defer producer.Close()
		events = orchestrator.NewKafkaEvents(producer)
	}

	orc := orchestrator.New(
		directory, fetcher, processor, evaluator,
		orchestrator.NewCleaner(redisClient),
		notifier, events, redisClient, tracer, m,
		orchestrator.Options{
			MaxOrganizations: cfg.Pipeline.MaxOrganizations,
			PerOrgFetchLimit: cfg.Pipeline.PerOrgFetchLimit,
			LimitCeiling:     cfg.Pipeline.IngestionCeiling,
		},
	)

	report, err := orc.Run(ctx, auth.System())
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
	}
	if report != nil && *reportPath != "" {
		if err := writeReport(*reportPath, report); err != nil {
			slog.Error("failed to write run report", "path", *reportPath, "error", err)
		}
	}

	slog.Info("ingestion pipeline stopped")
	if err != nil {
		os.Exit(1)
	}
}

// seenOrNil converts a typed nil into a nil interface so the coordinator's
// nil check works.
func seenOrNil(seen *fetch.RedisSeenCache) fetch.SeenCache {
	if seen == nil {
		return nil
	}
	return seen
}

func markerOrNil(seen *fetch.RedisSeenCache) process.IngestMarker {
	if seen == nil {
		return nil
	}
	return seen
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
}

// runHealthChecks probes collaborators once at startup. Failures are
// logged, not fatal: per-stage resilience decides what the run can survive.
func runHealthChecks(ctx context.Context, db *postgres.Client, redisClient *redis.Client, idx index.Client) {
	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		h, err := idx.Health(ctx)
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: h.Status}
	})

	report := checker.Run(ctx)
	slog.Info("startup health check", "status", report.Status)
	for name, comp := range report.Components {
		if comp.Status != health.StatusUp {
			slog.Warn("collaborator unhealthy", "component", name, "message", comp.Message)
		}
	}
}

func writeReport(path string, report *orchestrator.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
