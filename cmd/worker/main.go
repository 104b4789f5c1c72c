// Command worker consumes background tasks from the queue and runs the
// pipelines: extraction, résumé ingest, inbox reconciliation and digest
// matching.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jobintel/jobintel/internal/adapter/ai/provider"
	"github.com/jobintel/jobintel/internal/adapter/mail/gmail"
	"github.com/jobintel/jobintel/internal/adapter/queue/redpanda"
	"github.com/jobintel/jobintel/internal/adapter/repo/postgres"
	tikaext "github.com/jobintel/jobintel/internal/adapter/textextractor/tika"
	qdrantcli "github.com/jobintel/jobintel/internal/adapter/vector/qdrant"
	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/extract"
	"github.com/jobintel/jobintel/internal/match"
	"github.com/jobintel/jobintel/internal/observability"
	"github.com/jobintel/jobintel/internal/reconcile"
	"github.com/jobintel/jobintel/internal/service/ratelimiter"
	"github.com/jobintel/jobintel/internal/service/taskregistry"
	"github.com/jobintel/jobintel/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()
	go serveMetrics(cfg.MetricsPort)

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("tracing setup failed", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobs := postgres.NewJobRepo(pool)
	resumes := postgres.NewResumeRepo(pool)
	apps := postgres.NewApplicationRepo(pool)
	contacts := postgres.NewContactRepo(pool)
	logs := postgres.NewActionLogRepo(pool)
	settings := postgres.NewSettingsRepo(pool)

	aiFactory := provider.NewFactory(cfg, newLimiter(cfg))

	vectors := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err := vectors.EnsureCollection(ctx, qdrantcli.JobsCollection, cfg.EmbeddingDim); err != nil {
		slog.Warn("vector collection bootstrap failed", slog.Any("error", err))
	}

	engine, err := extract.NewEngine(cfg)
	if err != nil {
		slog.Error("extraction engine init failed", slog.Any("error", err))
		os.Exit(1)
	}
	lem, err := match.NewLemmatizer()
	if err != nil {
		slog.Error("lemmatizer init failed", slog.Any("error", err))
		os.Exit(1)
	}

	scrapeSvc := usecase.NewScrapeService(engine, jobs, contacts, logs, settings, aiFactory, vectors)
	resumeSvc := usecase.NewResumeService(resumes, logs, settings, tikaext.New(cfg.TikaURL), aiFactory)
	digester := match.NewDigester(vectors, jobs, resumes, lem,
		cfg.DigestShortlistSize, cfg.DigestKeep, cfg.DigestMinOverlap)
	matchSvc := usecase.NewMatchService(match.NewEngine(jobs, resumes), digester, settings, logs)
	scanner := reconcile.NewScanner(cfg, settings, apps, logs,
		func(ctx domain.Context, s domain.UserSettings) (domain.Mailbox, error) {
			return gmail.New(ctx, cfg, s)
		},
		aiFactory)
	registry := taskregistry.New()

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, "jobintel-worker", cfg.ConsumerMaxConcurrency,
		dispatch(registry, scrapeSvc, resumeSvc, scanner, matchSvc))
	if err != nil {
		slog.Error("queue consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		sig := <-stop
		slog.Info("shutting down", slog.String("signal", sig.String()))
		cancel()
		consumer.Close()
	}()

	go sweepRegistry(ctx, registry)
	go digestLoop(ctx, matchSvc)

	slog.Info("worker starting", slog.Int("max_concurrency", cfg.ConsumerMaxConcurrency))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// dispatch routes one task payload to its pipeline. Every run is tracked
// in the registry so DELETE /v1/tasks can cancel it cooperatively.
func dispatch(registry *taskregistry.Registry, scrape *usecase.ScrapeService, resume *usecase.ResumeService, scanner *reconcile.Scanner, matchSvc *usecase.MatchService) redpanda.Handler {
	return func(ctx context.Context, taskID string, p domain.TaskPayload) error {
		// cancel requests are control messages: abort the user's running
		// tasks instead of registering a task of their own
		if p.Type == domain.TaskCancel {
			n := registry.CancelUser(p.UserID)
			slog.Info("cancel request applied",
				slog.String("user_id", p.UserID), slog.Int("cancelled", n))
			return nil
		}

		id, tctx := registry.Register(ctx, p.UserID, p.Type)
		defer registry.Done(p.UserID, p.Type, id)

		switch p.Type {
		case domain.TaskScrape:
			_, err := scrape.Run(tctx, p.UserID, p.URL, extract.Target(p.Target), p.Keywords)
			return err
		case domain.TaskResumeParse:
			return resume.Process(tctx, p.UserID, p.ResumeID, p.Path, p.Filename)
		case domain.TaskInboxSync:
			_, err := scanner.Sync(tctx, p.UserID)
			return err
		case domain.TaskMatchDigest:
			_, err := matchSvc.Digest(tctx, p.UserID)
			return err
		default:
			return fmt.Errorf("op=worker.dispatch task=%s: %w: unknown type %q", taskID, domain.ErrInvalidArgument, p.Type)
		}
	}
}

// digestLoop runs the batch digest for every user once per day.
func digestLoop(ctx context.Context, matchSvc *usecase.MatchService) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			matchSvc.DigestAll(ctx)
		}
	}
}

func sweepRegistry(ctx context.Context, registry *taskregistry.Registry) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(time.Hour); n > 0 {
				slog.Warn("stale tasks swept", slog.Int("count", n))
			}
		}
	}
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("metrics server error", slog.Any("error", err))
	}
}

// newLimiter builds the shared AI provider throttle. A broken Redis URL
// downgrades to no throttling rather than refusing to start.
func newLimiter(cfg config.Config) *ratelimiter.RedisLimiter {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Warn("redis url invalid, ai throttle disabled", slog.Any("error", err))
		return nil
	}
	return ratelimiter.New(redis.NewClient(opts), map[string]ratelimiter.BucketConfig{
		domain.ProviderOpenAI: ratelimiter.PerMinute(cfg.AIProviderRPM),
		domain.ProviderGemini: ratelimiter.PerMinute(cfg.AIProviderRPM),
	})
}
