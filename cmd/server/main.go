// Command server starts the jobintel HTTP trigger surface: requests are
// validated, background work is enqueued, and only match queries and
// status changes run inline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobintel/jobintel/internal/adapter/ai/provider"
	"github.com/jobintel/jobintel/internal/adapter/httpserver"
	"github.com/jobintel/jobintel/internal/adapter/queue/redpanda"
	"github.com/jobintel/jobintel/internal/adapter/repo/postgres"
	tikaext "github.com/jobintel/jobintel/internal/adapter/textextractor/tika"
	qdrantcli "github.com/jobintel/jobintel/internal/adapter/vector/qdrant"
	"github.com/jobintel/jobintel/internal/config"
	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/match"
	"github.com/jobintel/jobintel/internal/observability"
	"github.com/jobintel/jobintel/internal/service/ratelimiter"
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

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("tracing setup failed", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
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

	producer, err := redpanda.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("queue producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer producer.Close()

	aiFactory := provider.NewFactory(cfg, newLimiter(cfg))
	vectors := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)

	lem, err := match.NewLemmatizer()
	if err != nil {
		slog.Error("lemmatizer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	digester := match.NewDigester(vectors, jobs, resumes, lem,
		cfg.DigestShortlistSize, cfg.DigestKeep, cfg.DigestMinOverlap)
	matchSvc := usecase.NewMatchService(match.NewEngine(jobs, resumes), digester, settings, logs)
	statusSvc := usecase.NewStatusService(apps)
	resumeSvc := usecase.NewResumeService(resumes, logs, settings, tikaext.New(cfg.TikaURL), aiFactory)
	importSvc := usecase.NewContactImportService(contacts)

	srv := httpserver.NewServer(cfg, producer, matchSvc, statusSvc, resumeSvc, importSvc)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpserver.BuildRouter(srv),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("shutting down", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", slog.Any("error", err))
		}
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
