// Package server builds the application's dependency graph from config and
// runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/lite-site-auditor/internal/api"
	"github.com/JakeFAU/lite-site-auditor/internal/audit"
	"github.com/JakeFAU/lite-site-auditor/internal/clock/system"
	"github.com/JakeFAU/lite-site-auditor/internal/config"
	collyfetcher "github.com/JakeFAU/lite-site-auditor/internal/fetcher/colly"
	"github.com/JakeFAU/lite-site-auditor/internal/id/uuid"
	"github.com/JakeFAU/lite-site-auditor/internal/logging"
	"github.com/JakeFAU/lite-site-auditor/internal/metrics"
	"github.com/JakeFAU/lite-site-auditor/internal/policy/ratelimit"
	"github.com/JakeFAU/lite-site-auditor/internal/progress"
	progresssinks "github.com/JakeFAU/lite-site-auditor/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/lite-site-auditor/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/lite-site-auditor/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/lite-site-auditor/internal/storage/gcs"
	localstorage "github.com/JakeFAU/lite-site-auditor/internal/storage/local"
	memorystorage "github.com/JakeFAU/lite-site-auditor/internal/storage/memory"
	pgstore "github.com/JakeFAU/lite-site-auditor/internal/storage/postgres"
	"github.com/JakeFAU/lite-site-auditor/internal/telemetry"
)

// defaultTopic names the in-memory notification stream when Pub/Sub is not
// configured.
const defaultTopic = "audit-completed"

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	auditor        *audit.Auditor
	apiServer      *api.Server
	progressHub    *progress.Hub
	pgStore        *pgstore.ReportStore
	pubsubClient   *pubsub.Client
	gcpPublisher   *gcppublisher.Publisher
	storage        *storage.Client
	redis          *redis.Client
	readiness      map[string]api.ReadinessCheck
	tracerShutdown func(context.Context) error
}

// Options override process-wide defaults, mainly for tests.
type Options struct {
	// Registerer receives the progress sink's collectors. Defaults to the
	// Prometheus default registerer.
	Registerer prometheus.Registerer
	// Logger replaces the logger built from cfg.Logging.
	Logger *zap.Logger
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	app := &App{
		cfg:       cfg,
		logger:    logger,
		readiness: map[string]api.ReadinessCheck{},
	}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Int("max_pages", cfg.Crawler.MaxPages),
		zap.Bool("respect_robots", cfg.Crawler.RespectRobots),
	)

	if err := app.build(ctx, opts); err != nil {
		app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	metrics.Init()
	if err := a.setupTracing(ctx); err != nil {
		return err
	}

	reports, err := a.setupReports(ctx)
	if err != nil {
		return err
	}
	archive, err := a.setupArchive(ctx)
	if err != nil {
		return err
	}
	publisher, topic, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}
	if err := a.setupProgress(opts.Registerer); err != nil {
		return err
	}
	limiter, err := a.setupLimiter(ctx)
	if err != nil {
		return err
	}

	fetcherCfg := collyfetcher.Config{
		UserAgent:    a.cfg.Crawler.UserAgent,
		Timeout:      a.cfg.FetchTimeout(),
		ProbeTimeout: a.cfg.ProbeTimeout(),
	}
	deps := audit.Deps{
		Fetcher:   collyfetcher.New(fetcherCfg),
		Prober:    collyfetcher.NewProber(fetcherCfg),
		Store:     reports,
		Archive:   archive,
		Publisher: publisher,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    a.logger.Named("audit"),
	}
	if a.progressHub != nil {
		deps.Progress = a.progressHub
	}
	a.auditor, err = audit.New(audit.Config{
		Limits: audit.Limits{
			MaxPages:       a.cfg.Crawler.MaxPages,
			MaxDuplicates:  a.cfg.Report.MaxDuplicates,
			MaxRedirects:   a.cfg.Report.MaxRedirects,
			MaxBrokenLinks: a.cfg.Report.MaxBrokenLinks,
		},
		UserAgent:     a.cfg.Crawler.UserAgent,
		RespectRobots: a.cfg.Crawler.RespectRobots,
		Topic:         topic,
		ArchivePrefix: a.cfg.Storage.Prefix,
	}, deps)
	if err != nil {
		return fmt.Errorf("auditor init failed: %w", err)
	}
	a.logger.Info("auditor initialized", zap.String("user_agent", a.cfg.Crawler.UserAgent))

	a.apiServer, err = api.NewServer(a.cfg, api.Deps{
		Auditor:   a.auditor,
		Reports:   reports,
		Limiter:   limiter,
		Readiness: a.readiness,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("api init failed: %w", err)
	}
	return nil
}

func (a *App) setupTracing(ctx context.Context) error {
	if !a.cfg.Telemetry.Enabled {
		a.logger.Info("tracing disabled")
		return nil
	}
	tcfg := telemetry.Config{
		ServiceName: a.cfg.Telemetry.ServiceName,
		SampleRatio: a.cfg.Telemetry.SampleRatio,
	}
	if a.cfg.Telemetry.LogSpans {
		tcfg.Logger = a.logger.Named("spans")
	}
	tp, err := telemetry.InitTracerProvider(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = tp.Shutdown
	a.logger.Info("tracing enabled",
		zap.String("service", tcfg.ServiceName),
		zap.Float64("sample_ratio", tcfg.SampleRatio),
	)
	return nil
}

func (a *App) setupReports(ctx context.Context) (audit.ReportStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no DSN specified for database, keeping reports in memory",
			zap.Int("capacity", a.cfg.Report.MemoryCapacity))
		return memorystorage.NewReportStore(a.cfg.Report.MemoryCapacity), nil
	}
	store, err := pgstore.NewReportStore(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("report store init failed: %w", err)
	}
	a.pgStore = store
	if a.cfg.DB.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("report store schema failed: %w", err)
		}
	}
	a.readiness["postgres"] = store.Ping
	a.logger.Info("report store initialized", zap.String("table", a.cfg.DB.Table))
	return store, nil
}

func (a *App) setupArchive(ctx context.Context) (audit.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		archive, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.logger.Info("archiving reports to GCS",
			zap.String("bucket", a.cfg.Storage.Bucket),
			zap.String("prefix", a.cfg.Storage.Prefix))
		return archive, nil
	case "local":
		archive, err := localstorage.New(a.cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		a.logger.Info("archiving reports on local disk", zap.String("dir", a.cfg.Storage.LocalDir))
		return archive, nil
	case "memory":
		a.logger.Info("archiving reports in memory")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("report archive disabled")
		return nil, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (audit.Publisher, string, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(0), defaultTopic, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.gcpPublisher = gcppublisher.New(client)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.gcpPublisher, a.cfg.PubSub.TopicName, nil
}

func (a *App) setupProgress(reg prometheus.Registerer) error {
	if !a.cfg.Progress.Enabled {
		a.logger.Info("progress tracking disabled")
		return nil
	}
	var sinkList []progress.Sink
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	if a.cfg.Progress.PrometheusEnabled {
		promSink, err := progresssinks.NewPrometheusSink(reg)
		if err != nil {
			return fmt.Errorf("progress prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
	}
	if len(sinkList) == 0 {
		a.logger.Warn("progress tracking enabled but no sinks configured")
		return nil
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.MaxBatchWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return nil
}

func (a *App) setupLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if !a.cfg.RateLimit.Enabled {
		a.logger.Info("rate limiter disabled")
		return nil, nil
	}
	limits := ratelimit.Config{Requests: a.cfg.RateLimit.Requests, Window: a.cfg.RateLimitWindow()}
	if a.cfg.RateLimit.Backend != "redis" {
		a.logger.Info("in-memory rate limiter enabled",
			zap.Int("requests", limits.Requests), zap.Duration("window", limits.Window))
		return ratelimit.NewMemory(limits), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	a.readiness["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	limiter, err := ratelimit.NewRedis(a.redis, a.cfg.Redis.KeyPrefix, limits)
	if err != nil {
		return nil, fmt.Errorf("redis limiter init failed: %w", err)
	}
	a.logger.Info("redis rate limiter enabled",
		zap.String("addr", a.cfg.Redis.Addr),
		zap.Int("requests", limits.Requests), zap.Duration("window", limits.Window))
	return limiter, nil
}

// Audit runs one audit outside the HTTP server, for one-shot CLI runs.
func (a *App) Audit(ctx context.Context, rawURL string) (audit.Record, error) {
	rec, err := a.auditor.Run(ctx, rawURL)
	if err != nil {
		return audit.Record{}, fmt.Errorf("audit %s: %w", rawURL, err)
	}
	return rec, nil
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives, then
// drains in-flight audits and closes dependencies.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close(shutdownCtx)

	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.cfg.Server.ShutdownTimeoutSeconds) * time.Second
}

// Close releases every dependency Build opened. It is safe on a partially
// built App.
func (a *App) Close(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.gcpPublisher != nil {
		a.gcpPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}
