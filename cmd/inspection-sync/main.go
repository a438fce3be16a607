// cmd/inspection-sync/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"inspection-sync/internal/common/aws"
	"inspection-sync/internal/common/camunda"
	"inspection-sync/internal/common/config"
	"inspection-sync/internal/common/database"
	commonhttp "inspection-sync/internal/common/http"
	"inspection-sync/internal/common/logger"
	"inspection-sync/internal/common/mms"
	"inspection-sync/internal/common/motive"
	"inspection-sync/internal/common/observability"
	inspectionsync "inspection-sync/internal/workers/fleet/inspection-sync"
)

// connectPolicy bounds how long startup waits for a backing service.
type connectPolicy struct {
	attempts int
	delay    time.Duration
}

var (
	redisConnect = connectPolicy{attempts: 10, delay: 2 * time.Second}
	storeConnect = connectPolicy{attempts: 15, delay: 2 * time.Second}
	zeebeConnect = connectPolicy{attempts: 10, delay: 2 * time.Second}
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, policy connectPolicy, log *zap.Logger, operationName string) error {
	var err error
	maxRetries := policy.attempts
	delay := policy.delay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a config file (default: configs/config.yaml)")
	once := flag.Bool("once", false, "run a single sync pass and exit instead of serving Zeebe jobs")
	dryRun := flag.Bool("dry-run", false, "build records without creating them downstream (with -once)")
	dumpPath := flag.String("dump", "", "write the pass result as JSON to this file (with -once)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		return 1
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting inspection sync",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.Bool("once", *once),
	)

	obs := observability.New(inspectionsync.WorkerName, log, observability.WithGlobal())
	defer obs.Shutdown()

	ctx := context.Background()

	if !*once {
		if err := checkServeMode(cfg); err != nil {
			zapLog.Error("cannot serve Zeebe jobs", zap.Error(err))
			return 1
		}
	}

	deps, history, cleanup, err := buildDependencies(ctx, cfg, log, zapLog)
	if err != nil {
		zapLog.Error("dependency initialization failed", zap.Error(err))
		return 1
	}
	defer cleanup()
	deps.Observability = obs

	if *once {
		return runOnce(ctx, cfg, deps, log, zapLog, *dryRun, *dumpPath)
	}

	return serveJobs(ctx, cfg, deps, history, log, zapLog)
}

// checkServeMode rejects the long-running mode when there is no broker to serve.
func checkServeMode(cfg *config.Config) error {
	if !cfg.Camunda.Enabled {
		return fmt.Errorf("camunda.enabled is false; enable it or use -once")
	}
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is empty")
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// buildDependencies wires the upstream feed, the downstream store and every
// optional run sink enabled in config. history is nil unless Postgres is enabled.
// On error every connection opened so far is closed.
func buildDependencies(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) (deps inspectionsync.ServiceDependencies, history *inspectionsync.RunHistory, cleanup func(), err error) {
	var closers []func()
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			cleanup()
			deps, history, cleanup = inspectionsync.ServiceDependencies{}, nil, func() {}
		}
	}()

	motiveHTTP := commonhttp.NewClient(
		config.GetDuration(cfg.Motive.Timeout),
		commonhttp.WithRateLimit(cfg.Motive.RequestsPerSecond, 1),
	)
	mmsHTTP := commonhttp.NewClient(config.GetDuration(cfg.MMS.Timeout))

	deps = inspectionsync.ServiceDependencies{
		Logger: log,
		Feed:   motive.NewClient(cfg.Motive.BaseURL, cfg.Motive.APIKey, cfg.Motive.PerPage, motiveHTTP),
		Store:  mms.NewClient(cfg.MMS.BaseURL, cfg.MMS.Site, cfg.MMS.AuthCookie, mmsHTTP),
	}

	// --- Run lock (Redis) ---
	if cfg.Database.Redis.Enabled {
		var rdb *database.RedisClient
		err := retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err = rdb.Ping(ctx); err != nil {
				_ = rdb.Close()
			}
			return err
		}, redisConnect, zapLog, "Redis connection")
		if err != nil {
			return deps, nil, cleanup, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Locker = rdb
		zapLog.Info("Redis connected successfully")
	}

	// --- Run history (PostgreSQL) ---
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err = pg.Ping(ctx); err != nil {
				_ = pg.Close()
			}
			return err
		}, storeConnect, zapLog, "PostgreSQL connection")
		if err != nil {
			return deps, nil, cleanup, err
		}
		closers = append(closers, func() { _ = pg.Close() })

		history = inspectionsync.NewRunHistory(pg)
		if err = history.EnsureSchema(ctx); err != nil {
			return deps, nil, cleanup, fmt.Errorf("history schema: %w", err)
		}
		deps.Sinks = append(deps.Sinks, history)
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Record index (Elasticsearch) ---
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, storeConnect, zapLog, "Elasticsearch connection")
		if err != nil {
			return deps, nil, cleanup, err
		}
		deps.Sinks = append(deps.Sinks, inspectionsync.NewRecordIndex(esClient, cfg.Database.Elasticsearch.Index))
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Notifications (SNS / SES) ---
	notify := cfg.Notifications
	if notify.SNS.Enabled {
		sns, err := aws.NewSNSClient(ctx, notify.AWS.Region)
		if err != nil {
			return deps, nil, cleanup, fmt.Errorf("sns client: %w", err)
		}
		deps.Sinks = append(deps.Sinks, inspectionsync.NewAlertNotifier(sns, notify.SNS.TopicARN))
	}
	if notify.SES.Enabled {
		ses, err := aws.NewSESClient(ctx, notify.AWS.Region)
		if err != nil {
			return deps, nil, cleanup, fmt.Errorf("ses client: %w", err)
		}
		deps.Sinks = append(deps.Sinks, inspectionsync.NewDigestMailer(ses, notify.SES.FromEmail, notify.SES.Recipients))
	}

	names := make([]string, 0, len(deps.Sinks))
	for _, s := range deps.Sinks {
		names = append(names, s.Name())
	}
	zapLog.Info("Dependencies initialized", zap.Strings("sinks", names), zap.Bool("runLock", deps.Locker != nil))

	return deps, history, cleanup, nil
}

// runOnce performs a single pass and returns the process exit code.
func runOnce(ctx context.Context, cfg *config.Config, deps inspectionsync.ServiceDependencies, log logger.Logger, zapLog *zap.Logger, dryRun bool, dumpPath string) int {
	handler, err := inspectionsync.NewHandler(inspectionsync.HandlerOptions{
		AppConfig:    cfg,
		Logger:       log,
		Dependencies: deps,
	})
	if err != nil {
		zapLog.Error("handler init failed", zap.Error(err))
		return 1
	}

	runCtx, cancel := context.WithTimeout(ctx, handler.GetConfig().Timeout)
	defer cancel()

	result, runErr := handler.Service().RunExclusive(runCtx, inspectionsync.RunOptions{DryRun: dryRun})
	if result != nil && dumpPath != "" {
		if err := writeDump(dumpPath, result); err != nil {
			zapLog.Error("failed to write result dump", zap.String("path", dumpPath), zap.Error(err))
		}
	}
	if runErr != nil {
		zapLog.Error("sync pass did not complete", zap.Error(runErr))
		return 1
	}
	return 0
}

func writeDump(path string, result *inspectionsync.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// serveJobs registers the Zeebe worker and blocks until SIGINT or SIGTERM.
// It returns the process exit code.
func serveJobs(ctx context.Context, cfg *config.Config, deps inspectionsync.ServiceDependencies, history *inspectionsync.RunHistory, log logger.Logger, zapLog *zap.Logger) int {
	var zeebe *camunda.Client
	err := retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(ctx, cfg.Camunda.BrokerAddress)
		return err
	}, zeebeConnect, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Error("zeebe client failed after retries", zap.Error(err))
		return 1
	}
	defer func() {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}()
	zapLog.Info("Zeebe client connected successfully")

	handler, err := inspectionsync.NewHandler(inspectionsync.HandlerOptions{
		AppConfig:    cfg,
		Camunda:      zeebe,
		Logger:       log,
		Dependencies: deps,
	})
	if err != nil {
		zapLog.Error("handler init failed", zap.Error(err))
		return 1
	}
	if err := handler.Register(); err != nil {
		zapLog.Error("worker registration failed", zap.Error(err))
		return 1
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := handler.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			writeStatus(w, http.StatusNotFound, "run history disabled")
			return
		}
		last, err := history.LastRun(r.Context())
		if err != nil {
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"lastRun": last})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	zapLog.Info("Shutdown signal received, stopping worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	handler.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	zapLog.Info("Inspection sync stopped gracefully")
	return 0
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
