package inspectionsync

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"inspection-sync/internal/common/database"
	"inspection-sync/internal/common/errors"
	"inspection-sync/internal/common/logger"
	"inspection-sync/internal/common/metrics"
	"inspection-sync/internal/common/observability"
	"inspection-sync/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var noopTracer = noop.NewTracerProvider().Tracer("inspection-sync")

// RunLocker guards a pass against concurrent passes (Redis).
type RunLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type ServiceDependencies struct {
	Logger        logger.Logger
	Feed          InspectionFeed
	Store         EntityStore
	Locker        RunLocker
	Sinks         []RunSink
	Observability *observability.Observability
	Now           func() time.Time
}

// Service runs sync passes.
type Service struct {
	config     *Config
	logger     logger.Logger
	feed       InspectionFeed
	store      EntityStore
	locker     RunLocker
	sinks      []RunSink
	obs        *observability.Observability
	now        func() time.Time
	classifier *LabelClassifier
	builder    *PayloadBuilder
	dispatcher *Dispatcher
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		config:     config,
		logger:     log,
		feed:       deps.Feed,
		store:      deps.Store,
		locker:     deps.Locker,
		sinks:      deps.Sinks,
		obs:        deps.Observability,
		now:        now,
		classifier: NewLabelClassifier(config.TruckMarkers, config.TrailerMarkers),
		builder:    NewPayloadBuilder(config.Sentinels),
		dispatcher: NewDispatcher(deps.Store, log),
	}
}

// RunExclusive holds the run lock, when a locker is configured, around Run.
func (s *Service) RunExclusive(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if s.locker == nil {
		return s.Run(ctx, opts)
	}

	token, err := s.locker.AcquireLock(ctx, s.config.LockKey, s.config.LockTTL)
	if err != nil {
		if stderrors.Is(err, database.ErrLockHeld) {
			metrics.SyncRuns.WithLabelValues(string(RunStatusLocked)).Inc()
			s.logger.Warn("Another sync pass holds the lock, skipping", map[string]interface{}{
				"lockKey": s.config.LockKey,
			})
			return &RunResult{Status: RunStatusLocked, DryRun: opts.DryRun}, errors.NewRunLockedError(s.config.LockKey)
		}
		return nil, err
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), s.config.LockKey, token); err != nil {
			s.logger.Warn("Failed to release run lock", map[string]interface{}{
				"lockKey": s.config.LockKey,
				"error":   err.Error(),
			})
		}
	}()

	return s.Run(ctx, opts)
}

// Run performs one pass: load assets, resolve the watermark, poll the feed,
// build records for new reports and, unless DryRun, create them downstream.
// A non-nil error means the pass aborted before any create call; the result
// is still returned for reporting.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		DryRun:    opts.DryRun,
		StartedAt: s.now().UTC(),
	}

	ctx, span := s.startSpan(ctx, "sync.run", attribute.String("run.id", result.RunID), attribute.Bool("run.dry", opts.DryRun))
	defer span.End()

	s.logger.Info("Starting inspection sync pass", map[string]interface{}{
		"runId":  result.RunID,
		"dryRun": opts.DryRun,
	})

	if err := s.run(ctx, opts, result); err != nil {
		result.AbortErr = err
		result.Status = RunStatusAborted
		span.RecordError(err)
		s.logger.Error("Inspection sync pass aborted", map[string]interface{}{
			"runId":     result.RunID,
			"errorCode": string(errors.CodeOf(err)),
			"error":     err.Error(),
		})
	}

	s.finish(ctx, result)
	return result, result.AbortErr
}

func (s *Service) run(ctx context.Context, opts RunOptions, result *RunResult) error {
	stageCtx, span := s.startSpan(ctx, "sync.assets")
	directory, err := NewAssetLoader(s.store, s.classifier, s.config.AssetPageSize).Load(stageCtx)
	span.End()
	if err != nil {
		return err
	}
	result.AssetsLoaded = directory.Len()
	s.logger.Info("Loaded asset directory", map[string]interface{}{"assets": directory.Len()})

	stageCtx, span = s.startSpan(ctx, "sync.watermark")
	resolver := NewWatermarkResolver(s.store, DirectoryAssetKind(directory, s.classifier), s.config, s.logger)
	wm, err := resolver.Resolve(stageCtx)
	span.End()
	if err != nil {
		return err
	}
	result.Watermark = wm
	metrics.SyncWatermark.Set(float64(wm.At.Unix()))

	stageCtx, span = s.startSpan(ctx, "sync.poll")
	poll, err := NewPoller(s.feed, s.config.MaxPages, s.config.Lookback, s.now, s.logger).Poll(stageCtx)
	span.End()
	if err != nil {
		return err
	}
	result.PagesFetched = poll.PagesFetched
	result.ReportsExtracted = len(poll.Reports)
	metrics.SyncStageItems.WithLabelValues("fetched").Add(float64(poll.RawReports))
	metrics.SyncStageItems.WithLabelValues("extracted").Add(float64(len(poll.Reports)))

	fresh := FilterNew(poll.Reports, wm)
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].OccurredAt.Before(fresh[j].OccurredAt)
	})
	result.ReportsNew = len(fresh)
	metrics.SyncStageItems.WithLabelValues("new").Add(float64(len(fresh)))
	s.logger.Info("Filtered reports against watermark", map[string]interface{}{
		"pages":     poll.PagesFetched,
		"extracted": len(poll.Reports),
		"new":       len(fresh),
	})

	_, span = s.startSpan(ctx, "sync.build")
	for _, report := range fresh {
		record, rej := s.buildRecord(report, directory)
		if rej != nil {
			result.Rejections = append(result.Rejections, *rej)
			continue
		}
		result.Records = append(result.Records, *record)
	}
	span.End()
	metrics.SyncStageItems.WithLabelValues("built").Add(float64(len(result.Records)))
	metrics.SyncStageItems.WithLabelValues("rejected").Add(float64(len(result.Rejections)))

	if opts.DryRun {
		s.logger.Info("Dry run, skipping dispatch", map[string]interface{}{
			"records": len(result.Records),
		})
		return nil
	}

	stageCtx, span = s.startSpan(ctx, "sync.dispatch", attribute.Int("records", len(result.Records)))
	result.Outcomes = s.dispatcher.Dispatch(stageCtx, result.Records)
	span.End()
	return nil
}

// buildRecord resolves the asset and builds the payload for one report.
func (s *Service) buildRecord(report models.InspectionReport, directory *AssetDirectory) (*models.OutboundWorkRecord, *Rejection) {
	identifier, _ := report.AssetIdentifier()
	if identifier == "" {
		return nil, s.reject(errors.NewPayloadBuildError(report.ID, stderrors.New("report has neither vehicle nor trailer")), report.ID)
	}

	asset, found := directory.Resolve(identifier)
	if !found {
		return nil, s.reject(errors.NewAssetResolutionError(report.ID, identifier), report.ID)
	}

	record, err := s.builder.Build(report, asset)
	if err != nil {
		return nil, s.reject(errors.NewPayloadBuildError(report.ID, err), report.ID)
	}
	return record, nil
}

func (s *Service) reject(stdErr *errors.StandardError, reportID int64) *Rejection {
	metrics.SyncRejections.WithLabelValues(string(stdErr.Code)).Inc()
	s.logger.Warn("Skipping inspection report", map[string]interface{}{
		"reportId":  reportID,
		"errorCode": string(stdErr.Code),
		"reason":    stdErr.Details,
	})
	return &Rejection{ReportID: reportID, Code: stdErr.Code, Reason: stdErr.Details}
}

func (s *Service) finish(ctx context.Context, result *RunResult) {
	result.FinishedAt = s.now().UTC()
	if result.Status == "" {
		result.Status = RunStatusOK
		if len(result.Rejections) > 0 || result.Failed() > 0 {
			result.Status = RunStatusPartial
		}
	}

	metrics.SyncRuns.WithLabelValues(string(result.Status)).Inc()
	metrics.SyncRunDuration.Observe(result.Duration().Seconds())
	if s.obs != nil {
		s.obs.RecordRun(ctx, result.Duration(), string(result.Status))
	}

	s.logger.Info("Inspection sync pass finished", map[string]interface{}{
		"runId":    result.RunID,
		"status":   string(result.Status),
		"new":      result.ReportsNew,
		"built":    len(result.Records),
		"rejected": len(result.Rejections),
		"created":  result.Created(),
		"failed":   result.Failed(),
		"duration": result.Duration().String(),
	})

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, result); err != nil {
			s.logger.Warn("Run sink failed", map[string]interface{}{
				"sink":  sink.Name(),
				"runId": result.RunID,
				"error": err.Error(),
			})
		}
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if s.obs == nil {
		return noopTracer.Start(ctx, name, trace.WithAttributes(attrs...))
	}
	return s.obs.StartSpan(ctx, name, attrs...)
}
