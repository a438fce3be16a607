package inspectionsync

import (
	"context"
	"fmt"
	"time"

	"inspection-sync/internal/common/camunda"
	"inspection-sync/internal/common/config"
	"inspection-sync/internal/common/errors"
	"inspection-sync/internal/common/logger"
	"inspection-sync/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "fleet.inspection.sync"
	WorkerName = "inspection-sync"
)

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	service      *Service
	errorHandler *errors.ErrorHandler
	jobWorker    *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Logger       logger.Logger
	Dependencies ServiceDependencies
}

// Input is the job variables a BPMN timer process may set.
type Input struct {
	DryRun bool `json:"dryRun"`
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, errors.NewConfigInvalidError(fmt.Errorf("%s: %w", WorkerName, err))
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}

	deps := opts.Dependencies
	if deps.Logger == nil {
		deps.Logger = loggerInstance
	}

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		camunda:      opts.Camunda,
		service:      NewService(deps, workerConfig),
		errorHandler: errors.NewErrorHandler(loggerInstance),
	}, nil
}

// Handle runs one exclusive sync pass per job.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing inspection sync job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	input, err := h.parseInput(job)
	if err != nil {
		return h.fail(ctx, client, job, err)
	}

	result, err := h.service.RunExclusive(ctx, RunOptions{DryRun: input.DryRun})
	if err != nil {
		return h.fail(ctx, client, job, err)
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(jobOutput(result))
	if err != nil {
		return fmt.Errorf("failed to create complete job command: %w", err)
	}
	if _, err := request.Send(ctx); err != nil {
		return fmt.Errorf("failed to complete job %d: %w", job.GetKey(), err)
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	return nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
	return nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingError(err)
	}

	input := &Input{}
	if raw, ok := variables["dryRun"]; ok && raw != nil {
		dryRun, ok := raw.(bool)
		if !ok {
			return nil, errors.NewInputParsingError(fmt.Errorf("dryRun must be a boolean, got %T", raw))
		}
		input.DryRun = dryRun
	}
	return input, nil
}

func jobOutput(result *RunResult) map[string]interface{} {
	return map[string]interface{}{
		"syncRunId":     result.RunID,
		"syncStatus":    string(result.Status),
		"syncDryRun":    result.DryRun,
		"syncWatermark": result.Watermark.At.Format(time.RFC3339),
		"syncNew":       result.ReportsNew,
		"syncBuilt":     len(result.Records),
		"syncRejected":  len(result.Rejections),
		"syncCreated":   result.Created(),
		"syncFailed":    result.Failed(),
	}
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", map[string]interface{}{
			"worker": TaskType,
		})
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	h.jobWorker = camunda.NewWorker(
		h.camunda.GetClient(),
		TaskType,
		h.config.MaxJobsActive,
		h.config.Timeout,
		h,
		h.logger,
	)
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Stop()
		h.jobWorker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return nil
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

// Service exposes the underlying service for the one-shot CLI mode.
func (h *Handler) Service() *Service {
	return h.service
}

func (h *Handler) GetConfig() *Config {
	return h.config
}
