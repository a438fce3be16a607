package inspectionsync

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"inspection-sync/internal/common/database"
)

// RunSink receives the result of every finished pass. Sinks are best-effort:
// their errors are logged and never change the pass outcome.
type RunSink interface {
	Name() string
	Publish(ctx context.Context, result *RunResult) error
}

const historySchema = `
CREATE TABLE IF NOT EXISTS inspection_sync_runs (
	run_id        UUID PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL,
	dry_run       BOOLEAN NOT NULL,
	watermark     TIMESTAMPTZ NOT NULL,
	pages_fetched INTEGER NOT NULL,
	reports_new   INTEGER NOT NULL,
	created       INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	rejected      INTEGER NOT NULL,
	abort_reason  TEXT
);
CREATE TABLE IF NOT EXISTS inspection_sync_outcomes (
	run_id     UUID NOT NULL REFERENCES inspection_sync_runs(run_id),
	report_id  BIGINT NOT NULL,
	collection TEXT NOT NULL,
	record_id  TEXT,
	error_code TEXT,
	PRIMARY KEY (run_id, report_id)
);`

const insertRunSQL = `INSERT INTO inspection_sync_runs
	(run_id, started_at, finished_at, status, dry_run, watermark, pages_fetched, reports_new, created, failed, rejected, abort_reason)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const insertOutcomeSQL = `INSERT INTO inspection_sync_outcomes
	(run_id, report_id, collection, record_id, error_code)
	VALUES ($1, $2, $3, $4, $5)`

const lastRunSQL = `SELECT run_id, finished_at, status, dry_run, watermark, created, failed, rejected
	FROM inspection_sync_runs ORDER BY finished_at DESC LIMIT 1`

// RunSummary is one row of inspection_sync_runs.
type RunSummary struct {
	RunID      string    `json:"runId"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     RunStatus `json:"status"`
	DryRun     bool      `json:"dryRun"`
	Watermark  time.Time `json:"watermark"`
	Created    int       `json:"created"`
	Failed     int       `json:"failed"`
	Rejected   int       `json:"rejected"`
}

// RunHistory stores pass summaries and per-record outcomes in Postgres.
type RunHistory struct {
	db *database.PostgresClient
}

func NewRunHistory(db *database.PostgresClient) *RunHistory {
	return &RunHistory{db: db}
}

func (h *RunHistory) Name() string { return "history" }

func (h *RunHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("failed to create history tables: %w", err)
	}
	return nil
}

func (h *RunHistory) Publish(ctx context.Context, result *RunResult) error {
	return h.db.WithTx(ctx, func(tx *sql.Tx) error {
		var abortReason sql.NullString
		if result.AbortErr != nil {
			abortReason = sql.NullString{String: result.AbortErr.Error(), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, insertRunSQL,
			result.RunID, result.StartedAt, result.FinishedAt, string(result.Status), result.DryRun,
			result.Watermark.At, result.PagesFetched, result.ReportsNew,
			result.Created(), result.Failed(), len(result.Rejections), abortReason,
		); err != nil {
			return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
		}

		for _, o := range result.Outcomes {
			if _, err := tx.ExecContext(ctx, insertOutcomeSQL,
				result.RunID, o.ReportID, o.Collection, nullString(o.RecordID), nullString(string(o.ErrorCode)),
			); err != nil {
				return fmt.Errorf("failed to insert outcome for report %d: %w", o.ReportID, err)
			}
		}
		return nil
	})
}

// LastRun returns the most recently finished pass, or nil when none is recorded.
func (h *RunHistory) LastRun(ctx context.Context) (*RunSummary, error) {
	var (
		summary RunSummary
		status  string
	)
	err := h.db.QueryRow(ctx, lastRunSQL).Scan(
		&summary.RunID, &summary.FinishedAt, &status, &summary.DryRun,
		&summary.Watermark, &summary.Created, &summary.Failed, &summary.Rejected,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}
	summary.Status = RunStatus(status)
	return &summary, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
