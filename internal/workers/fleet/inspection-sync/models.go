package inspectionsync

import (
	"context"
	"time"

	"inspection-sync/internal/common/errors"
	"inspection-sync/internal/common/mms"
	"inspection-sync/internal/common/motive"
	"inspection-sync/internal/models"
)

// InspectionFeed is the upstream page source.
type InspectionFeed interface {
	FetchInspectionPage(ctx context.Context, pageNo int) (*motive.Page, error)
}

// EntityStore is the downstream search and create API.
type EntityStore interface {
	Search(ctx context.Context, collection string, query mms.SearchRequest) (*mms.SearchResponse, error)
	Create(ctx context.Context, collection string, payload interface{}) (string, error)
}

// RunStatus summarises how a pass ended.
type RunStatus string

const (
	RunStatusOK      RunStatus = "ok"
	RunStatusPartial RunStatus = "partial"
	RunStatusAborted RunStatus = "aborted"
	RunStatusLocked  RunStatus = "locked"
)

type RunOptions struct {
	DryRun bool
}

// Rejection is a report skipped before dispatch.
type Rejection struct {
	ReportID int64            `json:"reportId"`
	Code     errors.ErrorCode `json:"code"`
	Reason   string           `json:"reason"`
}

// DispatchOutcome is the result of one create call.
type DispatchOutcome struct {
	ReportID   int64                `json:"reportId"`
	Variant    models.RecordVariant `json:"variant"`
	Collection string               `json:"collection"`
	RecordID   string               `json:"recordId,omitempty"`
	Err        error                `json:"-"`
	ErrorCode  errors.ErrorCode     `json:"errorCode,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func (o DispatchOutcome) Succeeded() bool {
	return o.Err == nil
}

type RunResult struct {
	RunID      string           `json:"runId"`
	DryRun     bool             `json:"dryRun"`
	Status     RunStatus        `json:"status"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Watermark  models.Watermark `json:"watermark"`

	PagesFetched     int `json:"pagesFetched"`
	ReportsExtracted int `json:"reportsExtracted"`
	ReportsNew       int `json:"reportsNew"`
	AssetsLoaded     int `json:"assetsLoaded"`

	Records    []models.OutboundWorkRecord `json:"records"`
	Rejections []Rejection                 `json:"rejections"`
	Outcomes   []DispatchOutcome           `json:"outcomes"`

	// AbortErr is set when the pass stopped before dispatch.
	AbortErr error `json:"-"`
}

// Created counts successful create calls.
func (r *RunResult) Created() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts failed create calls.
func (r *RunResult) Failed() int {
	return len(r.Outcomes) - r.Created()
}

func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
