package inspectionsync

import (
	"context"
	"fmt"
	"time"

	"inspection-sync/internal/models"
)

// DocumentIndexer writes one JSON document by id.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// RecordIndex writes one searchable document per handled report.
type RecordIndex struct {
	indexer DocumentIndexer
	index   string
}

// recordDocument is the indexed view of a report's fate in a pass.
type recordDocument struct {
	RunID      string               `json:"runId"`
	ReportID   int64                `json:"reportId"`
	OccurredAt time.Time            `json:"occurredAt"`
	Variant    models.RecordVariant `json:"variant,omitempty"`
	Collection string               `json:"collection,omitempty"`
	RecordID   string               `json:"recordId,omitempty"`
	Outcome    string               `json:"outcome"`
	ErrorCode  string               `json:"errorCode,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	DryRun     bool                 `json:"dryRun"`
	IndexedAt  time.Time            `json:"indexedAt"`
}

func NewRecordIndex(indexer DocumentIndexer, index string) *RecordIndex {
	return &RecordIndex{indexer: indexer, index: index}
}

func (i *RecordIndex) Name() string { return "index" }

func (i *RecordIndex) Publish(ctx context.Context, result *RunResult) error {
	now := time.Now().UTC()
	occurred := make(map[int64]time.Time, len(result.Records))
	for _, r := range result.Records {
		occurred[r.ReportID] = r.OccurredAt
	}

	var docs []recordDocument
	for _, rej := range result.Rejections {
		docs = append(docs, recordDocument{
			ReportID:  rej.ReportID,
			Outcome:   "rejected",
			ErrorCode: string(rej.Code),
			Reason:    rej.Reason,
		})
	}
	if result.DryRun {
		for _, r := range result.Records {
			docs = append(docs, recordDocument{
				ReportID:   r.ReportID,
				Variant:    r.Variant,
				Collection: CollectionFor(r.Variant),
				Outcome:    "built",
			})
		}
	}
	for _, o := range result.Outcomes {
		doc := recordDocument{
			ReportID:   o.ReportID,
			Variant:    o.Variant,
			Collection: o.Collection,
			RecordID:   o.RecordID,
			Outcome:    "created",
		}
		if !o.Succeeded() {
			doc.Outcome = "failed"
			doc.ErrorCode = string(o.ErrorCode)
			doc.Reason = o.Error
		}
		docs = append(docs, doc)
	}

	for _, doc := range docs {
		doc.RunID = result.RunID
		doc.DryRun = result.DryRun
		doc.IndexedAt = now
		doc.OccurredAt = occurred[doc.ReportID]
		id := fmt.Sprintf("%s-%d", result.RunID, doc.ReportID)
		if err := i.indexer.IndexDocument(ctx, i.index, id, doc); err != nil {
			return err
		}
	}
	return nil
}
