package inspectionsync

import (
	"context"

	"inspection-sync/internal/common/errors"
	"inspection-sync/internal/common/logger"
	"inspection-sync/internal/common/metrics"
	"inspection-sync/internal/common/mms"
	"inspection-sync/internal/models"
)

// CollectionFor maps a record variant to its downstream collection.
func CollectionFor(v models.RecordVariant) string {
	if v == models.VariantWorkOrder {
		return mms.CollectionWorkOrders
	}
	return mms.CollectionWorkOrdersRequests
}

// Dispatcher sends each record with one create call. Failures are recorded
// per record and never retried here.
type Dispatcher struct {
	store  EntityStore
	logger logger.Logger
}

func NewDispatcher(store EntityStore, log logger.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, records []models.OutboundWorkRecord) []DispatchOutcome {
	outcomes := make([]DispatchOutcome, 0, len(records))
	for i := range records {
		record := &records[i]
		collection := CollectionFor(record.Variant)
		outcome := DispatchOutcome{
			ReportID:   record.ReportID,
			Variant:    record.Variant,
			Collection: collection,
		}

		id, err := d.store.Create(ctx, collection, record.Payload())
		if err != nil {
			stdErr := errors.NewDownstreamCreateError(collection, record.ReportID, err)
			outcome.Err = stdErr
			outcome.ErrorCode = stdErr.Code
			outcome.Error = stdErr.Details
			metrics.SyncDispatches.WithLabelValues(string(record.Variant), "failed").Inc()
			d.logger.Error("Failed to create downstream record", map[string]interface{}{
				"reportId":   record.ReportID,
				"collection": collection,
				"error":      err.Error(),
			})
		} else {
			outcome.RecordID = id
			metrics.SyncDispatches.WithLabelValues(string(record.Variant), "created").Inc()
			d.logger.Info("Created downstream record", map[string]interface{}{
				"reportId":   record.ReportID,
				"collection": collection,
				"recordId":   id,
			})
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
