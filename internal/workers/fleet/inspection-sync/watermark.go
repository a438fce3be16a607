package inspectionsync

import (
	"context"
	"fmt"
	"time"

	"inspection-sync/internal/common/errors"
	"inspection-sync/internal/common/logger"
	"inspection-sync/internal/common/mms"
	"inspection-sync/internal/models"
)

// AssetKindFunc reports whether an expanded asset reference is a truck or trailer.
type AssetKindFunc func(ref mms.Ref) (models.AssetKind, bool)

// WatermarkResolver finds the newest downstream record this system created.
type WatermarkResolver struct {
	store        EntityStore
	assetKind    AssetKindFunc
	sentinelType string
	pageSize     int
	maxPages     int
	floor        time.Time
	logger       logger.Logger
}

func NewWatermarkResolver(store EntityStore, assetKind AssetKindFunc, cfg *Config, log logger.Logger) *WatermarkResolver {
	return &WatermarkResolver{
		store:        store,
		assetKind:    assetKind,
		sentinelType: cfg.Sentinels.WorkOrderType.Title,
		pageSize:     cfg.WatermarkPageSize,
		maxPages:     cfg.MaxWatermarkPages,
		floor:        cfg.epochFloor(),
		logger:       log,
	}
}

// Resolve returns max(t_major, t_minor). Either side falls back to the epoch
// floor when no record of ours exists.
func (w *WatermarkResolver) Resolve(ctx context.Context) (models.Watermark, error) {
	major, err := w.latestWorkOrder(ctx)
	if err != nil {
		return models.Watermark{}, err
	}
	minor, err := w.latestRequest(ctx)
	if err != nil {
		return models.Watermark{}, err
	}

	wm := models.Watermark{At: major, MajorAt: major, MinorAt: minor}
	if minor.After(major) {
		wm.At = minor
	}

	w.logger.Info("Resolved watermark", map[string]interface{}{
		"watermark": wm.At.Format(time.RFC3339),
		"majorAt":   major.Format(time.RFC3339),
		"minorAt":   minor.Format(time.RFC3339),
	})
	return wm, nil
}

// latestWorkOrder reads the highest-numbered live WorkOrder carrying the sentinel type.
func (w *WatermarkResolver) latestWorkOrder(ctx context.Context) (time.Time, error) {
	resp, err := w.store.Search(ctx, mms.CollectionWorkOrders, mms.SearchRequest{
		Select: mms.Select("openedOn", "c_workordertype"),
		Filter: &mms.Filter{And: []mms.Condition{
			{Name: "c_workordertype", Op: "eq", Value: w.sentinelType},
			{Name: "isDeleted", Op: "isfalse"},
		}},
		Order:       []mms.Order{{Name: "number", Desc: true}},
		PageSize:    1,
		Page:        0,
		FkExpansion: true,
	})
	if err != nil {
		return time.Time{}, errors.NewDownstreamQueryError(mms.CollectionWorkOrders, err)
	}
	if len(resp.Data) == 0 {
		w.logger.Info("No prior work order found, using epoch floor", map[string]interface{}{
			"workOrderType": w.sentinelType,
		})
		return w.floor, nil
	}

	t, err := resp.Data[0].Time("openedOn")
	if err != nil {
		return time.Time{}, errors.NewDownstreamQueryError(mms.CollectionWorkOrders, fmt.Errorf("record %s: %w", resp.Data[0].String("id"), err))
	}
	return t.UTC(), nil
}

// latestRequest scans WorkOrdersRequests newest-first for the first one
// attached to a truck or trailer. Requests on other assets were not created here.
func (w *WatermarkResolver) latestRequest(ctx context.Context) (time.Time, error) {
	query := mms.SearchRequest{
		Select: mms.Select("requestedOn", "assetId"),
		Filter: &mms.Filter{And: []mms.Condition{
			{Name: "isDeleted", Op: "isfalse"},
		}},
		Order:       []mms.Order{{Name: "number", Desc: true}},
		PageSize:    w.pageSize,
		FkExpansion: true,
	}

	for page := 0; page < w.maxPages; page++ {
		query.Page = page
		resp, err := w.store.Search(ctx, mms.CollectionWorkOrdersRequests, query)
		if err != nil {
			return time.Time{}, errors.NewDownstreamQueryError(mms.CollectionWorkOrdersRequests, err)
		}

		for _, row := range resp.Data {
			ref, ok := row.Ref("assetId")
			if !ok {
				continue
			}
			if _, ok := w.assetKind(ref); !ok {
				continue
			}
			t, err := row.Time("requestedOn")
			if err != nil {
				return time.Time{}, errors.NewDownstreamQueryError(mms.CollectionWorkOrdersRequests, fmt.Errorf("record %s: %w", row.String("id"), err))
			}
			return t.UTC(), nil
		}

		if len(resp.Data) == 0 || page+1 >= resp.TotalPages {
			break
		}
	}

	w.logger.Info("No prior fleet work order request found, using epoch floor", map[string]interface{}{
		"maxPages": w.maxPages,
	})
	return w.floor, nil
}

// FilterNew keeps reports strictly newer than the watermark.
func FilterNew(reports []models.InspectionReport, wm models.Watermark) []models.InspectionReport {
	out := make([]models.InspectionReport, 0, len(reports))
	for _, r := range reports {
		if wm.Admits(r.OccurredAt) {
			out = append(out, r)
		}
	}
	return out
}

// DirectoryAssetKind classifies a reference by directory membership, falling
// back to the label markers on its title.
func DirectoryAssetKind(dir *AssetDirectory, classifier *LabelClassifier) AssetKindFunc {
	return func(ref mms.Ref) (models.AssetKind, bool) {
		if kind, ok := dir.KindOf(ref.ID); ok {
			return kind, true
		}
		return classifier.Classify(ref.Title)
	}
}
