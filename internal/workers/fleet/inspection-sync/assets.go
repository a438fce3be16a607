package inspectionsync

import (
	"context"
	"strings"

	"inspection-sync/internal/common/errors"
	"inspection-sync/internal/common/mms"
	"inspection-sync/internal/models"
)

// LabelClassifier maps an asset-type label to a truck or trailer kind by marker substrings.
type LabelClassifier struct {
	truckMarkers   []string
	trailerMarkers []string
}

func NewLabelClassifier(truckMarkers, trailerMarkers []string) *LabelClassifier {
	return &LabelClassifier{truckMarkers: truckMarkers, trailerMarkers: trailerMarkers}
}

// Classify returns the kind of label. Truck markers are checked first.
func (c *LabelClassifier) Classify(label string) (models.AssetKind, bool) {
	for _, m := range c.truckMarkers {
		if m != "" && strings.Contains(label, m) {
			return models.AssetKindTruck, true
		}
	}
	for _, m := range c.trailerMarkers {
		if m != "" && strings.Contains(label, m) {
			return models.AssetKindTrailer, true
		}
	}
	return "", false
}

// AssetDirectory is the per-run snapshot of downstream trucks and trailers, in load order.
type AssetDirectory struct {
	assets []models.AssetRecord
	byID   map[string]models.AssetKind
}

func NewAssetDirectory(assets []models.AssetRecord) *AssetDirectory {
	byID := make(map[string]models.AssetKind, len(assets))
	for _, a := range assets {
		byID[a.DownstreamID] = a.Kind
	}
	return &AssetDirectory{assets: assets, byID: byID}
}

func (d *AssetDirectory) Len() int {
	return len(d.assets)
}

// Resolve finds the asset for identifier. See MatchAsset for the matching rule.
func (d *AssetDirectory) Resolve(identifier string) (models.AssetRecord, bool) {
	return MatchAsset(d.assets, identifier)
}

// KindOf reports the kind of a downstream asset by id.
func (d *AssetDirectory) KindOf(downstreamID string) (models.AssetKind, bool) {
	kind, ok := d.byID[downstreamID]
	return kind, ok
}

// MatchAsset returns the first asset, in slice order, whose display label
// contains identifier. Containment is loose: "C1" matches a label holding
// "C19" if that asset comes first. An empty identifier never matches.
func MatchAsset(assets []models.AssetRecord, identifier string) (models.AssetRecord, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.AssetRecord{}, false
	}
	for _, a := range assets {
		if strings.Contains(a.DisplayLabel, identifier) {
			return a, true
		}
	}
	return models.AssetRecord{}, false
}

// AssetLoader pages the Assets collection into an AssetDirectory.
type AssetLoader struct {
	store      EntityStore
	classifier *LabelClassifier
	pageSize   int
}

func NewAssetLoader(store EntityStore, classifier *LabelClassifier, pageSize int) *AssetLoader {
	return &AssetLoader{store: store, classifier: classifier, pageSize: pageSize}
}

// Load reads every page reported by totalPages. Rows whose asset type is
// neither truck nor trailer are skipped.
func (l *AssetLoader) Load(ctx context.Context) (*AssetDirectory, error) {
	query := mms.SearchRequest{
		Select: mms.Select("c_description", "c_assettype"),
		Filter: &mms.Filter{And: []mms.Condition{
			{Name: "isDeleted", Op: "isfalse"},
		}},
		Order:       []mms.Order{{Name: "c_serialnumber", Desc: true}},
		PageSize:    l.pageSize,
		FkExpansion: true,
	}

	var assets []models.AssetRecord
	for page := 0; ; page++ {
		query.Page = page
		resp, err := l.store.Search(ctx, mms.CollectionAssets, query)
		if err != nil {
			return nil, errors.NewDownstreamQueryError(mms.CollectionAssets, err)
		}

		for _, row := range resp.Data {
			assetType, ok := row.Ref("c_assettype")
			if !ok {
				continue
			}
			kind, ok := l.classifier.Classify(assetType.Title)
			if !ok {
				continue
			}
			assets = append(assets, models.AssetRecord{
				DownstreamID: row.String("id"),
				DisplayLabel: row.String("c_description"),
				Kind:         kind,
			})
		}

		if page+1 >= resp.TotalPages || len(resp.Data) == 0 {
			break
		}
	}

	return NewAssetDirectory(assets), nil
}
