package models

type AssetKind string

const (
	AssetKindTruck   AssetKind = "truck"
	AssetKindTrailer AssetKind = "trailer"
)

// AssetRecord is a downstream truck or trailer asset, loaded read-only once per run.
type AssetRecord struct {
	DownstreamID string    `json:"downstreamId"`
	DisplayLabel string    `json:"displayLabel"`
	Kind         AssetKind `json:"assetKind"`
}
