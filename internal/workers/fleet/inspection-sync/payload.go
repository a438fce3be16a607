package inspectionsync

import (
	"fmt"
	"strings"

	"inspection-sync/internal/common/config"
	"inspection-sync/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PayloadBuilder turns a classified report and its asset into an OutboundWorkRecord.
type PayloadBuilder struct {
	sentinels config.SentinelConfig
	title     cases.Caser
}

func NewPayloadBuilder(sentinels config.SentinelConfig) *PayloadBuilder {
	return &PayloadBuilder{
		sentinels: sentinels,
		title:     cases.Title(language.English),
	}
}

// Build returns the record for report, or an error naming the missing field.
// The caller maps errors to PAYLOAD_BUILD_FAILED.
func (b *PayloadBuilder) Build(report models.InspectionReport, asset models.AssetRecord) (*models.OutboundWorkRecord, error) {
	if report.Driver == nil {
		return nil, fmt.Errorf("report has no driver")
	}
	requester, err := b.requesterTitle(report.Driver)
	if err != nil {
		return nil, err
	}
	assetRef, err := b.assetRef(report, asset)
	if err != nil {
		return nil, err
	}

	class := Classify(report)
	description := RenderDescription(class.Ordered)
	details := RenderDetails(b.sentinels.DetailsHeader, report.Kind, class.Ordered, b.sentinels.NotesPlaceholder)
	createdBy := models.EntityRef{
		Entity: b.sentinels.Requester.Entity,
		ID:     b.sentinels.Requester.ID,
		Number: b.sentinels.Requester.Number,
		Title:  requester,
	}

	record := &models.OutboundWorkRecord{
		Variant:    class.Variant,
		ReportID:   report.ID,
		OccurredAt: report.OccurredAt,
	}

	switch class.Variant {
	case models.VariantWorkOrder:
		record.WorkOrder = &models.WorkOrderPayload{
			OccurredOn: report.OccurredAt,
			Properties: models.WorkOrderProperties{
				AssetID:        assetRef,
				Description:    description,
				Details:        details,
				CreatedBy:      createdBy,
				Priority:       sentinelRef(b.sentinels.Priority),
				JobStatus:      sentinelRef(b.sentinels.JobStatusNew),
				WorkOrderType:  sentinelRef(b.sentinels.WorkOrderType),
				RequesterEmail: report.Driver.Email,
			},
		}
	default:
		record.Request = &models.WorkOrderRequestPayload{
			FormID: b.sentinels.RequestFormID,
			Properties: models.WorkOrderRequestProperties{
				RequestedOn:    report.OccurredAt,
				AssetID:        assetRef,
				Description:    description,
				Details:        details,
				CreatedBy:      createdBy,
				RequesterEmail: report.Driver.Email,
			},
		}
	}

	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

// requesterTitle renders "Last First" title-cased with commas removed.
func (b *PayloadBuilder) requesterTitle(d *models.Driver) (string, error) {
	last := strings.TrimSpace(strings.ReplaceAll(d.LastName, ",", ""))
	first := strings.TrimSpace(strings.ReplaceAll(d.FirstName, ",", ""))
	if last == "" || first == "" {
		return "", fmt.Errorf("driver name is incomplete")
	}
	return b.title.String(last) + " " + b.title.String(first), nil
}

func (b *PayloadBuilder) assetRef(report models.InspectionReport, asset models.AssetRecord) (models.EntityRef, error) {
	// Truck makes are title-cased; trailer makes are sent as reported.
	var label, maker string
	switch {
	case report.Vehicle != nil:
		label, maker = report.Vehicle.Number, b.title.String(report.Vehicle.Make)
	case report.Trailer != nil:
		label, maker = report.Trailer.Name, report.Trailer.Make
	default:
		return models.EntityRef{}, fmt.Errorf("report has neither vehicle nor trailer")
	}
	if asset.DownstreamID == "" {
		return models.EntityRef{}, fmt.Errorf("asset for %q has no downstream id", label)
	}
	return models.EntityRef{
		Entity:      "Assets",
		ID:          asset.DownstreamID,
		Title:       label,
		Subtitle:    label,
		Subsubtitle: maker,
	}, nil
}

func sentinelRef(c config.EntityRefConfig) models.EntityRef {
	return models.EntityRef{
		Entity: c.Entity,
		ID:     c.ID,
		Number: c.Number,
		Title:  c.Title,
	}
}
