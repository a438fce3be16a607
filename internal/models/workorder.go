// internal/models/workorder.go
package models

import "time"

// RecordVariant is the downstream record type a report is routed to.
type RecordVariant string

const (
	VariantWorkOrder        RecordVariant = "WorkOrder"
	VariantWorkOrderRequest RecordVariant = "WorkOrderRequest"
)

// EntityRef is the MMS foreign-key reference shape ({entity, id, number, title}).
type EntityRef struct {
	Entity      string  `json:"entity"`
	ID          string  `json:"id"`
	IsDeleted   bool    `json:"isDeleted"`
	Number      int     `json:"number"`
	Title       string  `json:"title"`
	Subtitle    string  `json:"subtitle,omitempty"`
	Subsubtitle string  `json:"subsubtitle,omitempty"`
	Image       *string `json:"image,omitempty"`
}

type WorkOrderProperties struct {
	AssetID        EntityRef `json:"assetId"`
	Description    string    `json:"description"`
	Details        string    `json:"details"`
	CreatedBy      EntityRef `json:"createdBy"`
	Priority       EntityRef `json:"c_priority"`
	JobStatus      EntityRef `json:"c_jobstatus"`
	WorkOrderType  EntityRef `json:"c_workordertype"`
	RequesterEmail string    `json:"c_requesteremail,omitempty"`
}

// WorkOrderPayload is the create body for the WorkOrders collection.
type WorkOrderPayload struct {
	OccurredOn time.Time           `json:"occurredOn"`
	Properties WorkOrderProperties `json:"properties"`
}

type WorkOrderRequestProperties struct {
	RequestedOn    time.Time `json:"requestedOn"`
	AssetID        EntityRef `json:"assetId"`
	Description    string    `json:"description"`
	Details        string    `json:"details"`
	CreatedBy      EntityRef `json:"createdBy"`
	RequesterEmail string    `json:"c_requesteremail,omitempty"`
}

// WorkOrderRequestPayload is the create body for the WorkOrdersRequests collection.
type WorkOrderRequestPayload struct {
	FormID     string                     `json:"formId"`
	Properties WorkOrderRequestProperties `json:"properties"`
}

// OutboundWorkRecord is the tagged union handed to the dispatcher.
// Exactly one of WorkOrder and Request is set, matching Variant.
type OutboundWorkRecord struct {
	Variant    RecordVariant            `json:"variant"`
	ReportID   int64                    `json:"reportId"`
	OccurredAt time.Time                `json:"occurredAt"`
	WorkOrder  *WorkOrderPayload        `json:"workOrder,omitempty"`
	Request    *WorkOrderRequestPayload `json:"workOrderRequest,omitempty"`
}

// Payload returns the body to send for the record's variant, or nil when it is missing.
func (r *OutboundWorkRecord) Payload() interface{} {
	if r.Variant == VariantWorkOrder {
		if r.WorkOrder == nil {
			return nil
		}
		return r.WorkOrder
	}
	if r.Request == nil {
		return nil
	}
	return r.Request
}

// Watermark is the latest time this system is known to have created a downstream record.
type Watermark struct {
	At      time.Time `json:"at"`
	MajorAt time.Time `json:"majorAt"`
	MinorAt time.Time `json:"minorAt"`
}

// Admits reports whether a report at t is newer than the watermark. Ties are already processed.
func (w Watermark) Admits(t time.Time) bool {
	return t.After(w.At)
}
