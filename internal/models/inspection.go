// internal/models/inspection.go
package models

import "time"

// Severity is the upstream defect tag. Only major and minor defects are actionable.
type Severity string

const (
	SeverityMajor Severity = "major"
	SeverityMinor Severity = "minor"
)

// InspectionKind distinguishes pre-trip from post-trip inspections.
type InspectionKind string

const (
	InspectionPreTrip  InspectionKind = "pre_trip"
	InspectionPostTrip InspectionKind = "post_trip"
)

// Label returns the human readable form used in work item details.
func (k InspectionKind) Label() string {
	if k == InspectionPostTrip {
		return "Post Trip"
	}
	return "Pre Trip"
}

type Driver struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// VehicleRef identifies a truck by its fleet number (e.g. "C19").
type VehicleRef struct {
	Number string `json:"number"`
	Make   string `json:"make,omitempty"`
}

// TrailerRef identifies a trailer by its asset name.
type TrailerRef struct {
	Name string `json:"name"`
	Make string `json:"make,omitempty"`
}

type Defect struct {
	PartID   int64    `json:"partId"`
	Category string   `json:"category"`
	Notes    string   `json:"notes"`
	Severity Severity `json:"severity"`
}

// InspectionReport is a normalized upstream report holding at least one actionable defect.
// At most one of Vehicle and Trailer is set; Vehicle wins when the feed sends both.
type InspectionReport struct {
	ID         int64          `json:"id"`
	OccurredAt time.Time      `json:"occurredAt"`
	Location   string         `json:"location,omitempty"`
	Vehicle    *VehicleRef    `json:"vehicle,omitempty"`
	Trailer    *TrailerRef    `json:"trailer,omitempty"`
	Driver     *Driver        `json:"driver,omitempty"`
	Kind       InspectionKind `json:"inspectionKind"`
	Odometer   float64        `json:"odometer,omitempty"`
	Defects    []Defect       `json:"defects"`
}

// HasMajorDefect reports whether any defect blocks the vehicle.
func (r *InspectionReport) HasMajorDefect() bool {
	for _, d := range r.Defects {
		if d.Severity == SeverityMajor {
			return true
		}
	}
	return false
}

// AssetIdentifier returns the free-text identifier used for asset matching
// and the kind of reference it came from.
func (r *InspectionReport) AssetIdentifier() (string, AssetKind) {
	switch {
	case r.Vehicle != nil:
		return r.Vehicle.Number, AssetKindTruck
	case r.Trailer != nil:
		return r.Trailer.Name, AssetKindTrailer
	default:
		return "", ""
	}
}
