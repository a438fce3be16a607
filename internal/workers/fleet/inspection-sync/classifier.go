package inspectionsync

import (
	"fmt"
	"html"
	"strings"

	"inspection-sync/internal/models"
)

// Classification is the routing decision for one report.
type Classification struct {
	Variant models.RecordVariant
	// Ordered holds majors then minors, each group in upstream order.
	Ordered []models.Defect
}

// Classify partitions defects by severity and picks the record variant.
// Any major defect routes to a WorkOrder.
func Classify(report models.InspectionReport) Classification {
	var majors, minors []models.Defect
	for _, d := range report.Defects {
		if d.Severity == models.SeverityMajor {
			majors = append(majors, d)
		} else {
			minors = append(minors, d)
		}
	}

	c := Classification{
		Variant: models.VariantWorkOrderRequest,
		Ordered: append(majors, minors...),
	}
	if report.HasMajorDefect() {
		c.Variant = models.VariantWorkOrder
	}
	return c
}

// RenderDescription numbers categories as "1. A, 2. B". A single defect renders bare.
func RenderDescription(ordered []models.Defect) string {
	if len(ordered) == 1 {
		return ordered[0].Category
	}
	parts := make([]string, len(ordered))
	for i, d := range ordered {
		parts[i] = fmt.Sprintf("%d. %s", i+1, d.Category)
	}
	return strings.Join(parts, ", ")
}

// RenderDetails produces the HTML details block: a heading paragraph naming
// the inspection kind, then one paragraph per defect.
func RenderDetails(header string, kind models.InspectionKind, ordered []models.Defect, placeholder string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s %s Inspection</p>", html.EscapeString(header), kind.Label())
	for _, d := range ordered {
		notes := strings.TrimSpace(d.Notes)
		if notes == "" {
			notes = placeholder
		}
		fmt.Fprintf(&b, "<p>%s Issue: %s</p>", severityLabel(d.Severity), html.EscapeString(notes))
	}
	return b.String()
}

func severityLabel(s models.Severity) string {
	if s == models.SeverityMajor {
		return "Major"
	}
	return "Minor"
}
