package inspectionsync

import (
	"context"
	"strings"
	"time"

	"inspection-sync/internal/common/errors"
	"inspection-sync/internal/common/logger"
	"inspection-sync/internal/common/motive"
	"inspection-sync/internal/models"
)

// ExtractIssues keeps the major and minor defects of each raw report and drops
// reports left with none. Order is preserved.
func ExtractIssues(raw []motive.RawInspectionReport) []models.InspectionReport {
	out := make([]models.InspectionReport, 0, len(raw))
	for _, r := range raw {
		defects := make([]models.Defect, 0, len(r.InspectedParts))
		for _, part := range r.InspectedParts {
			severity, ok := parseSeverity(part.Type)
			if !ok {
				continue
			}
			defects = append(defects, models.Defect{
				PartID:   part.ID,
				Category: part.Category,
				Notes:    part.Notes,
				Severity: severity,
			})
		}
		if len(defects) == 0 {
			continue
		}
		out = append(out, normalizeReport(r, defects))
	}
	return out
}

func parseSeverity(tag string) (models.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "major":
		return models.SeverityMajor, true
	case "minor":
		return models.SeverityMinor, true
	}
	return "", false
}

func normalizeReport(r motive.RawInspectionReport, defects []models.Defect) models.InspectionReport {
	report := models.InspectionReport{
		ID:         r.ID,
		OccurredAt: r.Time.UTC(),
		Location:   r.Location,
		Kind:       models.InspectionPreTrip,
		Odometer:   r.Odometer,
		Defects:    defects,
	}
	if r.InspectionType == string(models.InspectionPostTrip) {
		report.Kind = models.InspectionPostTrip
	}
	if r.Vehicle != nil {
		report.Vehicle = &models.VehicleRef{Number: r.Vehicle.Number, Make: r.Vehicle.Make}
	}
	if r.Asset != nil {
		report.Trailer = &models.TrailerRef{Name: r.Asset.Name, Make: r.Asset.Make}
	}
	if r.Driver != nil {
		report.Driver = &models.Driver{
			FirstName: r.Driver.FirstName,
			LastName:  r.Driver.LastName,
			Email:     r.Driver.Email,
		}
	}
	return report
}

// Poller walks the upstream feed from page 1 until the horizon is crossed.
type Poller struct {
	feed     InspectionFeed
	maxPages int
	lookback time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// PollResult carries the extracted reports plus paging counters.
type PollResult struct {
	Reports      []models.InspectionReport
	PagesFetched int
	RawReports   int
}

func NewPoller(feed InspectionFeed, maxPages int, lookback time.Duration, now func() time.Time, log logger.Logger) *Poller {
	if now == nil {
		now = time.Now
	}
	return &Poller{feed: feed, maxPages: maxPages, lookback: lookback, now: now, logger: log}
}

// Poll fetches pages until one holds a report older than now-lookback, a page
// comes back empty, or maxPages is reached. Reports repeated across pages are
// kept once (first occurrence).
func (p *Poller) Poll(ctx context.Context) (*PollResult, error) {
	horizon := p.now().Add(-p.lookback)
	seen := make(map[int64]struct{})
	result := &PollResult{}

	for pageNo := 1; pageNo <= p.maxPages; pageNo++ {
		page, err := p.feed.FetchInspectionPage(ctx, pageNo)
		if err != nil {
			return nil, errors.NewUpstreamFetchError(pageNo, err)
		}
		result.PagesFetched++
		if page == nil {
			break
		}

		raw := page.Reports()
		if len(raw) == 0 {
			break
		}
		result.RawReports += len(raw)

		for _, report := range ExtractIssues(raw) {
			if _, dup := seen[report.ID]; dup {
				continue
			}
			seen[report.ID] = struct{}{}
			result.Reports = append(result.Reports, report)
		}

		oldest := oldestTime(raw)
		p.logger.Debug("Fetched inspection page", map[string]interface{}{
			"page":    pageNo,
			"reports": len(raw),
			"oldest":  oldest.Format(time.RFC3339),
		})
		if oldest.Before(horizon) {
			break
		}
	}

	return result, nil
}

func oldestTime(raw []motive.RawInspectionReport) time.Time {
	oldest := raw[0].Time
	for _, r := range raw[1:] {
		if r.Time.Before(oldest) {
			oldest = r.Time
		}
	}
	return oldest
}
