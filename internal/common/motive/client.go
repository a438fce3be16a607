// internal/common/motive/client.go
package motive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	commonhttp "inspection-sync/internal/common/http"
)

const defaultBaseURL = "https://api.keeptruckin.com/v2"

// Client reads the Motive inspection-report feed.
type Client struct {
	apiKey     string
	baseURL    string
	perPage    int
	httpClient *commonhttp.Client
}

// RawDriver is the driver block of an inspection report.
type RawDriver struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type RawVehicle struct {
	Number string `json:"number"`
	Make   string `json:"make"`
}

// RawAsset is a trailer attached to the inspection.
type RawAsset struct {
	Name string `json:"name"`
	Make string `json:"make"`
}

// RawPart is one inspected part. Type carries the severity tag ("major", "minor", ...).
type RawPart struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
	Type     string `json:"type"`
}

type RawInspectionReport struct {
	ID             int64       `json:"id"`
	Time           time.Time   `json:"time"`
	Location       string      `json:"location"`
	Vehicle        *RawVehicle `json:"vehicle"`
	Asset          *RawAsset   `json:"asset"`
	Driver         *RawDriver  `json:"driver"`
	InspectionType string      `json:"inspection_type"`
	Odometer       float64     `json:"odometer"`
	InspectedParts []RawPart   `json:"inspected_parts"`
}

// ReportEnvelope is the feed's wrapper around each report.
type ReportEnvelope struct {
	InspectionReport RawInspectionReport `json:"inspection_report"`
}

// Page is one page of the feed, newest report first.
type Page struct {
	InspectionReports []ReportEnvelope `json:"inspection_reports"`
	Pagination struct {
		PerPage int `json:"per_page"`
		PageNo  int `json:"page_no"`
		Total   int `json:"total"`
	} `json:"pagination"`
}

// NewPage wraps reports in the feed envelope.
func NewPage(reports ...RawInspectionReport) *Page {
	p := &Page{InspectionReports: make([]ReportEnvelope, 0, len(reports))}
	for _, r := range reports {
		p.InspectionReports = append(p.InspectionReports, ReportEnvelope{InspectionReport: r})
	}
	return p
}

// Reports flattens the envelope.
func (p *Page) Reports() []RawInspectionReport {
	if p == nil {
		return nil
	}
	out := make([]RawInspectionReport, 0, len(p.InspectionReports))
	for _, r := range p.InspectionReports {
		out = append(out, r.InspectionReport)
	}
	return out
}

func NewClient(baseURL, apiKey string, perPage int, httpClient *commonhttp.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if perPage <= 0 {
		perPage = 50
	}
	if httpClient == nil {
		httpClient = commonhttp.NewClient(30 * time.Second)
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		perPage:    perPage,
		httpClient: httpClient,
	}
}

// FetchInspectionPage retrieves page pageNo (1-based) of the inspection feed.
func (c *Client) FetchInspectionPage(ctx context.Context, pageNo int) (*Page, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page_no", strconv.Itoa(pageNo))
	endpoint := fmt.Sprintf("%s/inspection_reports?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("failed to fetch inspection page %d (status %d): %s", pageNo, resp.StatusCode, string(body))
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode inspection page %d: %w", pageNo, err)
	}

	return &page, nil
}
