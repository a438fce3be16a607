// internal/common/mms/client.go
package mms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	commonhttp "inspection-sync/internal/common/http"
)

// Collection names used by the sync.
const (
	CollectionAssets             = "Assets"
	CollectionWorkOrders         = "WorkOrders"
	CollectionWorkOrdersRequests = "WorkOrdersRequests"
)

// Client talks to the maintenance-management entity API.
type Client struct {
	baseURL    string
	site       string
	cookie     string
	httpClient *commonhttp.Client
}

type Field struct {
	Name string `json:"name"`
}

// Condition is one filter clause, e.g. {name: isDeleted, op: isfalse}.
type Condition struct {
	Name  string      `json:"name"`
	Op    string      `json:"op"`
	Value interface{} `json:"value,omitempty"`
}

type Filter struct {
	And []Condition `json:"and"`
}

type Order struct {
	Name string `json:"name"`
	Desc bool   `json:"desc"`
}

// SearchRequest is the search-paged body. Page is zero-based.
type SearchRequest struct {
	Select      []Field `json:"select"`
	Filter      *Filter `json:"filter,omitempty"`
	Order       []Order `json:"order,omitempty"`
	PageSize    int     `json:"pageSize"`
	Page        int     `json:"page"`
	FkExpansion bool    `json:"fkExpansion"`
}

// Select builds a field list from names.
func Select(names ...string) []Field {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		fields = append(fields, Field{Name: n})
	}
	return fields
}

type SearchResponse struct {
	Data       []Row `json:"data"`
	TotalPages int   `json:"totalPages"`
}

// Row is one entity as returned by search-paged.
type Row map[string]json.RawMessage

// Ref is an expanded foreign key.
type Ref struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// String returns a string field, or "" when absent or not a string.
func (r Row) String(field string) string {
	raw, ok := r[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Time parses an RFC3339 timestamp field.
func (r Row) Time(field string) (time.Time, error) {
	raw, ok := r[field]
	if !ok {
		return time.Time{}, fmt.Errorf("field %s missing", field)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("field %s is not a string: %w", field, err)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", field, err)
	}
	return t, nil
}

// Ref decodes an expanded foreign-key field. ok is false when absent or null.
func (r Row) Ref(field string) (Ref, bool) {
	raw, ok := r[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return Ref{}, false
	}
	var ref Ref
	if err := json.Unmarshal(raw, &ref); err != nil {
		return Ref{}, false
	}
	return ref, true
}

type createResponse struct {
	ID string `json:"id"`
}

func NewClient(baseURL, site, cookie string, httpClient *commonhttp.Client) *Client {
	if httpClient == nil {
		httpClient = commonhttp.NewClient(30 * time.Second)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		site:       site,
		cookie:     cookie,
		httpClient: httpClient,
	}
}

// Search runs one search-paged query against collection.
func (c *Client) Search(ctx context.Context, collection string, query SearchRequest) (*SearchResponse, error) {
	url := fmt.Sprintf("%s/api/entities/%s/%s/search-paged", c.baseURL, c.site, collection)

	body, status, err := c.post(ctx, url, query)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to search %s (status %d): %s", collection, status, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// Create posts one record and returns the new record's id when the API reports one.
func (c *Client) Create(ctx context.Context, collection string, payload interface{}) (string, error) {
	url := fmt.Sprintf("%s/api/entities/%s/%s", c.baseURL, c.site, collection)

	body, status, err := c.post(ctx, url, payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("failed to create %s record (status %d): %s", collection, status, string(body))
	}

	var created createResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			return "", fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return created.ID, nil
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) ([]byte, int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
