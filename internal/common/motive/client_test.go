package motive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `{
  "inspection_reports": [
    {"inspection_report": {
      "id": 101,
      "time": "2024-05-02T14:30:00Z",
      "location": "Yard 3",
      "vehicle": {"number": "T-42", "make": "freightliner"},
      "asset": null,
      "driver": {"first_name": "Ana", "last_name": "Ruiz", "email": "ana@example.com"},
      "inspection_type": "pre_trip",
      "odometer": 120455.5,
      "inspected_parts": [
        {"id": 1, "category": "Brakes", "notes": "soft pedal", "type": "major"},
        {"id": 2, "category": "Lights", "notes": "", "type": "satisfactory"}
      ]
    }}
  ],
  "pagination": {"per_page": 50, "page_no": 2, "total": 51}
}`

func TestFetchInspectionPage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/inspection_reports", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		assert.Equal(t, "2", r.URL.Query().Get("page_no"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", 50, nil)
	page, err := client.FetchInspectionPage(context.Background(), 2)
	require.NoError(t, err)

	reports := page.Reports()
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, int64(101), r.ID)
	assert.True(t, r.Time.Equal(time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)))
	require.NotNil(t, r.Vehicle)
	assert.Equal(t, "T-42", r.Vehicle.Number)
	assert.Nil(t, r.Asset)
	require.Len(t, r.InspectedParts, 2)
	assert.Equal(t, "major", r.InspectedParts[0].Type)
	assert.Equal(t, 51, page.Pagination.Total)
}

func TestFetchInspectionPage_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad", 50, nil)
	_, err := client.FetchInspectionPage(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestFetchInspectionPage_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"inspection_reports": [{"inspection_report": {"id": 1, "time": "not-a-time"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", 50, nil)
	_, err := client.FetchInspectionPage(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestFetchInspectionPage_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "k", 50, nil)
	_, err := client.FetchInspectionPage(ctx, 1)
	assert.Error(t, err)
}
