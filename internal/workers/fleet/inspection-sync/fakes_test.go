package inspectionsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"inspection-sync/internal/common/mms"
	"inspection-sync/internal/common/motive"

	"github.com/stretchr/testify/require"
)

// ==========================
// Upstream feed fake
// ==========================

type fakeFeed struct {
	pages  map[int]*motive.Page
	errAt  map[int]error
	called []int
}

func (f *fakeFeed) FetchInspectionPage(_ context.Context, pageNo int) (*motive.Page, error) {
	f.called = append(f.called, pageNo)
	if err := f.errAt[pageNo]; err != nil {
		return nil, err
	}
	if p, ok := f.pages[pageNo]; ok {
		return p, nil
	}
	return motive.NewPage(), nil
}

// ==========================
// Downstream store fake
// ==========================

type createCall struct {
	Collection string
	Payload    map[string]interface{}
}

type fakeStore struct {
	mu        sync.Mutex
	search    map[string]func(q mms.SearchRequest) (*mms.SearchResponse, error)
	queries   map[string][]mms.SearchRequest
	creates   []createCall
	createErr func(collection string, payload map[string]interface{}) error
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		search:  make(map[string]func(q mms.SearchRequest) (*mms.SearchResponse, error)),
		queries: make(map[string][]mms.SearchRequest),
	}
}

func (s *fakeStore) Search(_ context.Context, collection string, q mms.SearchRequest) (*mms.SearchResponse, error) {
	s.mu.Lock()
	s.queries[collection] = append(s.queries[collection], q)
	fn := s.search[collection]
	s.mu.Unlock()
	if fn == nil {
		return &mms.SearchResponse{TotalPages: 0}, nil
	}
	return fn(q)
}

func (s *fakeStore) Create(_ context.Context, collection string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, createCall{Collection: collection, Payload: body})
	if s.createErr != nil {
		if err := s.createErr(collection, body); err != nil {
			return "", err
		}
	}
	s.nextID++
	return fmt.Sprintf("rec-%d", s.nextID), nil
}

// pagedRows serves rows in pages of q.PageSize.
func pagedRows(rows []mms.Row) func(q mms.SearchRequest) (*mms.SearchResponse, error) {
	return func(q mms.SearchRequest) (*mms.SearchResponse, error) {
		size := q.PageSize
		if size <= 0 {
			size = 20
		}
		total := (len(rows) + size - 1) / size
		start := q.Page * size
		if start >= len(rows) {
			return &mms.SearchResponse{TotalPages: total}, nil
		}
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		return &mms.SearchResponse{Data: rows[start:end], TotalPages: total}, nil
	}
}

func failingSearch(err error) func(q mms.SearchRequest) (*mms.SearchResponse, error) {
	return func(mms.SearchRequest) (*mms.SearchResponse, error) { return nil, err }
}

// ==========================
// Builders
// ==========================

func makeRow(t *testing.T, fields map[string]interface{}) mms.Row {
	t.Helper()
	row := make(mms.Row, len(fields))
	for k, v := range fields {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		row[k] = raw
	}
	return row
}

func assetRow(t *testing.T, id, description, assetType string) mms.Row {
	return makeRow(t, map[string]interface{}{
		"id":            id,
		"c_description": description,
		"c_assettype":   map[string]interface{}{"entity": "AssetTypes", "id": "type-" + id, "title": assetType},
	})
}

func workOrderRow(t *testing.T, id string, openedOn time.Time) mms.Row {
	return makeRow(t, map[string]interface{}{
		"id":       id,
		"openedOn": openedOn.Format(time.RFC3339),
	})
}

func requestRow(t *testing.T, id, assetID, assetTitle string, requestedOn time.Time) mms.Row {
	return makeRow(t, map[string]interface{}{
		"id":          id,
		"requestedOn": requestedOn.Format(time.RFC3339),
		"assetId":     map[string]interface{}{"entity": "Assets", "id": assetID, "title": assetTitle},
	})
}

func part(id int64, tag, category, notes string) motive.RawPart {
	return motive.RawPart{ID: id, Type: tag, Category: category, Notes: notes}
}

func rawReport(id int64, at time.Time, vehicle string, parts ...motive.RawPart) motive.RawInspectionReport {
	r := motive.RawInspectionReport{
		ID:             id,
		Time:           at,
		Location:       "Yard",
		Driver:         &motive.RawDriver{FirstName: "ana", LastName: "ruiz", Email: "ana@example.com"},
		InspectionType: "pre_trip",
		InspectedParts: parts,
	}
	if vehicle != "" {
		r.Vehicle = &motive.RawVehicle{Number: vehicle, Make: "freightliner"}
	}
	return r
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Sentinels.RequestFormID = "form-fleet"
	return cfg
}
