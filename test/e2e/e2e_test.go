// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspection-sync/internal/common/config"
	"inspection-sync/internal/common/database"
	"inspection-sync/internal/common/errors"
	commonhttp "inspection-sync/internal/common/http"
	"inspection-sync/internal/common/logger"
	"inspection-sync/internal/common/mms"
	"inspection-sync/internal/common/motive"
	inspectionsync "inspection-sync/internal/workers/fleet/inspection-sync"
)

const (
	testAPIKey = "motive-test-key"
	testSite   = "site-1"
	testCookie = "session=abc"
)

// ==========================
// Fake upstream (Motive)
// ==========================

func newMotiveServer(t *testing.T, pages map[string][]map[string]interface{}, down bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Header.Get("X-Api-Key") != testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/inspection_reports" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		envelopes := []map[string]interface{}{}
		for _, report := range pages[r.URL.Query().Get("page_no")] {
			envelopes = append(envelopes, map[string]interface{}{"inspection_report": report})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"inspection_reports": envelopes})
	}))
	t.Cleanup(server.Close)
	return server
}

func motiveReport(id int64, at time.Time, vehicle string, parts ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":              id,
		"time":            at.Format(time.RFC3339),
		"location":        "North Yard",
		"inspection_type": "pre_trip",
		"vehicle":         map[string]interface{}{"number": vehicle, "make": "freightliner"},
		"driver":          map[string]interface{}{"first_name": "ana", "last_name": "ruiz", "email": "ana@example.com"},
		"inspected_parts": parts,
	}
}

func motivePart(id int64, tag, category, notes string) map[string]interface{} {
	return map[string]interface{}{"id": id, "type": tag, "category": category, "notes": notes}
}

// ==========================
// Fake downstream (MMS)
// ==========================

type mmsServer struct {
	*httptest.Server

	mu       sync.Mutex
	searches map[string][]map[string]interface{}
	created  map[string][]map[string]interface{}
}

func newMMSServer(t *testing.T, rows map[string][]map[string]interface{}) *mmsServer {
	t.Helper()
	s := &mmsServer{searches: rows, created: map[string][]map[string]interface{}{}}
	prefix := "/api/entities/" + testSite + "/"

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Cookie") != testCookie || !strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, _ := io.ReadAll(r.Body)
		path := strings.TrimPrefix(r.URL.Path, prefix)

		if collection, ok := strings.CutSuffix(path, "/search-paged"); ok {
			var q mms.SearchRequest
			_ = json.Unmarshal(body, &q)
			data := s.searches[collection]
			if q.Page > 0 {
				data = nil
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data, "totalPages": 1})
			return
		}

		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		s.mu.Lock()
		s.created[path] = append(s.created[path], payload)
		n := len(s.created[path])
		s.mu.Unlock()

		if path == mms.CollectionWorkOrdersRequests {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("%s-%d", path, n)})
	}))
	t.Cleanup(s.Server.Close)
	return s
}

func (s *mmsServer) createdIn(collection string) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created[collection]
}

// ==========================
// Fake record index (Elasticsearch)
// ==========================

func newESServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	ids := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut || r.Method == http.MethodPost {
			mu.Lock()
			ids = append(ids, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result":"created"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)
	return server, &ids
}

// ==========================
// Environment
// ==========================

type testEnvironment struct {
	Config  *config.Config
	Motive  *httptest.Server
	MMS     *mmsServer
	Redis   *miniredis.Miniredis
	Indexed *[]string
}

func writeConfig(t *testing.T, motiveURL, mmsURL, esURL, redisAddr string) string {
	t.Helper()
	yaml := fmt.Sprintf(`app:
  name: inspection-sync
  environment: test
motive:
  base_url: %s
  api_key: ${E2E_MOTIVE_KEY}
  per_page: 25
  max_pages: 5
  lookback_hours: 24
  requests_per_second: 50
mms:
  base_url: %s
  site: %s
assets:
  truck_markers: ["Freightliner"]
  trailer_markers: ["Trailer"]
database:
  elasticsearch:
    enabled: true
    addresses: ["%s"]
    index: inspection-sync-e2e
  redis:
    enabled: true
    address: %s
    lock_key: e2e:lock
    lock_ttl: 60000
workers:
  inspection-sync:
    enabled: true
    max_jobs_active: 1
    timeout: 30000
`, motiveURL, mmsURL, testSite, esURL, redisAddr)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func setupEnvironment(t *testing.T, now time.Time, upstreamDown bool) *testEnvironment {
	t.Helper()
	t.Setenv("E2E_MOTIVE_KEY", testAPIKey)
	t.Setenv("MMS_AUTH_COOKIE", testCookie)

	motiveServer := newMotiveServer(t, map[string][]map[string]interface{}{
		"1": {
			motiveReport(101, now.Add(-1*time.Hour), "C19",
				motivePart(1, "major", "Brake", "pulls left"),
				motivePart(2, "minor", "Light", ""),
			),
			motiveReport(102, now.Add(-2*time.Hour), "C19", motivePart(3, "minor", "Wiper", "")),
			motiveReport(103, now.Add(-3*time.Hour), "Z99", motivePart(4, "major", "Axle", "")),
			motiveReport(104, now.Add(-4*time.Hour), "C19", motivePart(5, "satisfactory", "Horn", "")),
			motiveReport(105, now.Add(-9*time.Hour), "C19", motivePart(6, "major", "Tire", "flat")),
		},
	}, upstreamDown)

	mmsSrv := newMMSServer(t, map[string][]map[string]interface{}{
		mms.CollectionAssets: {
			{"id": "asset-c19", "c_description": "Unit C19", "c_assettype": map[string]interface{}{"entity": "AssetTypes", "id": "t1", "title": "Freightliner Cascadia"}},
			{"id": "asset-hvac", "c_description": "Rooftop HVAC", "c_assettype": map[string]interface{}{"entity": "AssetTypes", "id": "t2", "title": "HVAC"}},
		},
		mms.CollectionWorkOrders: {
			{"id": "wo-77", "openedOn": now.Add(-8 * time.Hour).Format(time.RFC3339)},
		},
	})

	esServer, indexed := newESServer(t)
	mr := miniredis.RunT(t)

	cfg, err := config.LoadFromFile(writeConfig(t, motiveServer.URL, mmsSrv.URL, esServer.URL, mr.Addr()))
	require.NoError(t, err)

	return &testEnvironment{Config: cfg, Motive: motiveServer, MMS: mmsSrv, Redis: mr, Indexed: indexed}
}

func newHandler(t *testing.T, env *testEnvironment) *inspectionsync.Handler {
	t.Helper()
	cfg := env.Config

	redisClient, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	handler, err := inspectionsync.NewHandler(inspectionsync.HandlerOptions{
		AppConfig: cfg,
		Logger:    log,
		Dependencies: inspectionsync.ServiceDependencies{
			Feed: motive.NewClient(cfg.Motive.BaseURL, cfg.Motive.APIKey, cfg.Motive.PerPage,
				commonhttp.NewClient(5*time.Second, commonhttp.WithRateLimit(cfg.Motive.RequestsPerSecond, 1))),
			Store:  mms.NewClient(cfg.MMS.BaseURL, cfg.MMS.Site, cfg.MMS.AuthCookie, commonhttp.NewClient(5*time.Second)),
			Locker: redisClient,
			Sinks:  []inspectionsync.RunSink{inspectionsync.NewRecordIndex(esClient, cfg.Database.Elasticsearch.Index)},
		},
	})
	require.NoError(t, err)
	return handler
}

// ==========================
// Tests
// ==========================

func TestInspectionSyncE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	now := time.Now().UTC().Truncate(time.Second)
	env := setupEnvironment(t, now, false)
	handler := newHandler(t, env)
	ctx := context.Background()

	t.Run("dry run builds without creating", func(t *testing.T) {
		result, err := handler.Service().RunExclusive(ctx, inspectionsync.RunOptions{DryRun: true})
		require.NoError(t, err)

		assert.Equal(t, inspectionsync.RunStatusPartial, result.Status)
		assert.Equal(t, 3, result.ReportsNew)
		assert.Len(t, result.Records, 2)
		assert.Empty(t, env.MMS.createdIn(mms.CollectionWorkOrders))
		assert.Empty(t, env.MMS.createdIn(mms.CollectionWorkOrdersRequests))
	})

	t.Run("live pass creates one record per surviving report", func(t *testing.T) {
		result, err := handler.Service().RunExclusive(ctx, inspectionsync.RunOptions{})
		require.NoError(t, err)

		assert.Equal(t, inspectionsync.RunStatusPartial, result.Status)
		assert.True(t, result.Watermark.At.Equal(now.Add(-8*time.Hour)))
		require.Len(t, result.Rejections, 1)
		assert.Equal(t, int64(103), result.Rejections[0].ReportID)
		assert.Equal(t, "ASSET_RESOLUTION_FAILED", string(result.Rejections[0].Code))

		requests := env.MMS.createdIn(mms.CollectionWorkOrdersRequests)
		require.Len(t, requests, 1)
		reqProps := requests[0]["properties"].(map[string]interface{})
		assert.Equal(t, "Wiper", reqProps["description"])
		assert.Contains(t, reqProps["details"], "No notes provided")
		assert.NotContains(t, reqProps, "c_priority")

		orders := env.MMS.createdIn(mms.CollectionWorkOrders)
		require.Len(t, orders, 1)
		woProps := orders[0]["properties"].(map[string]interface{})
		assert.Equal(t, "1. Brake, 2. Light", woProps["description"])
		assert.Equal(t, "Ruiz Ana", woProps["createdBy"].(map[string]interface{})["title"])
		assert.Equal(t, "asset-c19", woProps["assetId"].(map[string]interface{})["id"])
		assert.Equal(t, "Base Truck Corrective", woProps["c_workordertype"].(map[string]interface{})["title"])

		require.Len(t, result.Outcomes, 2)
		assert.Equal(t, int64(102), result.Outcomes[0].ReportID)
		assert.Equal(t, "", result.Outcomes[0].RecordID)
		assert.Equal(t, "WorkOrders-1", result.Outcomes[1].RecordID)

		assert.False(t, env.Redis.Exists("e2e:lock"))
		assert.NotEmpty(t, *env.Indexed)
	})

	t.Run("concurrent pass is skipped while the lock is held", func(t *testing.T) {
		require.NoError(t, env.Redis.Set("e2e:lock", "other-runner"))
		defer env.Redis.Del("e2e:lock")

		result, err := handler.Service().RunExclusive(ctx, inspectionsync.RunOptions{})
		require.Error(t, err)
		assert.Equal(t, inspectionsync.RunStatusLocked, result.Status)
		assert.Len(t, env.MMS.createdIn(mms.CollectionWorkOrders), 1)
	})
}

func TestInspectionSyncE2E_UpstreamOutageAborts(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	env := setupEnvironment(t, time.Now().UTC(), true)
	handler := newHandler(t, env)

	result, err := handler.Service().RunExclusive(context.Background(), inspectionsync.RunOptions{})
	require.Error(t, err)
	assert.Equal(t, inspectionsync.RunStatusAborted, result.Status)
	assert.Equal(t, "UPSTREAM_FETCH_FAILED", string(errors.CodeOf(err)))
	assert.Empty(t, env.MMS.createdIn(mms.CollectionWorkOrders))
	assert.Empty(t, env.MMS.createdIn(mms.CollectionWorkOrdersRequests))
}
