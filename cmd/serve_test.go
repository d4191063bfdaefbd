package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/internal/changes"
	"github.com/sells-group/competitor-intel/internal/directory"
	"github.com/sells-group/competitor-intel/internal/intel"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/provider"
	"github.com/sells-group/competitor-intel/internal/refresh"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/internal/synthesis"
)

// cannedProvider serves the same scan result for every scan type.
type cannedProvider struct{}

func (cannedProvider) Name() string                 { return "canned" }
func (cannedProvider) Supports(model.ScanType) bool { return true }
func (cannedProvider) Fetch(_ context.Context, target provider.Target, _ model.ScanType) (*provider.ScanResult, error) {
	return &provider.ScanResult{
		Payload: []byte("{}"),
		Extracted: model.Extracted{
			Positioning: "budget CRM for solo founders",
			Weaknesses:  []string{"no api access on lower tiers"},
		},
		Quality:    0.7,
		SampleSize: 3,
		SourceURL:  "https://" + target.DomainKey,
	}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	registry := provider.NewRegistry()
	registry.Register(cannedProvider{})

	svc := intel.NewService(
		s,
		directory.NewResolver(s),
		refresh.NewCoordinator(s, registry, refresh.DefaultPolicy()),
		synthesis.NewSynthesizer(s, synthesis.Config{}),
		changes.NewDetector(s),
		intel.ServiceConfig{SweepConcurrency: 2, FetchTimeout: 5 * time.Second},
	)
	return newRouter(svc)
}

func doJSON(t *testing.T, h http.Handler, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestResolveEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "tenant-a",
		map[string]string{"name": "Acme", "url": "https://www.acme.com/"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var res struct {
		Entity        model.Entity `json:"entity"`
		EntityCreated bool         `json:"entity_created"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.EntityCreated)
	assert.Equal(t, "acme.com", res.Entity.DomainKey)

	// Second tenant resolving the same domain reuses the entity.
	rec = doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "tenant-b",
		map[string]string{"name": "Acme Corp", "url": "acme.com"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveEndpoint_Validation(t *testing.T) {
	h := newTestRouter(t)

	// Missing tenant header.
	rec := doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "",
		map[string]string{"url": "acme.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing URL.
	rec = doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "tenant-a",
		map[string]string{"name": "Acme"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unparseable URL.
	rec = doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "tenant-a",
		map[string]string{"url": "not a url"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestInsightsEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "tenant-a",
		map[string]string{"name": "Acme", "url": "acme.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res struct {
		Entity model.Entity `json:"entity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	rec = doJSON(t, h, http.MethodGet, "/api/competitors/"+res.Entity.ID+"/insights", "tenant-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var insights intel.Insights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &insights))
	assert.Equal(t, "budget CRM for solo founders", insights.Positioning)
	assert.False(t, insights.Gathering)
	assert.NotEmpty(t, insights.Gaps)

	// A tenant that never resolved this competitor gets a 404, not data.
	rec = doJSON(t, h, http.MethodGet, "/api/competitors/"+res.Entity.ID+"/insights", "tenant-b", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "tenant-a",
		map[string]string{"name": "Acme", "url": "acme.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res struct {
		Entity model.Entity `json:"entity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	rec = doJSON(t, h, http.MethodDelete, "/api/competitors/"+res.Entity.ID, "tenant-a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Gone now.
	rec = doJSON(t, h, http.MethodGet, "/api/competitors/"+res.Entity.ID+"/insights", "tenant-a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUVPEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPut, "/api/uvp", "tenant-a",
		map[string][]string{"claims": {"same-day onboarding"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSweepEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/competitors/resolve", "tenant-a",
		map[string]string{"name": "Acme", "url": "acme.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/scans/sweep", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report intel.SweepReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Entities)
	assert.Equal(t, len(model.AllScanTypes), report.Refreshed)
}
