package intel

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/internal/changes"
	"github.com/sells-group/competitor-intel/internal/directory"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/provider"
	"github.com/sells-group/competitor-intel/internal/refresh"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/internal/synthesis"
)

// fakeProvider serves canned results for every scan type.
type fakeProvider struct {
	mu        sync.Mutex
	extracted model.Extracted
	fail      bool
	website   bool // restrict to website scans only
	fetches   int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Supports(st model.ScanType) bool {
	if p.website {
		return st == model.ScanTypeWebsite
	}
	return true
}

func (p *fakeProvider) Fetch(_ context.Context, target provider.Target, _ model.ScanType) (*provider.ScanResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	if p.fail {
		return nil, errors.New("provider unavailable")
	}
	return &provider.ScanResult{
		Payload:    []byte("{}"),
		Extracted:  p.extracted,
		Quality:    0.7,
		SampleSize: 5,
		SourceURL:  "https://" + target.DomainKey,
	}, nil
}

func (p *fakeProvider) set(fail bool, ex model.Extracted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
	p.extracted = ex
}

func newTestService(t *testing.T, p provider.Provider) (*Service, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	registry := provider.NewRegistry()
	registry.Register(p)

	svc := NewService(
		s,
		directory.NewResolver(s),
		refresh.NewCoordinator(s, registry, refresh.DefaultPolicy()),
		synthesis.NewSynthesizer(s, synthesis.Config{}),
		changes.NewDetector(s),
		ServiceConfig{SweepConcurrency: 4, FetchTimeout: 5 * time.Second},
	)
	return svc, s
}

func defaultExtracted() model.Extracted {
	return model.Extracted{
		Positioning: "the CRM for small retail shops",
		Weaknesses:  []string{"customer support is slow to respond"},
		Claims:      []string{"trusted by 5000 stores"},
	}
}

func TestResolveCompetitor(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, _ := newTestService(t, p)

	res, err := svc.ResolveCompetitor(context.Background(), "tenant-a", "Acme", "https://www.acme.com/", "retail")
	require.NoError(t, err)
	assert.True(t, res.EntityCreated)
	assert.Equal(t, "acme.com", res.Entity.DomainKey)
}

func TestGetCompetitorInsights(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	res, err := svc.ResolveCompetitor(ctx, "tenant-a", "Acme", "acme.com", "")
	require.NoError(t, err)

	insights, err := svc.GetCompetitorInsights(ctx, "tenant-a", res.Entity.ID)
	require.NoError(t, err)

	assert.False(t, insights.Degraded)
	assert.False(t, insights.Gathering)
	assert.Equal(t, "the CRM for small retail shops", insights.Positioning)
	require.NotEmpty(t, insights.Gaps)
	assert.NotEmpty(t, insights.Gaps[0].Provenance)
	assert.Empty(t, insights.Alerts)
}

func TestGetCompetitorInsights_Unauthorized(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	res, err := svc.ResolveCompetitor(ctx, "tenant-a", "Acme", "acme.com", "")
	require.NoError(t, err)

	_, err = svc.GetCompetitorInsights(ctx, "tenant-b", res.Entity.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestGetCompetitorInsights_GatheringState(t *testing.T) {
	p := &fakeProvider{fail: true}
	svc, _ := newTestService(t, p)
	ctx := context.Background()

	res, err := svc.ResolveCompetitor(ctx, "tenant-a", "Acme", "acme.com", "")
	require.NoError(t, err)

	// Providers down and nothing cached: not an error, just not ready.
	insights, err := svc.GetCompetitorInsights(ctx, "tenant-a", res.Entity.ID)
	require.NoError(t, err)
	assert.True(t, insights.Gathering)
	assert.Empty(t, insights.Gaps)
}

func TestGetCompetitorInsights_DegradedOnStaleFallback(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, s := newTestService(t, p)
	ctx := context.Background()

	res, err := svc.ResolveCompetitor(ctx, "tenant-a", "Acme", "acme.com", "")
	require.NoError(t, err)

	// Prime the cache, then expire everything and take the provider down.
	_, err = svc.GetCompetitorInsights(ctx, "tenant-a", res.Entity.ID)
	require.NoError(t, err)
	for _, scanType := range model.AllScanTypes {
		rec, err := s.GetCurrentScan(ctx, res.Entity.ID, scanType)
		require.NoError(t, err)
		if rec != nil {
			require.NoError(t, s.MarkScanStale(ctx, rec.ID))
		}
	}
	p.set(true, model.Extracted{})

	insights, err := svc.GetCompetitorInsights(ctx, "tenant-a", res.Entity.ID)
	require.NoError(t, err)
	assert.True(t, insights.Degraded)
	assert.False(t, insights.Gathering)
	assert.Equal(t, "the CRM for small retail shops", insights.Positioning)
}

func TestGetCompetitorInsights_AlertsOnRefreshedChanges(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, s := newTestService(t, p)
	ctx := context.Background()

	res, err := svc.ResolveCompetitor(ctx, "tenant-a", "Acme", "acme.com", "")
	require.NoError(t, err)

	// Prime the cache, then expire everything and change the competitor's
	// messaging upstream.
	_, err = svc.GetCompetitorInsights(ctx, "tenant-a", res.Entity.ID)
	require.NoError(t, err)
	for _, scanType := range model.AllScanTypes {
		rec, err := s.GetCurrentScan(ctx, res.Entity.ID, scanType)
		require.NoError(t, err)
		if rec != nil {
			require.NoError(t, s.MarkScanStale(ctx, rec.ID))
		}
	}
	changed := defaultExtracted()
	changed.Claims = append(changed.Claims, "now with a free forever plan")
	p.set(false, changed)

	// The read itself refreshes and surfaces the change, without waiting
	// for the next sweep.
	insights, err := svc.GetCompetitorInsights(ctx, "tenant-a", res.Entity.ID)
	require.NoError(t, err)
	require.NotEmpty(t, insights.Alerts)
	found := false
	for _, a := range insights.Alerts {
		if a.AlertType == model.AlertClaimAdded {
			found = true
		}
	}
	assert.True(t, found, "expected a claim_added alert from the refreshed read")

	// Reading again raises nothing new.
	again, err := svc.GetCompetitorInsights(ctx, "tenant-a", res.Entity.ID)
	require.NoError(t, err)
	assert.Len(t, again.Alerts, len(insights.Alerts))
}

func TestGetCompetitorInsights_UnknownEntity(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, _ := newTestService(t, p)

	_, err := svc.GetCompetitorInsights(context.Background(), "tenant-a", "no-such-entity")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestDismissCompetitor(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, s := newTestService(t, p)
	ctx := context.Background()

	res, err := svc.ResolveCompetitor(ctx, "tenant-a", "Acme", "acme.com", "")
	require.NoError(t, err)
	require.NoError(t, svc.DismissCompetitor(ctx, "tenant-a", res.Entity.ID))

	tenants, err := s.ListTenantsForEntity(ctx, res.Entity.ID)
	require.NoError(t, err)
	assert.Empty(t, tenants)
}

func TestSetUVPClaims(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, s := newTestService(t, p)
	ctx := context.Background()

	require.NoError(t, svc.SetUVPClaims(ctx, "tenant-a", []string{"same-day onboarding"}))
	claims, err := s.GetUVPClaims(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"same-day onboarding"}, claims)
}

func TestPolicy_Authorize(t *testing.T) {
	p := &fakeProvider{extracted: defaultExtracted()}
	svc, s := newTestService(t, p)
	ctx := context.Background()

	res, err := svc.ResolveCompetitor(ctx, "tenant-a", "Acme", "acme.com", "")
	require.NoError(t, err)

	policy := NewPolicy(s)
	assert.NoError(t, policy.Authorize(ctx, "tenant-a", res.Entity.ID))
	assert.ErrorIs(t, policy.Authorize(ctx, "tenant-b", res.Entity.ID), ErrNotTracked)
	assert.Error(t, policy.Authorize(ctx, "", res.Entity.ID))
}
