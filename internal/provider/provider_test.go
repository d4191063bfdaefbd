package provider

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/resilience"
)

type stubProvider struct {
	name  string
	types []model.ScanType
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Supports(st model.ScanType) bool {
	for _, t := range s.types {
		if t == st {
			return true
		}
	}
	return false
}

func (s *stubProvider) Fetch(_ context.Context, _ Target, _ model.ScanType) (*ScanResult, error) {
	return &ScanResult{Quality: 0.5, SampleSize: 1}, nil
}

func TestRegistry_RoutesByScanType(t *testing.T) {
	r := NewRegistry()
	web := &stubProvider{name: "web", types: []model.ScanType{model.ScanTypeWebsite}}
	deep := &stubProvider{name: "deep", types: []model.ScanType{model.ScanTypeResearch, model.ScanTypeAds}}
	r.Register(web)
	r.Register(deep)

	got, err := r.ForScanType(model.ScanTypeWebsite)
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name())

	got, err = r.ForScanType(model.ScanTypeAds)
	require.NoError(t, err)
	assert.Equal(t, "deep", got.Name())

	_, err = r.ForScanType(model.ScanTypeReviews)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedScanType)
}

func TestRegistry_GetAndList(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "web", types: []model.ScanType{model.ScanTypeWebsite}})

	assert.NotNil(t, r.Get("web"))
	assert.Nil(t, r.Get("missing"))
	assert.Equal(t, []string{"web"}, r.List())
}

func TestClassifyFetchErr_Timeout(t *testing.T) {
	err := classifyFetchErr("website provider: read acme.com", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "website provider: read acme.com")
}

func TestClassifyFetchErr_RateLimited(t *testing.T) {
	cause := eris.New("reader: status 429: too many requests")
	err := classifyFetchErr("reviews provider: search acme.com", cause)

	assert.ErrorIs(t, err, ErrProviderRateLimited)
	assert.True(t, resilience.IsTransient(err), "rate limits must be replayable")
}

func TestClassifyFetchErr_UpstreamError(t *testing.T) {
	cause := eris.New("research: unexpected status 503")
	err := classifyFetchErr("research provider: research scan acme.com", cause)

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.True(t, resilience.IsTransient(err), "5xx must be replayable")
}

func TestClassifyFetchErr_PermanentFailure(t *testing.T) {
	cause := eris.New("reader: status 404: not found")
	err := classifyFetchErr("website provider: read acme.com", cause)

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, resilience.IsTransient(err))
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "first", types: []model.ScanType{model.ScanTypeWebsite}})
	r.Register(&stubProvider{name: "second", types: []model.ScanType{model.ScanTypeWebsite}})

	got, err := r.ForScanType(model.ScanTypeWebsite)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name())
}
