package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/pkg/research"
)

func newResearchServer(t *testing.T, body string) research.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return research.NewClient("test-key",
		research.WithBaseURL(srv.URL),
		research.WithRateLimit(1000, 10))
}

func TestResearchProvider_Fetch(t *testing.T) {
	client := newResearchServer(t, `{
		"id": "cmpl-1",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Here is what I found:\n{\"positioning\":\"premium field ops suite\",\"strengths\":[\"route optimization\"],\"weaknesses\":[\"no offline mode\"],\"claims\":[\"cuts fuel costs 20%\"]}"}}],
		"citations": ["https://acme.com/about", "https://news.example/acme-funding"],
		"usage": {"prompt_tokens": 50, "completion_tokens": 80}
	}`)

	p := NewResearchProvider(client)
	require.True(t, p.Supports(model.ScanTypeResearch))
	require.True(t, p.Supports(model.ScanTypeAds))
	require.False(t, p.Supports(model.ScanTypeWebsite))

	result, err := p.Fetch(context.Background(), Target{DomainKey: "acme.com", DisplayName: "Acme"}, model.ScanTypeResearch)
	require.NoError(t, err)

	assert.Equal(t, "premium field ops suite", result.Extracted.Positioning)
	assert.Equal(t, []string{"no offline mode"}, result.Extracted.Weaknesses)
	assert.Equal(t, []string{"cuts fuel costs 20%"}, result.Extracted.Claims)
	assert.Equal(t, 2, result.SampleSize)
	assert.Equal(t, "https://acme.com/about", result.SourceURL)
	assert.Greater(t, result.Quality, 0.4)
}

func TestResearchProvider_NoJSONInCompletion(t *testing.T) {
	client := newResearchServer(t, `{
		"id": "cmpl-2",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "I could not find anything."}}],
		"usage": {}
	}`)

	p := NewResearchProvider(client)
	_, err := p.Fetch(context.Background(), Target{DomainKey: "ghost.io"}, model.ScanTypeResearch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON object")
}

func TestResearchProvider_EmptyChoices(t *testing.T) {
	client := newResearchServer(t, `{"id":"cmpl-3","choices":[],"usage":{}}`)

	p := NewResearchProvider(client)
	_, err := p.Fetch(context.Background(), Target{DomainKey: "acme.com"}, model.ScanTypeAds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty completion")
}

func TestResearchProvider_WrongScanType(t *testing.T) {
	p := NewResearchProvider(nil)
	_, err := p.Fetch(context.Background(), Target{DomainKey: "acme.com"}, model.ScanTypeWebsite)
	assert.ErrorIs(t, err, ErrUnsupportedScanType)
}

func TestParseExtractedJSON_CodeFence(t *testing.T) {
	extracted, err := parseExtractedJSON("```json\n{\"positioning\":\"budget option\",\"claims\":[]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "budget option", extracted.Positioning)
}
