package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/pkg/reader"
)

// WebsiteProvider scans a competitor's marketing site through the reader API
// and extracts positioning and marketing claims from the markdown.
type WebsiteProvider struct {
	reader reader.Client
}

// NewWebsiteProvider creates a website scan provider.
func NewWebsiteProvider(r reader.Client) *WebsiteProvider {
	return &WebsiteProvider{reader: r}
}

func (p *WebsiteProvider) Name() string { return "website" }

func (p *WebsiteProvider) Supports(scanType model.ScanType) bool {
	return scanType == model.ScanTypeWebsite
}

func (p *WebsiteProvider) Fetch(ctx context.Context, target Target, scanType model.ScanType) (*ScanResult, error) {
	if !p.Supports(scanType) {
		return nil, eris.Wrapf(ErrUnsupportedScanType, "website provider: %s", scanType)
	}

	pageURL := "https://" + target.DomainKey
	resp, err := p.reader.Read(ctx, pageURL)
	if err != nil {
		return nil, classifyFetchErr("website provider: read "+target.DomainKey, err)
	}

	content := resp.Data.Content
	extracted := model.Extracted{
		Positioning: extractPositioning(resp.Data.Title, content),
		Claims:      extractClaims(content),
	}

	result := &ScanResult{
		Payload:    []byte(content),
		Extracted:  extracted,
		Quality:    websiteQuality(content, extracted),
		SampleSize: 1,
		SourceURL:  pageURL,
	}

	zap.L().Debug("website scan complete",
		zap.String("domain", target.DomainKey),
		zap.Int("content_bytes", len(content)),
		zap.Int("claims", len(extracted.Claims)),
		zap.Float64("quality", result.Quality))

	return result, nil
}

// extractPositioning picks the page's lead statement: the first heading, or
// the page title when the markdown has none.
func extractPositioning(title, markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	for _, line := range strings.Split(markdown, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "[") {
			return line
		}
	}
	return strings.TrimSpace(title)
}

// claimMarkers are phrases that signal a marketing claim rather than
// navigation or boilerplate.
var claimMarkers = []string{
	"24/7", "support", "uptime", "guarantee", "free", "unlimited",
	"fastest", "#1", "best", "all-in-one", "secure", "trusted by",
	"no credit card", "money back", "award",
}

// extractClaims collects bullet and heading lines that carry a marketing
// claim marker.
func extractClaims(markdown string) []string {
	var claims []string
	seen := make(map[string]struct{})

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimPrefix(line, "### ")
		line = strings.TrimPrefix(line, "## ")
		line = strings.TrimPrefix(line, "# ")
		if len(line) < 8 || len(line) > 200 {
			continue
		}

		lower := strings.ToLower(line)
		for _, marker := range claimMarkers {
			if strings.Contains(lower, marker) {
				if _, dup := seen[lower]; !dup {
					seen[lower] = struct{}{}
					claims = append(claims, line)
				}
				break
			}
		}
	}
	return claims
}

// websiteQuality scores how much usable signal the page produced.
func websiteQuality(content string, extracted model.Extracted) float64 {
	if len(content) == 0 {
		return 0
	}
	q := 0.3
	if len(content) > 2000 {
		q += 0.2
	}
	if extracted.Positioning != "" {
		q += 0.2
	}
	if len(extracted.Claims) >= 3 {
		q += 0.2
	} else if len(extracted.Claims) > 0 {
		q += 0.1
	}
	return q
}
