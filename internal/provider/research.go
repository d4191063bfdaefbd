package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/pkg/research"
)

// ResearchProvider runs grounded web research for the research and ads scan
// types through the research API, asking for structured JSON output.
type ResearchProvider struct {
	client research.Client
}

// NewResearchProvider creates a research scan provider.
func NewResearchProvider(c research.Client) *ResearchProvider {
	return &ResearchProvider{client: c}
}

func (p *ResearchProvider) Name() string { return "research" }

func (p *ResearchProvider) Supports(scanType model.ScanType) bool {
	return scanType == model.ScanTypeResearch || scanType == model.ScanTypeAds
}

const researchPromptFmt = `Research the company at %s (%s). Report their market positioning,
their main product strengths, recurring weaknesses customers mention, and
the concrete claims they make in their marketing. Respond with a single JSON
object: {"positioning": string, "strengths": [string], "weaknesses": [string], "claims": [string]}.`

const adsPromptFmt = `Research the current advertising of the company at %s (%s): ad channels,
messaging themes, and the concrete claims their ads make. Respond with a
single JSON object: {"positioning": string, "strengths": [string], "weaknesses": [string], "claims": [string]},
where "positioning" is the dominant ad message and "claims" are claims made in ads.`

func (p *ResearchProvider) Fetch(ctx context.Context, target Target, scanType model.ScanType) (*ScanResult, error) {
	if !p.Supports(scanType) {
		return nil, eris.Wrapf(ErrUnsupportedScanType, "research provider: %s", scanType)
	}

	name := target.DisplayName
	if name == "" {
		name = target.DomainKey
	}
	promptFmt := researchPromptFmt
	if scanType == model.ScanTypeAds {
		promptFmt = adsPromptFmt
	}
	prompt := fmt.Sprintf(promptFmt, target.DomainKey, name)

	temp := 0.2
	resp, err := p.client.ChatCompletion(ctx, research.ChatCompletionRequest{
		Messages:    []research.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, classifyFetchErr(fmt.Sprintf("research provider: %s scan %s", scanType, target.DomainKey), err)
	}
	if len(resp.Choices) == 0 {
		return nil, eris.Errorf("research provider: empty completion for %s", target.DomainKey)
	}

	content := resp.Choices[0].Message.Content
	extracted, err := parseExtractedJSON(content)
	if err != nil {
		return nil, eris.Wrapf(err, "research provider: parse %s scan", scanType)
	}

	sourceURL := ""
	if len(resp.Citations) > 0 {
		sourceURL = resp.Citations[0]
	}

	result := &ScanResult{
		Payload:    []byte(content),
		Extracted:  *extracted,
		Quality:    researchQuality(len(resp.Citations), *extracted),
		SampleSize: len(resp.Citations),
		SourceURL:  sourceURL,
	}

	zap.L().Debug("research scan complete",
		zap.String("domain", target.DomainKey),
		zap.String("scan_type", string(scanType)),
		zap.Int("citations", len(resp.Citations)),
		zap.Float64("quality", result.Quality))

	return result, nil
}

// parseExtractedJSON pulls the first JSON object out of a completion that
// may wrap it in prose or a code fence.
func parseExtractedJSON(content string) (*model.Extracted, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, eris.New("no JSON object in completion")
	}

	var extracted model.Extracted
	if err := json.Unmarshal([]byte(content[start:end+1]), &extracted); err != nil {
		return nil, eris.Wrap(err, "unmarshal extracted")
	}
	return &extracted, nil
}

func researchQuality(citations int, extracted model.Extracted) float64 {
	q := 0.3
	q += 0.1 * float64(min(citations, 4))
	if extracted.Positioning == "" && len(extracted.Claims) == 0 &&
		len(extracted.Weaknesses) == 0 && len(extracted.Strengths) == 0 {
		return 0.1
	}
	if q > 0.9 {
		q = 0.9
	}
	return q
}
