package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/pkg/reader"
)

// ReviewsProvider scans third-party review coverage for a competitor via the
// search API and mines recurring complaints and praise.
type ReviewsProvider struct {
	reader reader.Client
}

// NewReviewsProvider creates a reviews scan provider.
func NewReviewsProvider(r reader.Client) *ReviewsProvider {
	return &ReviewsProvider{reader: r}
}

func (p *ReviewsProvider) Name() string { return "reviews" }

func (p *ReviewsProvider) Supports(scanType model.ScanType) bool {
	return scanType == model.ScanTypeReviews
}

func (p *ReviewsProvider) Fetch(ctx context.Context, target Target, scanType model.ScanType) (*ScanResult, error) {
	if !p.Supports(scanType) {
		return nil, eris.Wrapf(ErrUnsupportedScanType, "reviews provider: %s", scanType)
	}

	name := target.DisplayName
	if name == "" {
		name = target.DomainKey
	}
	query := fmt.Sprintf("%s reviews pros cons", name)

	resp, err := p.reader.Search(ctx, query)
	if err != nil {
		return nil, classifyFetchErr("reviews provider: search "+target.DomainKey, err)
	}

	var weaknesses, strengths []string
	var sourceURL string
	for _, result := range resp.Data {
		if sourceURL == "" {
			sourceURL = result.URL
		}
		text := result.Description
		if result.Content != "" {
			text = result.Content
		}
		w, s := mineReviewText(text)
		weaknesses = append(weaknesses, w...)
		strengths = append(strengths, s...)
	}

	extracted := model.Extracted{
		Weaknesses: dedupe(weaknesses),
		Strengths:  dedupe(strengths),
	}

	payload, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, eris.Wrap(err, "reviews provider: marshal payload")
	}

	result := &ScanResult{
		Payload:    payload,
		Extracted:  extracted,
		Quality:    reviewsQuality(len(resp.Data), extracted),
		SampleSize: len(resp.Data),
		SourceURL:  sourceURL,
	}

	zap.L().Debug("reviews scan complete",
		zap.String("domain", target.DomainKey),
		zap.Int("results", len(resp.Data)),
		zap.Int("weaknesses", len(extracted.Weaknesses)),
		zap.Float64("quality", result.Quality))

	return result, nil
}

var complaintMarkers = []string{
	"slow", "expensive", "difficult", "lacks", "lacking", "missing",
	"poor", "buggy", "crash", "hard to", "confusing", "hidden fees",
	"no mobile", "downtime", "unresponsive", "cancel",
}

var praiseMarkers = []string{
	"easy to", "great", "excellent", "love", "intuitive", "reliable",
	"helpful", "responsive", "best in class", "seamless",
}

// mineReviewText splits text into sentences and sorts each by complaint or
// praise markers.
func mineReviewText(text string) (weaknesses, strengths []string) {
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		matched := false
		for _, marker := range complaintMarkers {
			if strings.Contains(lower, marker) {
				weaknesses = append(weaknesses, sentence)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		for _, marker := range praiseMarkers {
			if strings.Contains(lower, marker) {
				strengths = append(strengths, sentence)
				break
			}
		}
	}
	return weaknesses, strengths
}

func splitSentences(text string) []string {
	var out []string
	for _, raw := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if s := strings.TrimSpace(raw); len(s) >= 12 && len(s) <= 240 {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func reviewsQuality(results int, extracted model.Extracted) float64 {
	if results == 0 {
		return 0
	}
	q := 0.2 + 0.1*float64(min(results, 5))
	if len(extracted.Weaknesses) == 0 && len(extracted.Strengths) == 0 {
		q /= 2
	}
	if q > 0.8 {
		q = 0.8
	}
	return q
}
