// Package synthesis turns cached competitor scans into confidence-scored
// gaps: weaknesses competitors share, claims they make but do not back up,
// and positioning ground no competitor covers.
package synthesis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/store"
)

// Config tunes gap synthesis.
type Config struct {
	// SimilarityThreshold is the trigram similarity above which two quotes
	// are treated as the same theme.
	SimilarityThreshold float64
	// MinQuality drops scans whose quality score is below this before any
	// evidence is extracted from them.
	MinQuality float64
	// MaxGaps caps the number of gaps returned, highest confidence first.
	MaxGaps int
	// MaxProvenance caps evidence entries carried per gap.
	MaxProvenance int
}

// DefaultConfig returns the synthesis defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.45,
		MinQuality:          0.2,
		MaxGaps:             20,
		MaxProvenance:       5,
	}
}

// AngleWriter turns a synthesized gap plus the tenant's own value-prop
// claims into "your angle" copy. Implementations may call a model; the
// synthesizer falls back to a template when the writer fails.
type AngleWriter interface {
	WriteAngle(ctx context.Context, gap *model.Gap, uvpClaims []string) (string, error)
}

// Synthesizer builds gaps for a tenant from the current scans of the
// entities it tracks.
type Synthesizer struct {
	store  store.Store
	cfg    Config
	angles AngleWriter
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithAngleWriter sets a model-backed angle writer.
func WithAngleWriter(w AngleWriter) Option {
	return func(s *Synthesizer) { s.angles = w }
}

// NewSynthesizer creates a Synthesizer. Zero-valued Config fields take the
// defaults.
func NewSynthesizer(st store.Store, cfg Config, opts ...Option) *Synthesizer {
	def := DefaultConfig()
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = def.MinQuality
	}
	if cfg.MaxGaps <= 0 {
		cfg.MaxGaps = def.MaxGaps
	}
	if cfg.MaxProvenance <= 0 {
		cfg.MaxProvenance = def.MaxProvenance
	}
	s := &Synthesizer{store: st, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// quote is one extracted statement tied back to the scan it came from.
type quote struct {
	text       string
	entityID   string
	scanID     string
	scanType   model.ScanType
	quality    float64
	sampleSize int
	sourceURL  string
}

// evidence pools quotes by kind across every gathered scan.
type evidence struct {
	weaknesses  []quote
	claims      []quote
	positioning []quote
}

// Synthesize gathers the current scans for the given entities, clusters the
// extracted evidence into themes, and returns tenant-scoped gaps ordered by
// confidence. A theme with no extractable quote yields no gap. An empty
// result is not an error.
func (s *Synthesizer) Synthesize(ctx context.Context, tenantID string, entityIDs []string) ([]model.Gap, error) {
	ev, err := s.gather(ctx, entityIDs)
	if err != nil {
		return nil, err
	}

	uvpClaims, err := s.store.GetUVPClaims(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var gaps []model.Gap
	gaps = append(gaps, s.weaknessGaps(ev)...)
	gaps = append(gaps, s.unmetClaimGaps(ev)...)
	gaps = append(gaps, s.positioningGaps(ev, uvpClaims)...)

	gaps = s.dedupe(gaps)

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Confidence > gaps[j].Confidence
	})
	if len(gaps) > s.cfg.MaxGaps {
		gaps = gaps[:s.cfg.MaxGaps]
	}

	for i := range gaps {
		gaps[i].TenantID = tenantID
		gaps[i].Angle = s.writeAngle(ctx, &gaps[i], uvpClaims)
	}

	zap.L().Info("gaps synthesized",
		zap.String("tenant_id", tenantID),
		zap.Int("entities", len(entityIDs)),
		zap.Int("gaps", len(gaps)))
	return gaps, nil
}

// gather pulls the current scan for every (entity, scan type) pair and
// pools the extracted quotes. Scans below the quality floor are skipped.
func (s *Synthesizer) gather(ctx context.Context, entityIDs []string) (*evidence, error) {
	ev := &evidence{}
	for _, entityID := range entityIDs {
		for _, scanType := range model.AllScanTypes {
			rec, err := s.store.GetCurrentScan(ctx, entityID, scanType)
			if err != nil {
				return nil, err
			}
			if rec == nil || rec.Quality < s.cfg.MinQuality {
				continue
			}
			base := quote{
				entityID:   entityID,
				scanID:     rec.ID,
				scanType:   rec.ScanType,
				quality:    rec.Quality,
				sampleSize: rec.SampleSize,
				sourceURL:  rec.SourceURL,
			}
			for _, w := range rec.Extracted.Weaknesses {
				q := base
				q.text = w
				ev.weaknesses = append(ev.weaknesses, q)
			}
			for _, c := range rec.Extracted.Claims {
				q := base
				q.text = c
				ev.claims = append(ev.claims, q)
			}
			if rec.Extracted.Positioning != "" {
				q := base
				q.text = rec.Extracted.Positioning
				ev.positioning = append(ev.positioning, q)
			}
		}
	}
	return ev, nil
}

// weaknessGaps clusters weakness quotes across all entities and scan types
// and emits one gap per theme reported by more than one quote, or by a
// single high-quality quote.
func (s *Synthesizer) weaknessGaps(ev *evidence) []model.Gap {
	var gaps []model.Gap
	for _, cl := range clusterQuotes(ev.weaknesses, s.cfg.SimilarityThreshold) {
		rep := representative(cl)
		if rep.text == "" {
			continue
		}
		gaps = append(gaps, s.buildGap(model.GapWeaknessCluster,
			rep.text,
			fmt.Sprintf("reported by %d source(s) across %d scan type(s)",
				len(cl), len(scanTypesOf(cl))),
			cl))
	}
	return gaps
}

// unmetClaimGaps pairs competitor claims with weaknesses that contradict
// them: a claim theme matching a weakness theme means the claim is not
// holding up in the field.
func (s *Synthesizer) unmetClaimGaps(ev *evidence) []model.Gap {
	claimClusters := clusterQuotes(ev.claims, s.cfg.SimilarityThreshold)
	weakClusters := clusterQuotes(ev.weaknesses, s.cfg.SimilarityThreshold)

	var gaps []model.Gap
	for _, cc := range claimClusters {
		claim := representative(cc)
		for _, wc := range weakClusters {
			weak := representative(wc)
			if Similarity(claim.text, weak.text) < s.cfg.SimilarityThreshold {
				continue
			}
			combined := append(append([]quote{}, cc...), wc...)
			gaps = append(gaps, s.buildGap(model.GapUnmetClaim,
				fmt.Sprintf("claims %q but evidence says otherwise", claim.text),
				weak.text,
				combined))
			break
		}
	}
	return gaps
}

// positioningGaps finds tenant value-prop claims that no competitor claim
// or positioning statement comes near: open ground worth leading with. The
// competitor statements examined serve as the evidence of absence; with no
// statements gathered at all there is nothing to assert and no gap.
func (s *Synthesizer) positioningGaps(ev *evidence, uvpClaims []string) []model.Gap {
	covered := append(append([]quote{}, ev.claims...), ev.positioning...)
	if len(covered) == 0 {
		return nil
	}

	var gaps []model.Gap
	for _, claim := range uvpClaims {
		matched := false
		for _, q := range covered {
			if Similarity(claim, q.text) >= s.cfg.SimilarityThreshold {
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		support := covered
		if len(support) > s.cfg.MaxProvenance {
			support = support[:s.cfg.MaxProvenance]
		}
		gaps = append(gaps, s.buildGap(model.GapPositioning,
			fmt.Sprintf("no tracked competitor messaging covers %q", claim),
			claim,
			support))
	}
	return gaps
}

// buildGap assembles a gap from its evidence quotes: confidence, primary
// entity, contributing entities, and provenance.
func (s *Synthesizer) buildGap(gapType model.GapType, absence, demand string, quotes []quote) model.Gap {
	prov := make([]model.Provenance, 0, len(quotes))
	seen := make(map[string]struct{})
	for _, q := range quotes {
		if len(prov) == s.cfg.MaxProvenance {
			break
		}
		key := q.scanID + "|" + q.text
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		prov = append(prov, model.Provenance{
			Quote:        q.text,
			ScanRecordID: q.scanID,
			SourceURL:    q.sourceURL,
		})
	}

	return model.Gap{
		EntityID:   primaryEntity(quotes),
		EntityIDs:  entitiesOf(quotes),
		GapType:    gapType,
		Absence:    absence,
		Demand:     demand,
		Confidence: scoreQuotes(quotes),
		Provenance: prov,
	}
}

// scoreQuotes computes gap confidence: the sample-size-weighted average of
// the contributing scan qualities, clamped to the minimum contributing
// quality unless at least two distinct scan types corroborate the theme, in
// which case corroboration lifts the score instead.
func scoreQuotes(quotes []quote) float64 {
	if len(quotes) == 0 {
		return 0
	}
	var weightSum, qualitySum float64
	minQuality := 1.0
	types := scanTypesOf(quotes)
	for _, q := range quotes {
		w := float64(q.sampleSize)
		if w < 1 {
			w = 1
		}
		weightSum += w
		qualitySum += q.quality * w
		if q.quality < minQuality {
			minQuality = q.quality
		}
	}
	conf := qualitySum / weightSum
	if len(types) >= 2 {
		conf += 0.1 * float64(len(types)-1)
		return math.Min(conf, 0.95)
	}
	return math.Min(conf, minQuality)
}

// dedupe collapses near-identical gap themes, keeping the higher-confidence
// one. Gaps of different types may still describe the same theme when the
// same quote fed two derivations.
func (s *Synthesizer) dedupe(gaps []model.Gap) []model.Gap {
	var out []model.Gap
	for _, g := range gaps {
		dup := -1
		for i, kept := range out {
			if Similarity(g.Absence, kept.Absence) >= s.cfg.SimilarityThreshold {
				dup = i
				break
			}
		}
		if dup == -1 {
			out = append(out, g)
			continue
		}
		if g.Confidence > out[dup].Confidence {
			out[dup] = g
		}
	}
	return out
}

// writeAngle produces the tenant-facing "your angle" copy, preferring the
// configured writer and falling back to a template on failure.
func (s *Synthesizer) writeAngle(ctx context.Context, gap *model.Gap, uvpClaims []string) string {
	if s.angles != nil {
		angle, err := s.angles.WriteAngle(ctx, gap, uvpClaims)
		if err == nil && angle != "" {
			return angle
		}
		if err != nil {
			zap.L().Warn("angle writer failed, using template",
				zap.String("gap_type", string(gap.GapType)),
				zap.Error(err))
		}
	}
	return templateAngle(gap, uvpClaims, s.cfg.SimilarityThreshold)
}

// templateAngle is the deterministic fallback: lead with the tenant claim
// closest to the gap theme, or position against the gap directly.
func templateAngle(gap *model.Gap, uvpClaims []string, threshold float64) string {
	best := ""
	bestScore := 0.0
	for _, claim := range uvpClaims {
		score := math.Max(Similarity(claim, gap.Absence), Similarity(claim, gap.Demand))
		if score > bestScore {
			best, bestScore = claim, score
		}
	}
	if best != "" && bestScore >= threshold/2 {
		return fmt.Sprintf("Lead with %q — competitors leave this uncovered.", best)
	}
	switch gap.GapType {
	case model.GapUnmetClaim:
		return "Call out the gap between their promise and their delivery."
	case model.GapPositioning:
		return "Claim this ground first; no tracked competitor is on it."
	default:
		return "Show how you solve what their customers complain about."
	}
}

// clusterQuotes greedily groups quotes into themes: each quote joins the
// first cluster whose representative it matches, or starts its own.
func clusterQuotes(quotes []quote, threshold float64) [][]quote {
	var clusters [][]quote
	for _, q := range quotes {
		if q.text == "" {
			continue
		}
		placed := false
		for i, cl := range clusters {
			if Similarity(q.text, cl[0].text) >= threshold {
				clusters[i] = append(clusters[i], q)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []quote{q})
		}
	}
	return clusters
}

// representative picks the longest quote in a cluster as its theme text.
func representative(cluster []quote) quote {
	best := quote{}
	for _, q := range cluster {
		if len(q.text) > len(best.text) {
			best = q
		}
	}
	return best
}

func scanTypesOf(quotes []quote) map[model.ScanType]struct{} {
	types := make(map[model.ScanType]struct{})
	for _, q := range quotes {
		types[q.scanType] = struct{}{}
	}
	return types
}

func entitiesOf(quotes []quote) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, q := range quotes {
		if _, ok := seen[q.entityID]; ok {
			continue
		}
		seen[q.entityID] = struct{}{}
		ids = append(ids, q.entityID)
	}
	sort.Strings(ids)
	return ids
}

// primaryEntity is the entity contributing the most quotes to the theme.
func primaryEntity(quotes []quote) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, q := range quotes {
		counts[q.entityID]++
		if counts[q.entityID] > bestCount {
			best, bestCount = q.entityID, counts[q.entityID]
		}
	}
	return best
}
