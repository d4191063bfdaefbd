// Package intel is the tenant-facing facade over the shared competitor
// cache: resolve a competitor, read its insights, and run the background
// sweep that keeps the cache warm.
package intel

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/changes"
	"github.com/sells-group/competitor-intel/internal/directory"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/refresh"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/internal/synthesis"
)

// ErrEntityNotFound is returned for insight reads against an unknown entity.
var ErrEntityNotFound = eris.New("intel: entity not found")

// ServiceConfig tunes the facade and the background sweep.
type ServiceConfig struct {
	// SweepConcurrency bounds parallel (entity, scan type) refreshes.
	SweepConcurrency int
	// SweepMaxRetries bounds replay attempts for transiently failed targets.
	SweepMaxRetries int
	// FetchTimeout bounds a single provider fetch during insight reads and
	// sweeps.
	FetchTimeout time.Duration
}

// Insights is what a tenant sees for one tracked competitor.
type Insights struct {
	Entity      *model.Entity `json:"entity"`
	Positioning string        `json:"positioning,omitempty"`
	Gaps        []model.Gap   `json:"gaps"`
	Alerts      []model.Alert `json:"alerts"`

	// Degraded marks insights built on stale scans because a fresh fetch
	// failed. Gathering marks an entity with no scan data cached yet.
	Degraded  bool `json:"degraded"`
	Gathering bool `json:"gathering"`
}

// Service wires the directory, refresh coordinator, synthesizer, and change
// detector behind the three tenant-facing operations.
type Service struct {
	store       store.Store
	resolver    *directory.Resolver
	coordinator *refresh.Coordinator
	synthesizer *synthesis.Synthesizer
	detector    *changes.Detector
	policy      *Policy
	cfg         ServiceConfig
}

// NewService creates the facade. Zero-valued config fields take defaults.
func NewService(
	st store.Store,
	resolver *directory.Resolver,
	coordinator *refresh.Coordinator,
	synthesizer *synthesis.Synthesizer,
	detector *changes.Detector,
	cfg ServiceConfig,
) *Service {
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 4
	}
	if cfg.SweepMaxRetries <= 0 {
		cfg.SweepMaxRetries = 2
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = time.Minute
	}
	return &Service{
		store:       st,
		resolver:    resolver,
		coordinator: coordinator,
		synthesizer: synthesizer,
		detector:    detector,
		policy:      NewPolicy(st),
		cfg:         cfg,
	}
}

// ResolveCompetitor normalizes the submitted URL, gets or creates the shared
// entity, and links the tenant to it.
func (s *Service) ResolveCompetitor(ctx context.Context, tenantID, name, rawURL, industry string) (*directory.Resolution, error) {
	return s.resolver.Resolve(ctx, tenantID, rawURL, name, industry)
}

// DismissCompetitor drops the tenant's link; shared entity state survives.
func (s *Service) DismissCompetitor(ctx context.Context, tenantID, entityID string) error {
	if err := s.policy.Authorize(ctx, tenantID, entityID); err != nil {
		return err
	}
	return s.resolver.Dismiss(ctx, tenantID, entityID)
}

// GetCompetitorInsights returns positioning, gaps, and alerts for one
// tracked competitor. Provider failures never surface as errors here: the
// response degrades to stale data, or to a "still gathering" state when
// nothing is cached yet.
func (s *Service) GetCompetitorInsights(ctx context.Context, tenantID, entityID string) (*Insights, error) {
	if err := s.policy.Authorize(ctx, tenantID, entityID); err != nil {
		return nil, err
	}

	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, eris.Wrapf(ErrEntityNotFound, "entity %s", entityID)
	}

	insights := &Insights{Entity: entity, Gaps: []model.Gap{}, Alerts: []model.Alert{}}

	anyData := false
	for _, scanType := range model.AllScanTypes {
		fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		rec, degraded, err := s.coordinator.EnsureFreshOrStale(fctx, entity, scanType)
		cancel()
		if err != nil {
			continue
		}
		anyData = true
		if degraded {
			insights.Degraded = true
		}
		if insights.Positioning == "" && rec.Extracted.Positioning != "" {
			insights.Positioning = rec.Extracted.Positioning
		}
		// A fresh record may have just superseded an older one; raise any
		// change alerts now rather than waiting for the next sweep.
		// Fingerprinting keeps repeat reads from duplicating them.
		if !degraded {
			if _, derr := s.detector.DetectChanges(ctx, entityID, scanType); derr != nil {
				zap.L().Warn("change detection during insight read",
					zap.String("entity_id", entityID),
					zap.String("scan_type", string(scanType)),
					zap.Error(derr))
			}
		}
	}

	if !anyData {
		insights.Gathering = true
		return insights, nil
	}

	gaps, err := s.synthesizer.Synthesize(ctx, tenantID, []string{entityID})
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveGaps(ctx, tenantID, entityID, gaps); err != nil {
		return nil, err
	}
	saved, err := s.store.ListGaps(ctx, tenantID, entityID)
	if err != nil {
		return nil, err
	}
	insights.Gaps = saved

	alerts, err := s.store.ListAlerts(ctx, tenantID, entityID)
	if err != nil {
		return nil, err
	}
	insights.Alerts = alerts

	return insights, nil
}

// SetUVPClaims stores the tenant's own value-prop claims, the raw material
// for "your angle" copy.
func (s *Service) SetUVPClaims(ctx context.Context, tenantID string, claims []string) error {
	return s.store.SetUVPClaims(ctx, tenantID, claims)
}

// BreakerStates exposes provider circuit state for health reporting.
func (s *Service) BreakerStates() map[string]string {
	states := make(map[string]string)
	for name, st := range s.coordinator.BreakerStates() {
		states[name] = st.String()
	}
	return states
}

func logSweepDone(report *SweepReport) {
	zap.L().Info("sweep finished",
		zap.Int("entities", report.Entities),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("replayed", report.Replayed),
		zap.Int("alerts_raised", report.AlertsRaised),
		zap.Duration("duration", report.Duration))
}
