// Package changes watches successive scans of an entity and raises
// tenant-scoped alerts when competitor messaging moves: a new claim shows
// up, a known weakness disappears, or the positioning statement shifts.
package changes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/internal/synthesis"
)

// Detector compares the current scan for an (entity, scan type) key against
// the one it superseded and inserts alerts for every tenant tracking the
// entity. Detection is idempotent: alerts are fingerprinted on the scan
// pair, so re-running over the same pair inserts nothing new.
type Detector struct {
	store store.Store

	// similarityThreshold decides when two statements count as the same;
	// below it a positioning change is a shift.
	similarityThreshold float64
}

// NewDetector creates a change detector with the default matching threshold.
func NewDetector(s store.Store) *Detector {
	return &Detector{store: s, similarityThreshold: 0.45}
}

// DetectChanges diffs the current scan against the previous one and fans the
// resulting alerts out to every tenant tracking the entity. Returns the
// number of alerts actually inserted; re-runs over an unchanged pair insert
// zero. With no previous scan there is nothing to compare and nothing is
// inserted.
func (d *Detector) DetectChanges(ctx context.Context, entityID string, scanType model.ScanType) (int, error) {
	cur, err := d.store.GetCurrentScan(ctx, entityID, scanType)
	if err != nil {
		return 0, err
	}
	prev, err := d.store.GetPreviousScan(ctx, entityID, scanType)
	if err != nil {
		return 0, err
	}
	if cur == nil || prev == nil {
		return 0, nil
	}

	entity, err := d.store.GetEntity(ctx, entityID)
	if err != nil {
		return 0, err
	}
	if entity == nil {
		return 0, nil
	}

	diffs := d.diff(prev, cur, entity.UsageCount)
	if len(diffs) == 0 {
		return 0, nil
	}

	tenants, err := d.store.ListTenantsForEntity(ctx, entityID)
	if err != nil {
		return 0, err
	}
	if len(tenants) == 0 {
		return 0, nil
	}

	alerts := make([]model.Alert, 0, len(diffs)*len(tenants))
	for _, tenantID := range tenants {
		for _, diff := range diffs {
			a := diff
			a.TenantID = tenantID
			a.EntityID = entityID
			a.Fingerprint = fingerprint(tenantID, prev.ID, cur.ID, a.AlertType, a.Description)
			alerts = append(alerts, a)
		}
	}

	inserted, err := d.store.InsertAlerts(ctx, alerts)
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		zap.L().Info("change alerts raised",
			zap.String("entity_id", entityID),
			zap.String("scan_type", string(scanType)),
			zap.Int("inserted", inserted),
			zap.Int("tenants", len(tenants)))
	}
	return inserted, nil
}

// diff classifies the differences between two scan versions into alert
// templates (tenant and fingerprint filled in later).
func (d *Detector) diff(prev, cur *model.ScanRecord, usageCount int) []model.Alert {
	var alerts []model.Alert

	for _, claim := range cur.Extracted.Claims {
		if matchesAny(claim, prev.Extracted.Claims, d.similarityThreshold) {
			continue
		}
		alerts = append(alerts, model.Alert{
			AlertType:   model.AlertClaimAdded,
			Severity:    severityFor(0.5, usageCount),
			Description: fmt.Sprintf("new claim: %s", claim),
			Evidence:    claim,
		})
	}

	for _, weakness := range prev.Extracted.Weaknesses {
		if matchesAny(weakness, cur.Extracted.Weaknesses, d.similarityThreshold) {
			continue
		}
		alerts = append(alerts, model.Alert{
			AlertType:   model.AlertWeaknessClosed,
			Severity:    severityFor(0.6, usageCount),
			Description: fmt.Sprintf("weakness no longer observed: %s", weakness),
			Evidence:    weakness,
		})
	}

	if prev.Extracted.Positioning != "" && cur.Extracted.Positioning != "" {
		sim := synthesis.Similarity(prev.Extracted.Positioning, cur.Extracted.Positioning)
		if sim < d.similarityThreshold {
			alerts = append(alerts, model.Alert{
				AlertType: model.AlertPositioningShift,
				Severity:  severityFor(1-sim, usageCount),
				Description: fmt.Sprintf("positioning shifted from %q to %q",
					prev.Extracted.Positioning, cur.Extracted.Positioning),
				Evidence: cur.Extracted.Positioning,
			})
		}
	}

	return alerts
}

// severityFor grades an alert by the magnitude of the underlying change and
// by how many tenants track the entity. A change every tenant sees matters
// more than one affecting a single watcher.
func severityFor(magnitude float64, usageCount int) string {
	score := magnitude
	switch {
	case usageCount >= 10:
		score += 0.4
	case usageCount >= 3:
		score += 0.2
	}
	switch {
	case score >= 1.0:
		return model.SeverityHigh
	case score >= 0.6:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// matchesAny reports whether text is similar to any candidate.
func matchesAny(text string, candidates []string, threshold float64) bool {
	for _, c := range candidates {
		if synthesis.Similarity(text, c) >= threshold {
			return true
		}
	}
	return false
}

// fingerprint keys an alert to its tenant, scan pair, type, and subject so
// the insert path can dedupe retries.
func fingerprint(tenantID, prevID, curID string, alertType model.AlertType, subject string) string {
	sum := sha256.Sum256([]byte(tenantID + "|" + prevID + "|" + curID + "|" + string(alertType) + "|" + subject))
	return hex.EncodeToString(sum[:])
}
