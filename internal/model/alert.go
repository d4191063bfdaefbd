package model

import "time"

// AlertType identifies the kind of change that triggered an alert.
type AlertType string

const (
	AlertClaimAdded       AlertType = "claim_added"
	AlertWeaknessClosed   AlertType = "weakness_closed"
	AlertPositioningShift AlertType = "positioning_shift"
)

// Alert severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert is a tenant-scoped notification emitted by the change detector when
// successive scans of an entity differ meaningfully. The fingerprint is
// unique per (tenant, scan pair, type, subject) so re-running detection over
// the same pair never duplicates an alert.
type Alert struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	EntityID    string    `json:"entity_id" db:"entity_id"`
	GapID       string    `json:"gap_id,omitempty" db:"gap_id"`
	AlertType   AlertType `json:"alert_type" db:"alert_type"`
	Severity    string    `json:"severity" db:"severity"`
	Description string    `json:"description" db:"description"`
	Evidence    string    `json:"evidence,omitempty" db:"evidence"`
	Fingerprint string    `json:"-" db:"fingerprint"`
	Read        bool      `json:"read" db:"read"`
	Dismissed   bool      `json:"dismissed" db:"dismissed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
