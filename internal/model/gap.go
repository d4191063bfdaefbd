package model

import "time"

// GapType classifies how a competitive gap was derived.
type GapType string

const (
	// GapWeaknessCluster marks a weakness shared by competitors.
	GapWeaknessCluster GapType = "weakness_cluster"
	// GapUnmetClaim marks a claim competitors make but do not back up.
	GapUnmetClaim GapType = "unmet_claim"
	// GapPositioning marks an opening in competitor positioning language.
	GapPositioning GapType = "positioning"
)

// Provenance ties a gap back to the evidence it was synthesized from.
type Provenance struct {
	Quote        string `json:"quote"`
	ScanRecordID string `json:"scan_record_id"`
	SourceURL    string `json:"source_url,omitempty"`
}

// Gap is a tenant-scoped, confidence-scored competitive insight synthesized
// from one or more entities' scans. Its confidence never exceeds the minimum
// quality of its contributing scans unless at least two distinct scan types
// corroborate the theme.
type Gap struct {
	ID        string   `json:"id" db:"id"`
	TenantID  string   `json:"tenant_id" db:"tenant_id"`
	EntityID  string   `json:"entity_id" db:"entity_id"`
	EntityIDs []string `json:"entity_ids" db:"entity_ids"`

	GapType GapType `json:"gap_type" db:"gap_type"`

	// Narrative fields: what competitors lack, what the market asks for,
	// and the tenant's differentiating angle.
	Absence string `json:"absence" db:"absence"`
	Demand  string `json:"demand" db:"demand"`
	Angle   string `json:"angle" db:"angle"`

	Confidence float64      `json:"confidence" db:"confidence"`
	Provenance []Provenance `json:"provenance" db:"provenance"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}
