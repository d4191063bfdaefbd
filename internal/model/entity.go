// Package model defines the shared types for the competitor-intelligence cache.
package model

import "time"

// Entity is the canonical cross-tenant record of one real-world competitor,
// keyed by normalized domain. Exactly one Entity exists per domain key;
// tenants reference it through TenantLinks and never mutate it directly.
type Entity struct {
	ID            string     `json:"id" db:"id"`
	DomainKey     string     `json:"domain_key" db:"domain_key"`
	DisplayName   string     `json:"display_name" db:"display_name"`
	Industry      string     `json:"industry,omitempty" db:"industry"`
	SizeBand      string     `json:"size_band,omitempty" db:"size_band"`
	BusinessModel string     `json:"business_model,omitempty" db:"business_model"`
	UsageCount    int        `json:"usage_count" db:"usage_count"`
	ScanCount     int        `json:"scan_count" db:"scan_count"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty" db:"last_scanned_at"`

	// DataConfidence reflects how many independent sources corroborate the
	// entity's identity and classification, in [0,1].
	DataConfidence float64 `json:"data_confidence" db:"data_confidence"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// InitialDataConfidence is assigned to a newly created Entity before any
// validation source has corroborated it.
const InitialDataConfidence = 0.5

// TenantLink associates a tenant's locally-named competitor with a directory
// Entity. Tenant-local overrides live here and are never written back into
// the shared Entity.
type TenantLink struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	EntityID  string    `json:"entity_id" db:"entity_id"`
	LocalName string    `json:"local_name,omitempty" db:"local_name"`
	Pinned    bool      `json:"pinned" db:"pinned"`
	Dismissed bool      `json:"dismissed" db:"dismissed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
