package model

import "time"

// ScanType identifies one kind of provider scan. Each (entity, scan type)
// pair has at most one current ScanRecord.
type ScanType string

const (
	ScanTypeWebsite  ScanType = "website"
	ScanTypeReviews  ScanType = "reviews"
	ScanTypeAds      ScanType = "ads"
	ScanTypeResearch ScanType = "research"
)

// AllScanTypes lists every scan type the sweep refreshes.
var AllScanTypes = []ScanType{ScanTypeWebsite, ScanTypeReviews, ScanTypeAds, ScanTypeResearch}

// ScanRecord is one provider's cached result for an (entity, scan type) key.
// The latest record for a key is current; the superseded record is retained
// so the change detector can compare against it.
type ScanRecord struct {
	ID       string   `json:"id" db:"id"`
	EntityID string   `json:"entity_id" db:"entity_id"`
	ScanType ScanType `json:"scan_type" db:"scan_type"`

	Payload   []byte    `json:"payload,omitempty" db:"payload"`
	Extracted Extracted `json:"extracted" db:"extracted"`

	Quality    float64 `json:"quality" db:"quality"`
	SampleSize int     `json:"sample_size" db:"sample_size"`
	SourceURL  string  `json:"source_url,omitempty" db:"source_url"`

	IsCurrent bool `json:"is_current" db:"is_current"`

	// IsStale is an explicit staleness override, independent of the TTL.
	IsStale bool `json:"is_stale" db:"is_stale"`

	ScannedAt      time.Time  `json:"scanned_at" db:"scanned_at"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	AccessCount    int        `json:"access_count" db:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty" db:"last_accessed_at"`
}

// Extracted holds the structured fields pulled out of a raw scan payload.
type Extracted struct {
	Positioning string   `json:"positioning,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
	Strengths   []string `json:"strengths,omitempty"`
	Claims      []string `json:"claims,omitempty"`
}

// Fresh reports whether the record may be served from cache at the given
// time: unexpired and not explicitly marked stale.
func (s *ScanRecord) Fresh(now time.Time) bool {
	return now.Before(s.ExpiresAt) && !s.IsStale
}
