// Package refresh keeps the scan cache fresh: it decides per-scan-type TTLs
// and coordinates fetches so each stale (entity, scan type) key is refreshed
// by exactly one flight at a time.
package refresh

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/competitor-intel/internal/model"
)

// TTLPolicy sets how long each scan type stays fresh.
type TTLPolicy struct {
	Default  time.Duration
	ScanTTLs map[model.ScanType]time.Duration
}

// DefaultPolicy returns the built-in freshness windows. Ads churn fastest,
// deep research the slowest.
func DefaultPolicy() TTLPolicy {
	return TTLPolicy{
		Default: 7 * 24 * time.Hour,
		ScanTTLs: map[model.ScanType]time.Duration{
			model.ScanTypeWebsite:  7 * 24 * time.Hour,
			model.ScanTypeReviews:  14 * 24 * time.Hour,
			model.ScanTypeAds:      3 * 24 * time.Hour,
			model.ScanTypeResearch: 30 * 24 * time.Hour,
		},
	}
}

// TTLFor returns the freshness window for a scan type.
func (p TTLPolicy) TTLFor(scanType model.ScanType) time.Duration {
	if ttl, ok := p.ScanTTLs[scanType]; ok && ttl > 0 {
		return ttl
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultPolicy().Default
}

// LoadPolicy reads a TTL policy from a YAML file, filling gaps from the
// built-in defaults. Durations use Go syntax ("72h", "30m").
func LoadPolicy(path string) (TTLPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TTLPolicy{}, eris.Wrapf(err, "refresh: read policy %s", path)
	}

	// The YAML has a top-level "freshness" key.
	var wrapper struct {
		Freshness struct {
			Default  string            `yaml:"default"`
			ScanTTLs map[string]string `yaml:"scan_ttls"`
		} `yaml:"freshness"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return TTLPolicy{}, eris.Wrap(err, "refresh: parse policy")
	}

	policy := DefaultPolicy()
	raw := wrapper.Freshness
	if raw.Default != "" {
		d, err := time.ParseDuration(raw.Default)
		if err != nil {
			return TTLPolicy{}, eris.Wrap(err, "refresh: parse default ttl")
		}
		policy.Default = d
	}
	for st, v := range raw.ScanTTLs {
		d, err := time.ParseDuration(v)
		if err != nil {
			return TTLPolicy{}, eris.Wrapf(err, "refresh: parse ttl for %s", st)
		}
		policy.ScanTTLs[model.ScanType(st)] = d
	}
	return policy, nil
}
