// Package store persists the shared competitor directory, the scan cache,
// and the tenant-scoped link/gap/alert tables.
package store

import (
	"context"
	"time"

	"github.com/sells-group/competitor-intel/internal/model"
)

// Store defines the persistence interface for the intelligence cache.
//
// Entities and ScanRecords are shared cross-tenant state and are never
// deleted on behalf of a tenant; they expire logically via TTL or the
// is_stale override. TenantLinks, Gaps, and Alerts are tenant-exclusive and
// removing a link deletes only the tenant's own rows.
type Store interface {
	// Entity directory. ResolveEntity is the atomic get-or-create: callers
	// racing on the same domain key all observe one Entity, each call
	// incrementing usage_count by exactly one. Returns created=true when the
	// call inserted the row.
	ResolveEntity(ctx context.Context, domainKey, displayName, industry string) (*model.Entity, bool, error)
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	// ListTrackedEntities returns entities referenced by at least one
	// non-dismissed tenant link, for the background sweep.
	ListTrackedEntities(ctx context.Context) ([]model.Entity, error)
	UpdateEntityConfidence(ctx context.Context, id string, confidence float64) error

	// Scan cache. RecordScan supersedes the prior current record for the
	// (entity, scan type) key while retaining it for change detection, and
	// bumps the entity's scan counters. GetFreshScan returns the current
	// record only while fresh (now < expires_at and not stale), updating its
	// access statistics; a miss is (nil, nil). GetCurrentScan returns the
	// last-known record regardless of freshness for degraded serving.
	RecordScan(ctx context.Context, rec *model.ScanRecord, ttl time.Duration) error
	GetFreshScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error)
	GetCurrentScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error)
	GetPreviousScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error)
	MarkScanStale(ctx context.Context, scanID string) error

	// Tenant links.
	UpsertTenantLink(ctx context.Context, link *model.TenantLink) (bool, error)
	ListTenantsForEntity(ctx context.Context, entityID string) ([]string, error)
	DeleteTenantLink(ctx context.Context, tenantID, entityID string) error

	// Gaps. SaveGaps replaces the tenant's gaps for an entity.
	SaveGaps(ctx context.Context, tenantID, entityID string, gaps []model.Gap) error
	ListGaps(ctx context.Context, tenantID, entityID string) ([]model.Gap, error)

	// Alerts. InsertAlerts deduplicates on fingerprint and reports how many
	// rows were actually inserted.
	InsertAlerts(ctx context.Context, alerts []model.Alert) (int, error)
	ListAlerts(ctx context.Context, tenantID, entityID string) ([]model.Alert, error)
	MarkAlertRead(ctx context.Context, tenantID, alertID string) error
	DismissAlert(ctx context.Context, tenantID, alertID string) error

	// Tenant value-proposition claims consumed by gap synthesis.
	GetUVPClaims(ctx context.Context, tenantID string) ([]string, error)
	SetUVPClaims(ctx context.Context, tenantID string, claims []string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
