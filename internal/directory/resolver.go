// Package directory maps tenant-submitted competitor URLs onto the shared
// entity directory: normalize the domain, get-or-create the entity, and link
// the tenant to it.
package directory

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/identity"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/store"
)

// Resolution reports what a Resolve call did.
type Resolution struct {
	Entity        *model.Entity `json:"entity"`
	EntityCreated bool          `json:"entity_created"`
	LinkCreated   bool          `json:"link_created"`
}

// Resolver resolves raw competitor URLs to directory entities.
type Resolver struct {
	store store.Store
}

// NewResolver creates a directory resolver.
func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve normalizes rawURL to a domain key and atomically gets or creates
// the entity for it, then links the tenant. Racing callers on the same
// domain all land on one entity; the entity's usage count grows by one per
// call either way. Returns identity.ErrNoIdentity for URLs with no usable
// host.
func (r *Resolver) Resolve(ctx context.Context, tenantID, rawURL, localName, industry string) (*Resolution, error) {
	domainKey, err := identity.Normalize(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "directory: resolve %q", rawURL)
	}

	displayName := localName
	entity, created, err := r.store.ResolveEntity(ctx, domainKey, displayName, industry)
	if err != nil {
		return nil, err
	}

	linkCreated, err := r.store.UpsertTenantLink(ctx, &model.TenantLink{
		TenantID:  tenantID,
		EntityID:  entity.ID,
		LocalName: localName,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("competitor resolved",
		zap.String("tenant_id", tenantID),
		zap.String("domain_key", domainKey),
		zap.String("entity_id", entity.ID),
		zap.Bool("entity_created", created),
		zap.Bool("link_created", linkCreated))

	return &Resolution{Entity: entity, EntityCreated: created, LinkCreated: linkCreated}, nil
}

// Dismiss removes the tenant's link and all tenant-derived rows for the
// entity. The shared entity and its scans stay for other tenants.
func (r *Resolver) Dismiss(ctx context.Context, tenantID, entityID string) error {
	return r.store.DeleteTenantLink(ctx, tenantID, entityID)
}
