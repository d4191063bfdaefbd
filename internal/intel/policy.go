package intel

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/store"
)

// ErrNotTracked is returned when a tenant asks about an entity it has no
// link to.
var ErrNotTracked = eris.New("intel: competitor not tracked by tenant")

// Policy is the single authorization boundary for tenant-facing reads. The
// cache trusts the tenant id it is handed; the only question it answers is
// whether that tenant tracks the entity.
type Policy struct {
	store store.Store
}

// NewPolicy creates the access policy.
func NewPolicy(s store.Store) *Policy {
	return &Policy{store: s}
}

// Authorize checks that the tenant tracks the entity. Called once at the
// API boundary; everything past it assumes the check already happened.
func (p *Policy) Authorize(ctx context.Context, tenantID, entityID string) error {
	if tenantID == "" {
		return eris.New("intel: missing tenant id")
	}
	tenants, err := p.store.ListTenantsForEntity(ctx, entityID)
	if err != nil {
		return err
	}
	for _, t := range tenants {
		if t == tenantID {
			return nil
		}
	}
	return eris.Wrapf(ErrNotTracked, "tenant %s, entity %s", tenantID, entityID)
}
