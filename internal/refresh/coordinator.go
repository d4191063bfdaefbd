package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/provider"
	"github.com/sells-group/competitor-intel/internal/resilience"
	"github.com/sells-group/competitor-intel/internal/store"
)

// ErrFetchFailed wraps provider failures so callers can decide between
// degraded serving and surfacing the error.
var ErrFetchFailed = eris.New("refresh: fetch failed")

// fetchError matches ErrFetchFailed while keeping the provider's error in
// the chain, so transient failures stay classifiable for replay.
type fetchError struct {
	domain   string
	scanType model.ScanType
	cause    error
}

func (e *fetchError) Error() string {
	return fmt.Sprintf("refresh: fetch failed %s/%s: %v", e.domain, e.scanType, e.cause)
}

func (e *fetchError) Unwrap() error { return e.cause }

func (e *fetchError) Is(target error) bool { return target == ErrFetchFailed }

// Coordinator serves scans cache-first and collapses concurrent refreshes of
// the same (entity, scan type) key into a single provider flight. Waiting
// callers all receive the record written by that one flight.
type Coordinator struct {
	store        store.Store
	providers    *provider.Registry
	policy       TTLPolicy
	breakers     *resilience.ProviderBreakers
	retry        resilience.RetryConfig
	fetchTimeout time.Duration
	group        singleflight.Group
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRetryConfig overrides the per-fetch retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) CoordinatorOption {
	return func(c *Coordinator) { c.retry = cfg }
}

// WithBreakerConfig overrides the per-provider circuit breaker settings.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) CoordinatorOption {
	return func(c *Coordinator) { c.breakers = resilience.NewProviderBreakers(cfg) }
}

// WithFetchTimeout bounds one provider flight. A hung upstream releases the
// in-flight key after this long no matter what the waiting callers do.
func WithFetchTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// NewCoordinator creates a refresh coordinator.
func NewCoordinator(s store.Store, providers *provider.Registry, policy TTLPolicy, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:        s,
		providers:    providers,
		policy:       policy,
		breakers:     resilience.NewProviderBreakers(resilience.DefaultCircuitBreakerConfig()),
		retry:        resilience.DefaultRetryConfig(),
		fetchTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureFresh returns a fresh scan for the key, fetching through the bound
// provider when the cache misses. A nil error always carries a record.
func (c *Coordinator) EnsureFresh(ctx context.Context, entity *model.Entity, scanType model.ScanType) (*model.ScanRecord, error) {
	rec, err := c.store.GetFreshScan(ctx, entity.ID, scanType)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	// The flight is detached from the caller so late waiters still benefit
	// from its result, but bounded by its own timeout so a hung provider
	// cannot hold the key open.
	key := flightKey(entity.ID, scanType)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.refresh(fctx, entity, scanType)
	})

	select {
	case <-ctx.Done():
		// A caller that gives up waiting is a fetch failure from its point
		// of view: degraded serving must still kick in.
		return nil, &fetchError{domain: entity.DomainKey, scanType: scanType, cause: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.ScanRecord), nil
	}
}

// EnsureFreshOrStale is EnsureFresh with degraded fallback: when the fetch
// fails but a superseded or expired record exists, that record is returned
// with degraded=true and a nil error.
func (c *Coordinator) EnsureFreshOrStale(ctx context.Context, entity *model.Entity, scanType model.ScanType) (rec *model.ScanRecord, degraded bool, err error) {
	rec, err = c.EnsureFresh(ctx, entity, scanType)
	if err == nil {
		return rec, false, nil
	}
	if !eris.Is(err, ErrFetchFailed) {
		return nil, false, err
	}

	// The caller's deadline may already be spent; the stale read must not
	// die with it.
	stale, staleErr := c.store.GetCurrentScan(context.WithoutCancel(ctx), entity.ID, scanType)
	if staleErr != nil || stale == nil {
		return nil, false, err
	}
	zap.L().Warn("serving stale scan after fetch failure",
		zap.String("entity_id", entity.ID),
		zap.String("scan_type", string(scanType)),
		zap.Error(err))
	return stale, true, nil
}

// Invalidate marks the current scan stale so the next read refetches.
func (c *Coordinator) Invalidate(ctx context.Context, entityID string, scanType model.ScanType) error {
	rec, err := c.store.GetCurrentScan(ctx, entityID, scanType)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return c.store.MarkScanStale(ctx, rec.ID)
}

// BreakerStates exposes per-provider circuit state for the health endpoint.
func (c *Coordinator) BreakerStates() map[string]resilience.CircuitState {
	return c.breakers.States()
}

// refresh runs inside the singleflight: one more cache check (a sibling
// flight may have just written), then fetch and record.
func (c *Coordinator) refresh(ctx context.Context, entity *model.Entity, scanType model.ScanType) (*model.ScanRecord, error) {
	rec, err := c.store.GetFreshScan(ctx, entity.ID, scanType)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	p, err := c.providers.ForScanType(scanType)
	if err != nil {
		return nil, err
	}

	breaker := c.breakers.Get(p.Name())
	retryCfg := c.retry
	retryCfg.OnRetry = resilience.RetryLogger(p.Name(), string(scanType)+" scan")

	result, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (*provider.ScanResult, error) {
		return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*provider.ScanResult, error) {
			return p.Fetch(ctx, provider.Target{
				DomainKey:   entity.DomainKey,
				DisplayName: entity.DisplayName,
				Industry:    entity.Industry,
			}, scanType)
		})
	})
	if err != nil {
		zap.L().Warn("scan fetch failed",
			zap.String("entity_id", entity.ID),
			zap.String("domain", entity.DomainKey),
			zap.String("scan_type", string(scanType)),
			zap.String("provider", p.Name()),
			zap.Error(err))
		return nil, &fetchError{domain: entity.DomainKey, scanType: scanType, cause: err}
	}

	newRec := &model.ScanRecord{
		EntityID:   entity.ID,
		ScanType:   scanType,
		Payload:    result.Payload,
		Extracted:  result.Extracted,
		Quality:    result.Quality,
		SampleSize: result.SampleSize,
		SourceURL:  result.SourceURL,
	}
	if err := c.store.RecordScan(ctx, newRec, c.policy.TTLFor(scanType)); err != nil {
		return nil, err
	}
	c.updateConfidence(ctx, entity)

	zap.L().Info("scan refreshed",
		zap.String("entity_id", entity.ID),
		zap.String("domain", entity.DomainKey),
		zap.String("scan_type", string(scanType)),
		zap.Float64("quality", newRec.Quality),
		zap.Time("expires_at", newRec.ExpiresAt))

	return newRec, nil
}

// updateConfidence recomputes the entity's data confidence from how many
// scan types currently corroborate it and how good those scans are. Runs
// after each recorded scan; failures only log.
func (c *Coordinator) updateConfidence(ctx context.Context, entity *model.Entity) {
	var scanTypes int
	var qualitySum float64
	for _, st := range model.AllScanTypes {
		rec, err := c.store.GetCurrentScan(ctx, entity.ID, st)
		if err != nil || rec == nil {
			continue
		}
		scanTypes++
		qualitySum += rec.Quality
	}
	if scanTypes == 0 {
		return
	}

	conf := entityConfidence(scanTypes, qualitySum/float64(scanTypes))
	if err := c.store.UpdateEntityConfidence(ctx, entity.ID, conf); err != nil {
		zap.L().Warn("update entity confidence",
			zap.String("entity_id", entity.ID),
			zap.Error(err))
	}
}

// entityConfidence blends corroborating scan-type count with average scan
// quality. One mediocre scan sits at the initial 0.5; four high-quality scan
// types approach the 0.9 ceiling.
func entityConfidence(scanTypes int, avgQuality float64) float64 {
	conf := 0.3 + 0.1*float64(scanTypes) + 0.2*avgQuality
	if conf > 0.9 {
		conf = 0.9
	}
	if conf < model.InitialDataConfidence {
		conf = model.InitialDataConfidence
	}
	return conf
}

func flightKey(entityID string, scanType model.ScanType) string {
	return fmt.Sprintf("%s:%s", entityID, scanType)
}
