package intel

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/provider"
	"github.com/sells-group/competitor-intel/internal/resilience"
)

// SweepReport summarizes one background sweep.
type SweepReport struct {
	Entities     int           `json:"entities"`
	Refreshed    int           `json:"refreshed"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	Replayed     int           `json:"replayed"`
	AlertsRaised int           `json:"alerts_raised"`
	Duration     time.Duration `json:"duration"`
}

// TriggerWeeklyScan refreshes every (tracked entity, scan type) pair with
// bounded concurrency, replays transient failures once the first pass
// settles, and runs change detection behind each successful refresh. An
// individual target failing never fails the sweep.
func (s *Service) TriggerWeeklyScan(ctx context.Context) (*SweepReport, error) {
	start := time.Now()

	entities, err := s.store.ListTrackedEntities(ctx)
	if err != nil {
		return nil, err
	}

	dlq := resilience.NewDLQ(s.cfg.SweepMaxRetries)
	var refreshed, skipped, failed, alertsRaised atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SweepConcurrency)
	for i := range entities {
		entity := &entities[i]
		for _, scanType := range model.AllScanTypes {
			g.Go(func() error {
				switch err := s.refreshTarget(gctx, entity, scanType); {
				case err == nil:
					refreshed.Add(1)
					n, derr := s.detector.DetectChanges(gctx, entity.ID, scanType)
					if derr == nil {
						alertsRaised.Add(int64(n))
					}
				case eris.Is(err, provider.ErrUnsupportedScanType):
					skipped.Add(1)
				default:
					failed.Add(1)
					dlq.Record(resilience.ScanTarget{
						EntityID:  entity.ID,
						DomainKey: entity.DomainKey,
						ScanType:  scanType,
					}, err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Replay pass: transient failures get another shot now that the burst
	// is over. Permanent failures stay queued for reporting only.
	replayed := 0
	for _, target := range dlq.Retryable() {
		if ctx.Err() != nil {
			break
		}
		entity, err := s.store.GetEntity(ctx, target.EntityID)
		if err != nil || entity == nil {
			continue
		}
		if err := s.refreshTarget(ctx, entity, target.ScanType); err != nil {
			dlq.Record(target, err)
			continue
		}
		dlq.Resolve(target)
		replayed++
		refreshed.Add(1)
		failed.Add(-1)
		if n, derr := s.detector.DetectChanges(ctx, entity.ID, target.ScanType); derr == nil {
			alertsRaised.Add(int64(n))
		}
	}

	report := &SweepReport{
		Entities:     len(entities),
		Refreshed:    int(refreshed.Load()),
		Skipped:      int(skipped.Load()),
		Failed:       int(failed.Load()),
		Replayed:     replayed,
		AlertsRaised: int(alertsRaised.Load()),
		Duration:     time.Since(start),
	}
	logSweepDone(report)
	return report, ctx.Err()
}

// refreshTarget runs one bounded ensure-fresh for a sweep target.
func (s *Service) refreshTarget(ctx context.Context, entity *model.Entity, scanType model.ScanType) error {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	_, err := s.coordinator.EnsureFresh(fctx, entity, scanType)
	return err
}
