package resilience

import (
	"sync"
	"time"

	"github.com/sells-group/competitor-intel/internal/model"
)

// ScanTarget identifies one (entity, scan type) pair that failed during a
// sweep and may be retried.
type ScanTarget struct {
	EntityID  string         `json:"entity_id"`
	DomainKey string         `json:"domain_key"`
	ScanType  model.ScanType `json:"scan_type"`
}

// DLQEntry records a failed scan target with retry bookkeeping.
type DLQEntry struct {
	Target       ScanTarget `json:"target"`
	Error        string     `json:"error"`
	ErrorType    string     `json:"error_type"` // "transient" or "permanent"
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	LastFailedAt time.Time  `json:"last_failed_at"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count
// and the failure was transient.
func (e *DLQEntry) CanRetry() bool {
	return e.ErrorType == "transient" && e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// DLQ collects scan targets that failed during a sweep so transient failures
// can be replayed at the end of the pass. It is safe for concurrent use by
// the sweep workers.
type DLQ struct {
	mu         sync.Mutex
	entries    map[ScanTarget]*DLQEntry
	maxRetries int
}

// NewDLQ creates a dead letter queue allowing maxRetries replays per target.
func NewDLQ(maxRetries int) *DLQ {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &DLQ{
		entries:    make(map[ScanTarget]*DLQEntry),
		maxRetries: maxRetries,
	}
}

// Record notes a failure for the target, incrementing its retry count if it
// was already queued.
func (q *DLQ) Record(target ScanTarget, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[target]; ok {
		e.RetryCount++
		e.Error = err.Error()
		e.ErrorType = ClassifyError(err)
		e.LastFailedAt = time.Now().UTC()
		return
	}
	q.entries[target] = &DLQEntry{
		Target:       target,
		Error:        err.Error(),
		ErrorType:    ClassifyError(err),
		MaxRetries:   q.maxRetries,
		LastFailedAt: time.Now().UTC(),
	}
}

// Retryable drains and returns the entries still eligible for replay.
// Permanent and exhausted entries remain queued for reporting via Entries.
func (q *DLQ) Retryable() []ScanTarget {
	q.mu.Lock()
	defer q.mu.Unlock()

	var targets []ScanTarget
	for _, e := range q.entries {
		if e.CanRetry() {
			targets = append(targets, e.Target)
		}
	}
	return targets
}

// Resolve removes a target after a successful replay.
func (q *DLQ) Resolve(target ScanTarget) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, target)
}

// Entries returns a snapshot of all queued failures.
func (q *DLQ) Entries() []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DLQEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	return out
}

// Len returns the number of queued failures.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
