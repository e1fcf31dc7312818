package memory

import (
	"context"
	"sync"
	"time"

	"github.com/stylevault/resilience/internal/infra/storage"
)

// ReportRepo implements storage.ErrorReportRepository in memory. Used when no
// database is configured and in tests.
type ReportRepo struct {
	mu      sync.RWMutex
	reports []*storage.ErrorReport
}

// NewReportRepo creates an empty in-memory report repository.
func NewReportRepo() *ReportRepo {
	return &ReportRepo{}
}

func (r *ReportRepo) Save(ctx context.Context, report *storage.ErrorReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *report
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.reports = append(r.reports, &cp)
	return nil
}

func (r *ReportRepo) GetRecent(ctx context.Context, limit int) ([]*storage.ErrorReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.reports)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*storage.ErrorReport, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.reports[i])
	}
	return out, nil
}

func (r *ReportRepo) CountByCategory(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, rep := range r.reports {
		counts[rep.Category]++
	}
	return counts, nil
}

func (r *ReportRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.reports[:0]
	var deleted int64
	for _, rep := range r.reports {
		if rep.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rep)
	}
	r.reports = kept
	return deleted, nil
}
