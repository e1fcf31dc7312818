package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stylevault/resilience/internal/infra/storage"
)

func report(id, category string, at time.Time) *storage.ErrorReport {
	return &storage.ErrorReport{
		ID:         id,
		Code:       category + ":m",
		Category:   category,
		Severity:   "medium",
		Message:    "m",
		OccurredAt: at,
	}
}

func TestSaveAndGetRecent(t *testing.T) {
	repo := NewReportRepo()
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Save(ctx, report(id, "network", now.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	recent, err := repo.GetRecent(ctx, 2)
	if err != nil {
		t.Fatalf("get recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].ID != "c" || recent[1].ID != "b" {
		t.Errorf("order = %s, %s, want c, b", recent[0].ID, recent[1].ID)
	}
}

func TestCountByCategory(t *testing.T) {
	repo := NewReportRepo()
	ctx := context.Background()
	now := time.Now()

	repo.Save(ctx, report("a", "network", now))
	repo.Save(ctx, report("b", "network", now))
	repo.Save(ctx, report("c", "database", now))

	counts, err := repo.CountByCategory(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["network"] != 2 || counts["database"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo := NewReportRepo()
	ctx := context.Background()
	now := time.Now()

	repo.Save(ctx, report("old", "network", now.Add(-48*time.Hour)))
	repo.Save(ctx, report("new", "network", now))

	n, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	recent, _ := repo.GetRecent(ctx, 10)
	if len(recent) != 1 || recent[0].ID != "new" {
		t.Errorf("remaining = %v", recent)
	}
}
