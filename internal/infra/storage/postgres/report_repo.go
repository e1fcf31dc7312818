package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/stylevault/resilience/internal/infra/storage"
)

// ReportRepo implements storage.ErrorReportRepository using PostgreSQL.
type ReportRepo struct {
	db *DB
}

// NewReportRepo creates a new PostgreSQL error report repository.
func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Save archives a report.
func (r *ReportRepo) Save(ctx context.Context, report *storage.ErrorReport) error {
	query := `
		INSERT INTO error_reports (id, code, category, severity, message, platform, screen, action, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		report.ID,
		report.Code,
		report.Category,
		report.Severity,
		report.Message,
		report.Platform,
		report.Screen,
		report.Action,
		report.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save error report: %w", err)
	}
	return nil
}

// GetRecent returns up to limit reports, newest first.
func (r *ReportRepo) GetRecent(ctx context.Context, limit int) ([]*storage.ErrorReport, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, code, category, severity, message, platform, screen, action, occurred_at, created_at
		FROM error_reports
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	var rows []storage.ErrorReport
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent reports: %w", err)
	}

	out := make([]*storage.ErrorReport, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

// CountByCategory returns archived report counts per category.
func (r *ReportRepo) CountByCategory(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT category, COUNT(*) AS count
		FROM error_reports
		GROUP BY category
	`

	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

// DeleteOlderThan prunes reports past the retention window.
func (r *ReportRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM error_reports WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune reports: %w", err)
	}
	return res.RowsAffected()
}
