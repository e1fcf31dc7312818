package storage

import (
	"context"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
)

// ErrorReport is the archived form of a classified error.
type ErrorReport struct {
	ID         string    `db:"id"`
	Code       string    `db:"code"`
	Category   string    `db:"category"`
	Severity   string    `db:"severity"`
	Message    string    `db:"message"`
	Platform   string    `db:"platform"`
	Screen     string    `db:"screen"`
	Action     string    `db:"action"`
	OccurredAt time.Time `db:"occurred_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// ReportFromRecord converts a classified record to its archived form.
// Contexts are sanitized at classification time, so nothing sensitive
// reaches the sink.
func ReportFromRecord(rec *domain.ErrorRecord) *ErrorReport {
	return &ErrorReport{
		ID:         rec.ID,
		Code:       rec.Code(),
		Category:   string(rec.Category),
		Severity:   rec.Severity.String(),
		Message:    rec.Message,
		Platform:   rec.Context.Platform,
		Screen:     rec.Context.Screen,
		Action:     rec.Context.Action,
		OccurredAt: rec.Context.Timestamp,
	}
}

// ErrorReportRepository archives reportable error records.
type ErrorReportRepository interface {
	// Save archives a report
	Save(ctx context.Context, report *ErrorReport) error

	// GetRecent returns up to limit reports, newest first
	GetRecent(ctx context.Context, limit int) ([]*ErrorReport, error)

	// CountByCategory returns archived report counts per category
	CountByCategory(ctx context.Context) (map[string]int, error)

	// DeleteOlderThan prunes reports past the retention window
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
