// Package classify converts raw failures into structured ErrorRecords.
//
// Classification is pure: no storage, no notification. Persistence and
// broadcast are handled by the store and broadcast packages.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stylevault/resilience/internal/core/domain"
)

// Classifier builds ErrorRecords from raw failures.
type Classifier struct {
	tone       Tone
	production bool
	platform   string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTone selects the user-message tone set.
func WithTone(t Tone) Option {
	return func(c *Classifier) { c.tone = t }
}

// WithProduction marks the classifier as running in a production build.
// Low-severity records are not reportable in production.
func WithProduction(production bool) Option {
	return func(c *Classifier) { c.production = production }
}

// WithPlatform sets the platform identifier stamped into record contexts.
func WithPlatform(platform string) Option {
	return func(c *Classifier) { c.platform = platform }
}

// New creates a Classifier with neutral tone and non-production defaults.
func New(opts ...Option) *Classifier {
	c := &Classifier{tone: ToneNeutral, platform: "go"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyOptions override inferred fields for a single classification.
type ClassifyOptions struct {
	Category domain.Category
	Severity *domain.Severity
	Context  *domain.ErrorContext
}

// Classify converts a raw failure into an ErrorRecord.
//
// An input that is already an *ErrorRecord is returned unchanged, so
// classification is idempotent. Otherwise category and severity are inferred
// from the error chain unless overridden, the user message is looked up from
// the tone table, and the context is sanitized before the record is built.
func (c *Classifier) Classify(raw any, opts ...ClassifyOptions) *domain.ErrorRecord {
	if rec, ok := raw.(*domain.ErrorRecord); ok && rec != nil && rec.ID != "" {
		return rec
	}

	var opt ClassifyOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	err := asError(raw)

	category := opt.Category
	if category == "" || !category.Valid() {
		category = inferCategory(err)
	}

	severity := inferSeverity(err, category)
	if opt.Severity != nil {
		severity = *opt.Severity
	}

	ctx := domain.ErrorContext{Timestamp: time.Now(), Platform: c.platform}
	if opt.Context != nil {
		ctx = *opt.Context
		if ctx.Timestamp.IsZero() {
			ctx.Timestamp = time.Now()
		}
		if ctx.Platform == "" {
			ctx.Platform = c.platform
		}
	}
	ctx = domain.SanitizeContext(ctx)

	return &domain.ErrorRecord{
		ID:                 uuid.New().String(),
		Message:            err.Error(),
		UserMessage:        UserMessage(category, c.tone),
		Category:           category,
		Severity:           severity,
		Context:            ctx,
		Recoverable:        defaultRecoverable(category),
		Retryable:          defaultRetryable(category),
		Reportable:         c.reportable(severity),
		RecoveryStrategies: defaultStrategies(category),
		Underlying:         err,
	}
}

func (c *Classifier) reportable(sev domain.Severity) bool {
	if sev >= domain.SeverityHigh {
		return true
	}
	return !c.production
}

func asError(raw any) error {
	switch v := raw.(type) {
	case nil:
		return errors.New("unknown error")
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}

func defaultRecoverable(cat domain.Category) bool {
	switch cat {
	case domain.CategoryAuthentication, domain.CategoryPermission:
		return false
	default:
		return true
	}
}

func defaultRetryable(cat domain.Category) bool {
	switch cat {
	case domain.CategoryValidation, domain.CategoryPermission:
		return false
	default:
		return true
	}
}

func defaultStrategies(cat domain.Category) []domain.RecoveryStrategy {
	switch cat {
	case domain.CategoryNetwork:
		return []domain.RecoveryStrategy{domain.StrategyRetry, domain.StrategyRefresh}
	case domain.CategoryAuthentication:
		return []domain.RecoveryStrategy{domain.StrategyLogout, domain.StrategyNavigate}
	case domain.CategoryValidation:
		return []domain.RecoveryStrategy{domain.StrategyNone}
	case domain.CategoryPermission:
		return []domain.RecoveryStrategy{domain.StrategyNavigate, domain.StrategyNone}
	case domain.CategoryStorage, domain.CategoryAIService, domain.CategoryImageProcessing:
		return []domain.RecoveryStrategy{domain.StrategyRetry, domain.StrategyFallback}
	case domain.CategoryDatabase:
		return []domain.RecoveryStrategy{domain.StrategyRetry, domain.StrategyRefresh}
	case domain.CategoryUI:
		return []domain.RecoveryStrategy{domain.StrategyRefresh}
	default:
		return []domain.RecoveryStrategy{domain.StrategyRetry, domain.StrategyNone}
	}
}

// inferCategory walks the error chain looking for typed errors first, then
// falls back to message patterns.
func inferCategory(err error) domain.Category {
	// Postgres errors carry SQLSTATE codes.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return domain.CategoryDatabase
	}

	// gRPC status codes from AI-service clients.
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unauthenticated:
			return domain.CategoryAuthentication
		case codes.PermissionDenied:
			return domain.CategoryPermission
		case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
			return domain.CategoryValidation
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
			return domain.CategoryNetwork
		case codes.ResourceExhausted:
			return domain.CategoryAIService
		default:
			return domain.CategorySystem
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return domain.CategoryNetwork
	}

	s := strings.ToLower(err.Error())
	switch {
	case containsAny(s, "unauthorized", "401", "invalid credentials", "session expired", "jwt"):
		return domain.CategoryAuthentication
	case containsAny(s, "forbidden", "403", "permission denied", "not allowed"):
		return domain.CategoryPermission
	case containsAny(s, "validation", "invalid input", "required field", "422"):
		return domain.CategoryValidation
	case containsAny(s, "timeout", "connection refused", "connection reset", "network", "dns", "502", "503", "504"):
		return domain.CategoryNetwork
	case containsAny(s, "quota", "rate limit", "model overloaded", "inference", "analysis failed", "429"):
		return domain.CategoryAIService
	case containsAny(s, "image decode", "unsupported format", "resize", "exif", "pixel"):
		return domain.CategoryImageProcessing
	case containsAny(s, "sql", "database", "constraint", "deadlock", "duplicate key"):
		return domain.CategoryDatabase
	case containsAny(s, "disk", "storage full", "bucket", "upload failed", "file not found"):
		return domain.CategoryStorage
	default:
		return domain.CategoryUnknown
	}
}

func inferSeverity(err error, cat domain.Category) domain.Severity {
	switch cat {
	case domain.CategoryAuthentication, domain.CategoryDatabase:
		return domain.SeverityHigh
	case domain.CategoryValidation, domain.CategoryUI:
		return domain.SeverityLow
	default:
		if errors.Is(err, context.Canceled) {
			return domain.SeverityLow
		}
		return domain.SeverityMedium
	}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
