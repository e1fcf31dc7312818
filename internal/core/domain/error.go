package domain

import (
	"time"
)

// Category identifies the failure domain of an error.
type Category string

const (
	CategoryNetwork         Category = "network"
	CategoryAuthentication  Category = "authentication"
	CategoryValidation      Category = "validation"
	CategoryPermission      Category = "permission"
	CategoryStorage         Category = "storage"
	CategoryAIService       Category = "ai_service"
	CategoryImageProcessing Category = "image_processing"
	CategoryDatabase        Category = "database"
	CategoryUI              Category = "ui"
	CategorySystem          Category = "system"
	CategoryUnknown         Category = "unknown"
)

// AllCategories lists every valid category. Order is stable for reporting.
var AllCategories = []Category{
	CategoryNetwork,
	CategoryAuthentication,
	CategoryValidation,
	CategoryPermission,
	CategoryStorage,
	CategoryAIService,
	CategoryImageProcessing,
	CategoryDatabase,
	CategoryUI,
	CategorySystem,
	CategoryUnknown,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range AllCategories {
		if c == k {
			return true
		}
	}
	return false
}

// Severity is the ordered urgency level of an error.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// RecoveryStrategy tags how a failure can be addressed.
type RecoveryStrategy string

const (
	StrategyRetry    RecoveryStrategy = "retry"
	StrategyRefresh  RecoveryStrategy = "refresh"
	StrategyNavigate RecoveryStrategy = "navigate"
	StrategyLogout   RecoveryStrategy = "logout"
	StrategyFallback RecoveryStrategy = "fallback"
	StrategyNone     RecoveryStrategy = "none"
)

// ContextValue is the closed value type allowed in ErrorContext.AdditionalData.
// Only strings, numbers, bools and nil cross the boundary; anything richer
// must be flattened by the caller.
type ContextValue any

// ErrorContext carries structured metadata captured at classification time.
type ErrorContext struct {
	Timestamp      time.Time               `json:"timestamp"`
	Platform       string                  `json:"platform,omitempty"`
	Screen         string                  `json:"screen,omitempty"`
	Action         string                  `json:"action,omitempty"`
	AdditionalData map[string]ContextValue `json:"additional_data,omitempty"`
}

// ErrorRecord is the structured, classified representation of a failure.
// Records are immutable once built; all fields are set by the classifier.
type ErrorRecord struct {
	ID          string       `json:"id"`
	Message     string       `json:"message"`
	UserMessage string       `json:"user_message"`
	Category    Category     `json:"category"`
	Severity    Severity     `json:"severity"`
	Context     ErrorContext `json:"context"`

	Recoverable bool `json:"recoverable"`
	Retryable   bool `json:"retryable"`
	Reportable  bool `json:"reportable"`

	RecoveryStrategies []RecoveryStrategy `json:"recovery_strategies"`

	// Underlying holds the original error for errors.Is/As chains.
	// It is never serialized or shown to users.
	Underlying error `json:"-"`
}

// Error implements the error interface with the technical message.
func (e *ErrorRecord) Error() string {
	return e.Message
}

// Unwrap exposes the original error to errors.Is/As.
func (e *ErrorRecord) Unwrap() error {
	return e.Underlying
}

// Code returns a stable identity for duplicate detection: category plus
// technical message. Two occurrences of the same failure share a code even
// though their record IDs differ.
func (e *ErrorRecord) Code() string {
	return string(e.Category) + ":" + e.Message
}
