// Package broadcast is the process-wide error handler: it owns the active
// error map, the single global error slot, rolling statistics and listener
// notification.
//
// One Handler is constructed at application start and passed by reference to
// every consumer. Tests construct their own instances.
package broadcast

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stylevault/resilience/internal/core/domain"
	"github.com/stylevault/resilience/internal/recovery/classify"
	"github.com/stylevault/resilience/internal/recovery/metrics"
	"github.com/stylevault/resilience/internal/recovery/retry"
	"github.com/stylevault/resilience/internal/recovery/store"
)

// throttleWindow limits duplicate logging: the same error code is logged at
// most once per window. Every occurrence still counts toward statistics.
const throttleWindow = 1 * time.Second

// Reporter forwards reportable records to an external sink (database,
// cache, telemetry). Delivery is best-effort and must never block reporting.
type Reporter interface {
	Report(ctx context.Context, rec *domain.ErrorRecord) error
}

// Listener receives broadcast events. Nil callbacks are skipped.
type Listener struct {
	OnError       func(rec *domain.ErrorRecord)
	OnGlobalError func(rec *domain.ErrorRecord)
}

// ReportContext identifies the reporting call site for id derivation.
type ReportContext struct {
	ID        string // explicit id wins
	Component string
	Action    string
}

// Statistics is the rolling session summary.
type Statistics struct {
	TotalErrors     int                     `json:"total_errors"`
	ByCategory      map[domain.Category]int `json:"by_category"`
	BySeverity      map[string]int          `json:"by_severity"`
	RecoveredErrors int                     `json:"recovered_errors"`
	SessionStart    time.Time               `json:"session_start"`
}

// Handler is the global error broadcast. All mutations go through its
// methods; statistics and the active map are updated under one lock so a
// half-applied report is never observable.
type Handler struct {
	classifier *classify.Classifier
	events     *store.EventStore
	log        *slog.Logger

	mu           sync.Mutex
	active       map[string]*domain.ErrorRecord
	order        []string // active ids, insertion order, for legacy Clear("")
	global       *domain.ErrorRecord
	stats        Statistics
	lastLogged   map[string]time.Time
	listeners    map[int]Listener
	nextListener int
	executors    map[string]*retry.Executor

	reporters []Reporter
}

// New creates a Handler. Reporters are optional sinks for reportable records.
func New(classifier *classify.Classifier, events *store.EventStore, log *slog.Logger, reporters ...Reporter) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		classifier: classifier,
		events:     events,
		log:        log,
		active:     make(map[string]*domain.ErrorRecord),
		stats: Statistics{
			ByCategory:   make(map[domain.Category]int),
			BySeverity:   make(map[string]int),
			SessionStart: time.Now(),
		},
		lastLogged: make(map[string]time.Time),
		listeners:  make(map[int]Listener),
		executors:  make(map[string]*retry.Executor),
		reporters:  reporters,
	}
}

// Report classifies raw if necessary, stores the record under a derived id
// and notifies listeners. CRITICAL records also occupy the global slot.
// The derived id is returned.
func (h *Handler) Report(ctx context.Context, raw any, rctx ReportContext) string {
	rec := h.classifier.Classify(raw)
	id := deriveID(rctx)

	h.mu.Lock()
	if _, exists := h.active[id]; !exists {
		h.order = append(h.order, id)
	}
	h.active[id] = rec

	h.stats.TotalErrors++
	h.stats.ByCategory[rec.Category]++
	h.stats.BySeverity[rec.Severity.String()]++

	globalChanged := false
	if rec.Severity == domain.SeverityCritical {
		h.global = rec
		globalChanged = true
	}

	code := rec.Code()
	now := time.Now()
	shouldLog := now.Sub(h.lastLogged[code]) >= throttleWindow
	if shouldLog {
		h.lastLogged[code] = now
	}

	listeners := h.snapshotListeners()
	activeCount := len(h.active)
	h.mu.Unlock()

	metrics.ErrorsReported.WithLabelValues(string(rec.Category), rec.Severity.String()).Inc()
	metrics.ActiveErrors.Set(float64(activeCount))

	if h.events != nil {
		h.events.Add(rec)
	}

	if shouldLog {
		h.log.Error("Error reported",
			"id", id,
			"category", rec.Category,
			"severity", rec.Severity.String(),
			"error", rec.Message,
		)
	}

	if rec.Reportable {
		h.forward(ctx, rec)
	}

	for _, l := range listeners {
		if l.OnError != nil {
			l.OnError(rec)
		}
		if globalChanged && l.OnGlobalError != nil {
			l.OnGlobalError(rec)
		}
	}

	return id
}

// forward hands the record to every reporter without blocking the caller.
func (h *Handler) forward(ctx context.Context, rec *domain.ErrorRecord) {
	for _, r := range h.reporters {
		go func(r Reporter) {
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := r.Report(fctx, rec); err != nil {
				h.log.Warn("Error report sink failed", "error", err)
			}
		}(r)
	}
}

// Clear removes one active error. An empty id removes the most recently
// reported error.
//
// Deprecated: the empty-id fallback is legacy behavior; pass the id returned
// by Report.
func (h *Handler) Clear(id string) {
	h.mu.Lock()
	if id == "" && len(h.order) > 0 {
		id = h.order[len(h.order)-1]
	}
	h.removeLocked(id)
	activeCount := len(h.active)
	h.mu.Unlock()

	metrics.ActiveErrors.Set(float64(activeCount))
}

// ClearAll empties the active map and the global slot. Historical statistics
// counters are kept.
func (h *Handler) ClearAll() {
	h.mu.Lock()
	h.active = make(map[string]*domain.ErrorRecord)
	h.order = h.order[:0]
	h.global = nil
	h.mu.Unlock()

	metrics.ActiveErrors.Set(0)
}

// removeLocked is called with h.mu held.
func (h *Handler) removeLocked(id string) {
	if _, ok := h.active[id]; !ok {
		return
	}
	delete(h.active, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	if h.global != nil {
		// The global slot clears only when its record is cleared.
		stillActive := false
		for _, rec := range h.active {
			if rec == h.global {
				stillActive = true
				break
			}
		}
		if !stillActive {
			h.global = nil
		}
	}
}

// RecoverFromError runs the recovery action for an active error. Success
// removes the error and bumps the recovered counter; a failing action is
// itself classified and reported rather than propagated.
func (h *Handler) RecoverFromError(ctx context.Context, id string, action func(ctx context.Context) error) {
	h.mu.Lock()
	_, ok := h.active[id]
	h.mu.Unlock()
	if !ok {
		return
	}

	if action != nil {
		if err := action(ctx); err != nil {
			h.Report(ctx, err, ReportContext{Component: "recovery", Action: "recover:" + id})
			return
		}
	}

	h.mu.Lock()
	h.removeLocked(id)
	h.stats.RecoveredErrors++
	activeCount := len(h.active)
	h.mu.Unlock()

	metrics.ErrorsRecovered.Inc()
	metrics.ActiveErrors.Set(float64(activeCount))
}

// GlobalError returns the current global error, or nil.
func (h *Handler) GlobalError() *domain.ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.global
}

// ActiveError returns the active record for an id, or nil.
func (h *Handler) ActiveError(id string) *domain.ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active[id]
}

// Statistics returns a copy of the rolling session statistics.
func (h *Handler) Statistics() Statistics {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := Statistics{
		TotalErrors:     h.stats.TotalErrors,
		ByCategory:      make(map[domain.Category]int, len(h.stats.ByCategory)),
		BySeverity:      make(map[string]int, len(h.stats.BySeverity)),
		RecoveredErrors: h.stats.RecoveredErrors,
		SessionStart:    h.stats.SessionStart,
	}
	for k, v := range h.stats.ByCategory {
		out.ByCategory[k] = v
	}
	for k, v := range h.stats.BySeverity {
		out.BySeverity[k] = v
	}
	return out
}

// ErrorRate returns errors per minute since session start.
func (h *Handler) ErrorRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	mins := time.Since(h.stats.SessionStart).Minutes()
	if mins <= 0 {
		return float64(h.stats.TotalErrors)
	}
	return float64(h.stats.TotalErrors) / mins
}

// Subscribe registers a listener and returns its unsubscribe function.
func (h *Handler) Subscribe(l Listener) func() {
	h.mu.Lock()
	id := h.nextListener
	h.nextListener++
	h.listeners[id] = l
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// snapshotListeners is called with h.mu held.
func (h *Handler) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, l)
	}
	return out
}

// RegisterExecutor enrolls a retry executor for foreground-return retries.
// Returns an unregister function for teardown.
func (h *Handler) RegisterExecutor(name string, e *retry.Executor) func() {
	h.mu.Lock()
	h.executors[name] = e
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.executors, name)
		h.mu.Unlock()
	}
}

// AppForeground is the host lifecycle hook: when the app returns to the
// foreground, any registered executor holding a retryable failure is retried.
func (h *Handler) AppForeground(ctx context.Context) {
	h.mu.Lock()
	pending := make(map[string]*retry.Executor, len(h.executors))
	for name, e := range h.executors {
		if last := e.LastError(); last != nil && last.Retryable {
			pending[name] = e
		}
	}
	h.mu.Unlock()

	for name, e := range pending {
		if _, err := e.Retry(ctx); err != nil {
			h.log.Debug("Foreground retry failed", "executor", name, "error", err)
		}
	}
}

// deriveID picks the active-map key: explicit id, hashed component/action
// pair, or a fresh uuid.
func deriveID(rctx ReportContext) string {
	if rctx.ID != "" {
		return rctx.ID
	}
	if rctx.Component != "" || rctx.Action != "" {
		hash := fnv.New32a()
		fmt.Fprintf(hash, "%s:%s", rctx.Component, rctx.Action)
		return fmt.Sprintf("%s-%s-%08x", rctx.Component, rctx.Action, hash.Sum32())
	}
	return uuid.New().String()
}
