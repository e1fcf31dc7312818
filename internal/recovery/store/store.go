// Package store keeps a bounded in-memory log of recent error records for
// statistics, duplicate throttling and pattern detection.
package store

import (
	"sync"

	"github.com/stylevault/resilience/internal/core/domain"
)

// DefaultCapacity is the ring buffer size unless overridden.
const DefaultCapacity = 200

// rapidThreshold is how many recurrences of the same error code flag a
// repeated-failure pattern.
const rapidThreshold = 3

// Statistics summarizes the buffer contents.
type Statistics struct {
	TotalErrors   int                     `json:"total_errors"`
	ByCategory    map[domain.Category]int `json:"by_category"`
	BySeverity    map[string]int          `json:"by_severity"`
	MostRecentIDs []string                `json:"most_recent_ids"`
}

// Pattern flags an error code recurring in rapid succession.
type Pattern struct {
	Code        string `json:"code"`
	Occurrences int    `json:"occurrences"`
}

// EventStore is a capped FIFO buffer of ErrorRecords. Oldest entries are
// evicted once the cap is exceeded.
type EventStore struct {
	mu      sync.RWMutex
	cap     int
	records []*domain.ErrorRecord
}

// New creates a store with the given capacity; cap <= 0 uses DefaultCapacity.
func New(capacity int) *EventStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventStore{
		cap:     capacity,
		records: make([]*domain.ErrorRecord, 0, capacity),
	}
}

// Add appends a record, evicting the oldest entry when full.
func (s *EventStore) Add(rec *domain.ErrorRecord) {
	if rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.cap {
		s.records = s.records[1:]
	}
	s.records = append(s.records, rec)
}

// RecentErrors returns up to limit records, newest first. limit <= 0 returns
// everything.
func (s *EventStore) RecentErrors(limit int) []*domain.ErrorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*domain.ErrorRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out
}

// Len returns the number of buffered records.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Statistics computes aggregate counts over the buffer.
func (s *EventStore) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{
		TotalErrors: len(s.records),
		ByCategory:  make(map[domain.Category]int),
		BySeverity:  make(map[string]int),
	}

	for _, rec := range s.records {
		stats.ByCategory[rec.Category]++
		stats.BySeverity[rec.Severity.String()]++
	}

	const recentN = 10
	n := len(s.records)
	for i := n - 1; i >= 0 && len(stats.MostRecentIDs) < recentN; i-- {
		stats.MostRecentIDs = append(stats.MostRecentIDs, s.records[i].ID)
	}

	return stats
}

// DetectPatterns flags error codes recurring at least three times in the
// buffer, a cheap heuristic for surfacing systemic failures.
func (s *EventStore) DetectPatterns() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, rec := range s.records {
		code := rec.Code()
		if counts[code] == 0 {
			order = append(order, code)
		}
		counts[code]++
	}

	var patterns []Pattern
	for _, code := range order {
		if counts[code] >= rapidThreshold {
			patterns = append(patterns, Pattern{Code: code, Occurrences: counts[code]})
		}
	}
	return patterns
}

// Clear drops all buffered records.
func (s *EventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}
