// Package moderation consumes violation events from the client-side
// classifier and decides when a connection has crossed the
// auto-disconnect threshold. Classification itself happens elsewhere;
// only the count and the threshold signal live here.
package moderation

import "log/slog"

// ViolationStore keeps per-connection counts. Backed by Redis in
// production (storage.Service), mocked in tests.
type ViolationStore interface {
	IncrViolation(anonID string) (int64, error)
	ClearViolations(anonID string) error
}

// Service tracks violations against the auto-disconnect threshold.
type Service struct {
	store     ViolationStore
	threshold int64
}

// NewService creates a moderation counter with the given threshold.
func NewService(store ViolationStore, threshold int64) *Service {
	return &Service{store: store, threshold: threshold}
}

// Record counts one violation for the connection and reports whether it
// should now be force-disconnected. Store failures are absorbed: a
// broken counter must not take the coordination engine down with it.
func (s *Service) Record(anonID, violationType string) (count int64, disconnect bool) {
	count, err := s.store.IncrViolation(anonID)
	if err != nil {
		slog.Error("violation count failed", "anonID", anonID, "err", err)
		return 0, false
	}
	slog.Info("moderation violation", "anonID", anonID, "type", violationType, "count", count)
	return count, count >= s.threshold
}

// Clear drops the counter when the connection goes away.
func (s *Service) Clear(anonID string) {
	if err := s.store.ClearViolations(anonID); err != nil {
		slog.Error("violation clear failed", "anonID", anonID, "err", err)
	}
}
