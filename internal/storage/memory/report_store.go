package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

const defaultCapacity = 500

// ReportStore keeps the most recent audits in memory. Once full, saving a
// new audit evicts the oldest.
type ReportStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	records  map[string]audit.Record
}

var _ audit.ReportStore = (*ReportStore)(nil)

// NewReportStore returns a store holding at most capacity records.
func NewReportStore(capacity int) *ReportStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &ReportStore{
		capacity: capacity,
		records:  make(map[string]audit.Record),
	}
}

// SaveReport stores rec, replacing any record with the same ID.
func (s *ReportStore) SaveReport(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec
	for len(s.order) > s.capacity {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// GetReport returns the record or audit.ErrNotFound.
func (s *ReportStore) GetReport(_ context.Context, id string) (audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return audit.Record{}, audit.ErrNotFound
	}
	return rec, nil
}

// ListReports returns summaries newest first.
func (s *ReportStore) ListReports(_ context.Context, limit, offset int) ([]audit.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Summary{}
	for i := len(s.order) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[s.order[i]].Summarize())
	}
	return out, nil
}
