// Package jobstore holds the in-memory registry of submitted jobs.
package jobstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"assetgen/internal/domain"
)

// Store maps job ids to their status records. One lock guards the map; every
// record crosses the boundary by value.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]domain.JobRecord
	now  func() time.Time
}

// New constructs an empty store.
func New() *Store {
	return &Store{jobs: make(map[string]domain.JobRecord), now: time.Now}
}

// Put inserts or replaces a record.
func (s *Store) Put(rec domain.JobRecord) {
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.mu.Lock()
	s.jobs[rec.JobID] = rec.Clone()
	s.mu.Unlock()
}

// Update applies patch to the record and returns the post-update copy.
func (s *Store) Update(id string, patch domain.JobPatch) (domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return domain.JobRecord{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	patch.Apply(&rec, s.now().UTC())
	s.jobs[id] = rec
	return rec.Clone(), nil
}

// Get returns a copy of the record.
func (s *Store) Get(id string) (domain.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return domain.JobRecord{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return rec.Clone(), nil
}

// List returns copies of every record ordered by creation time, newest first.
func (s *Store) List() []domain.JobRecord {
	s.mu.RLock()
	out := make([]domain.JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len reports how many jobs are tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
