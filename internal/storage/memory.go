package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"harmonia/internal/model"
)

type MemoryStore struct {
	mu         sync.RWMutex
	candidates map[string]model.CandidateRecord
	runs       map[string]model.RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidates = make(map[string]model.CandidateRecord)
	s.runs = make(map[string]model.RunRecord)
	return nil
}

func (s *MemoryStore) SaveCandidate(_ context.Context, candidate model.CandidateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.candidates == nil {
		return errors.New("store is not initialized")
	}
	s.candidates[candidate.ID] = candidate
	return nil
}

func (s *MemoryStore) GetCandidate(_ context.Context, id string) (model.CandidateRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidate, ok := s.candidates[id]
	return candidate, ok, nil
}

func (s *MemoryStore) ListCandidates(_ context.Context, runID string) ([]model.CandidateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.CandidateRecord, 0, len(s.candidates))
	for _, candidate := range s.candidates {
		if runID != "" && candidate.RunID != runID {
			continue
		}
		records = append(records, candidate)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs == nil {
		return errors.New("store is not initialized")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		records = append(records, run)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}
