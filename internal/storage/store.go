package storage

import (
	"context"

	"harmonia/internal/model"
)

// Store defines the persistence operations for the evaluation archive.
// List operations return newest records first, ties broken by id.
type Store interface {
	Init(ctx context.Context) error
	SaveCandidate(ctx context.Context, candidate model.CandidateRecord) error
	GetCandidate(ctx context.Context, id string) (model.CandidateRecord, bool, error)
	// ListCandidates filters by run when runID is non-empty.
	ListCandidates(ctx context.Context, runID string) ([]model.CandidateRecord, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
}
