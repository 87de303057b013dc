package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// FitnessRecord is the persisted form of a scoring triple.
type FitnessRecord struct {
	AmplitudeError float64 `json:"amplitude_error"`
	FrequencyError float64 `json:"frequency_error"`
	Size           int     `json:"size"`
}

// CandidateRecord archives one evaluated control law: the expression in its
// canonical prefix form, the fitted constants and the published fitness.
type CandidateRecord struct {
	VersionedRecord
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Expression string        `json:"expression"`
	Variables  []string      `json:"variables"`
	Constants  []string      `json:"constants"`
	Optimized  []float64     `json:"optimized"`
	Fitness    FitnessRecord `json:"fitness"`
	Penalized  bool          `json:"penalized"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RunRecord archives one batch of evaluations together with the experiment
// it was scored under.
type RunRecord struct {
	VersionedRecord
	ID              string    `json:"id"`
	Scape           string    `json:"scape"`
	Omega           float64   `json:"omega"`
	Damping         float64   `json:"damping"`
	Coupling        float64   `json:"coupling"`
	Initial         []float64 `json:"initial"`
	GridStart       float64   `json:"grid_start"`
	GridStop        float64   `json:"grid_stop"`
	GridPoints      int       `json:"grid_points"`
	TargetAmplitude float64   `json:"target_amplitude"`
	TargetFrequency float64   `json:"target_frequency"`
	NaNSentinel     float64   `json:"nan_sentinel"`
	Candidates      int       `json:"candidates"`
	BestCandidateID string    `json:"best_candidate_id"`
	CreatedAt       time.Time `json:"created_at"`
}
