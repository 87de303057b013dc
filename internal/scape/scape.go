package scape

import "harmonia/internal/expr"

// Fitness is the scoring triple for a control law: trajectory error against
// the target amplitude and frequency, then expression size as a parsimony
// tiebreaker. Published values are always finite.
type Fitness struct {
	AmplitudeError float64
	FrequencyError float64
	Size           int
}

// Less orders fitnesses lexicographically: amplitude error first, frequency
// error second, size last. Smaller is better.
func (f Fitness) Less(other Fitness) bool {
	if f.AmplitudeError != other.AmplitudeError {
		return f.AmplitudeError < other.AmplitudeError
	}
	if f.FrequencyError != other.FrequencyError {
		return f.FrequencyError < other.FrequencyError
	}
	return f.Size < other.Size
}

type Trace map[string]any

// Candidate pairs an expression tree with the evaluation state written back
// by the scape: the scored fitness, the optimized constants and whether a
// sentinel stood in for a non-finite error component.
type Candidate struct {
	Tree      *expr.Tree
	Constants []float64
	Fitness   *Fitness
	Penalized bool
}

func NewCandidate(tree *expr.Tree) *Candidate {
	return &Candidate{Tree: tree}
}
