package dynamics

import "math"

// Trajectory is the sampled solution of an initial value problem on a fixed
// time grid. States[k] holds the full state vector at Times[k].
type Trajectory struct {
	Times  []float64
	States [][]float64
}

func newTrajectory(times []float64, dim int) *Trajectory {
	states := make([][]float64, len(times))
	for k := range states {
		states[k] = make([]float64, dim)
	}
	return &Trajectory{
		Times:  append([]float64(nil), times...),
		States: states,
	}
}

// Poisoned builds a trajectory on the given grid whose every state entry is
// NaN. Callers substitute it when integration fails so that downstream
// scoring sees the failure in-band instead of a missing result.
func Poisoned(times []float64, dim int) *Trajectory {
	tr := newTrajectory(times, dim)
	for _, row := range tr.States {
		for i := range row {
			row[i] = math.NaN()
		}
	}
	return tr
}

// Len reports the number of samples.
func (tr *Trajectory) Len() int {
	return len(tr.Times)
}

// Dim reports the state dimension, zero for an empty trajectory.
func (tr *Trajectory) Dim() int {
	if len(tr.States) == 0 {
		return 0
	}
	return len(tr.States[0])
}

// At returns the state row at sample k. The row is shared, not copied.
func (tr *Trajectory) At(k int) []float64 {
	return tr.States[k]
}

// Component copies component i of every sample into a fresh slice, in grid
// order.
func (tr *Trajectory) Component(i int) []float64 {
	out := make([]float64, len(tr.States))
	for k, row := range tr.States {
		out[k] = row[i]
	}
	return out
}

func (tr *Trajectory) record(k int, y []float64) {
	copy(tr.States[k], y)
}
