// Package dynamics integrates the oscillator plant over a fixed evaluation
// grid. The integrator is an embedded Dormand-Prince 5(4) pair with adaptive
// step control; steps are clamped so every grid point is hit exactly, and a
// failure to advance surfaces as ErrDiverged rather than a partial result.
package dynamics

import (
	"errors"
	"fmt"
	"math"
)

// ErrDiverged reports that the integrator could not carry the solution
// across the requested grid, either because the state left the finite range
// or because step control stalled.
var ErrDiverged = errors.New("integration diverged")

// VectorField computes dy/dt in place. Implementations must not retain y or
// dy across calls.
type VectorField func(t float64, y, dy []float64)

const (
	defaultRTol     = 1e-6
	defaultATol     = 1e-12
	defaultMaxSteps = 100000

	machineEpsilon = 0x1p-52

	// Step-size controller bounds, after Hairer, Norsett & Wanner.
	stepSafety = 0.9
	stepShrink = 0.2
	stepGrow   = 10.0
)

// Dormand-Prince 5(4) tableau. Row seven of the stage weights equals the
// fifth-order solution weights, giving the first-same-as-last property.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	dpE = [7]float64{
		71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920,
		-17253.0 / 339200, 22.0 / 525, -1.0 / 40,
	}
)

// DormandPrince integrates an initial value problem with an adaptive
// embedded Runge-Kutta 5(4) scheme. The zero value is not usable; construct
// with NewDormandPrince and override fields as needed.
type DormandPrince struct {
	// RTol and ATol weight the local error estimate per component as
	// atol + rtol*|y|.
	RTol float64
	ATol float64
	// MaxSteps bounds attempted steps across the whole grid.
	MaxSteps int
}

// NewDormandPrince returns an integrator with the reference tolerances:
// relative 1e-6, absolute 1e-12, at most 100000 steps.
func NewDormandPrince() *DormandPrince {
	return &DormandPrince{
		RTol:     defaultRTol,
		ATol:     defaultATol,
		MaxSteps: defaultMaxSteps,
	}
}

// Integrate advances y0 from times[0] across every grid point and returns
// the sampled trajectory. The grid must be strictly increasing with at
// least two points. On divergence the error wraps ErrDiverged and no
// trajectory is returned; substituting a poisoned trajectory is the
// caller's decision.
func (dp *DormandPrince) Integrate(field VectorField, times, y0 []float64) (*Trajectory, error) {
	if field == nil {
		return nil, errors.New("vector field is required")
	}
	if len(y0) == 0 {
		return nil, errors.New("initial state is empty")
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("grid needs at least 2 points, got %d", len(times))
	}
	for k := 1; k < len(times); k++ {
		if times[k] <= times[k-1] {
			return nil, fmt.Errorf("grid must be strictly increasing at index %d", k)
		}
	}
	if dp.RTol <= 0 || dp.ATol <= 0 {
		return nil, fmt.Errorf("tolerances must be positive, got rtol=%g atol=%g", dp.RTol, dp.ATol)
	}
	if dp.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", dp.MaxSteps)
	}

	n := len(y0)
	y := append([]float64(nil), y0...)
	t := times[0]

	var k [7][]float64
	for s := range k {
		k[s] = make([]float64, n)
	}
	ytmp := make([]float64, n)
	ynew := make([]float64, n)
	yerr := make([]float64, n)

	if !allFinite(y) {
		return nil, fmt.Errorf("initial state not finite: %w", ErrDiverged)
	}
	field(t, y, k[0])
	if !allFinite(k[0]) {
		return nil, fmt.Errorf("derivative not finite at t=%g: %w", t, ErrDiverged)
	}

	traj := newTrajectory(times, n)
	traj.record(0, y)

	h := dp.initialStep(field, t, y, k[0], times[len(times)-1]-t)
	steps := 0
	rejected := false

	for gi := 1; gi < len(times); gi++ {
		target := times[gi]
		for t < target {
			if steps >= dp.MaxSteps {
				return nil, fmt.Errorf("no convergence within %d steps at t=%g: %w", dp.MaxSteps, t, ErrDiverged)
			}
			steps++

			hitGrid := false
			if t+h >= target {
				h = target - t
				hitGrid = true
			}

			dp.stages(field, t, h, y, &k, ytmp, ynew, yerr)

			errNorm := 0.0
			for i := 0; i < n; i++ {
				sc := dp.ATol + dp.RTol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
				r := yerr[i] / sc
				errNorm += r * r
			}
			errNorm = math.Sqrt(errNorm / float64(n))

			if math.IsNaN(errNorm) || errNorm > 1 {
				// Reject. NaN means a stage escaped the finite range;
				// back off hard and retry.
				fac := 0.1
				if !math.IsNaN(errNorm) {
					fac = math.Max(stepShrink, stepSafety*math.Pow(errNorm, -0.2))
				}
				h *= fac
				rejected = true
				if h <= stepFloor(t, target) {
					return nil, fmt.Errorf("step size underflow at t=%g: %w", t, ErrDiverged)
				}
				continue
			}

			if !allFinite(ynew) {
				return nil, fmt.Errorf("state not finite at t=%g: %w", t, ErrDiverged)
			}

			if hitGrid {
				t = target
			} else {
				t += h
			}
			copy(y, ynew)
			copy(k[0], k[6])

			fac := stepGrow
			if errNorm > 0 {
				fac = math.Min(stepGrow, math.Max(stepShrink, stepSafety*math.Pow(errNorm, -0.2)))
			}
			if rejected {
				// Hold the step after a rejection so the controller does
				// not oscillate.
				fac = math.Min(fac, 1)
			}
			rejected = false
			h *= fac
		}
		traj.record(gi, y)
	}
	return traj, nil
}

// stages evaluates the six intermediate stages plus the first-same-as-last
// stage, filling ynew with the fifth-order solution and yerr with the
// embedded error estimate.
func (dp *DormandPrince) stages(field VectorField, t, h float64, y []float64, k *[7][]float64, ytmp, ynew, yerr []float64) {
	n := len(y)
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j := 0; j < s; j++ {
				sum += dpA[s][j] * k[j][i]
			}
			ytmp[i] = y[i] + h*sum
		}
		if s == 6 {
			copy(ynew, ytmp)
		}
		field(t+dpC[s]*h, ytmp, k[s])
	}
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < 7; j++ {
			sum += dpE[j] * k[j][i]
		}
		yerr[i] = h * sum
	}
}

// initialStep picks a starting step from the scaled norms of the state and
// its first two derivative probes, after Hairer's hinit.
func (dp *DormandPrince) initialStep(field VectorField, t float64, y, f0 []float64, span float64) float64 {
	n := len(y)
	d0, d1 := 0.0, 0.0
	for i := 0; i < n; i++ {
		sc := dp.ATol + dp.RTol*math.Abs(y[i])
		d0 += (y[i] / sc) * (y[i] / sc)
		d1 += (f0[i] / sc) * (f0[i] / sc)
	}
	d0 = math.Sqrt(d0 / float64(n))
	d1 = math.Sqrt(d1 / float64(n))

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, span)

	y1 := make([]float64, n)
	f1 := make([]float64, n)
	for i := 0; i < n; i++ {
		y1[i] = y[i] + h0*f0[i]
	}
	field(t+h0, y1, f1)

	d2 := 0.0
	for i := 0; i < n; i++ {
		sc := dp.ATol + dp.RTol*math.Abs(y[i])
		r := (f1[i] - f0[i]) / sc
		d2 += r * r
	}
	d2 = math.Sqrt(d2/float64(n)) / h0

	h1 := math.Max(1e-6, h0*1e-3)
	if m := math.Max(d1, d2); m > 1e-15 {
		h1 = math.Pow(0.01/m, 0.2)
	}
	return math.Min(math.Min(100*h0, h1), span)
}

// stepFloor is the smallest step that still moves t measurably toward the
// target; anything below it means the controller has stalled.
func stepFloor(t, target float64) float64 {
	return 16 * machineEpsilon * math.Max(math.Abs(t), math.Abs(target))
}

func allFinite(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
