package dynamics

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func grid(n int, start, stop float64) []float64 {
	return floats.Span(make([]float64, n), start, stop)
}

func TestIntegrateSimpleHarmonicMotion(t *testing.T) {
	osc, err := NewOscillator(OscillatorParams{Omega: 1}, nil)
	if err != nil {
		t.Fatalf("oscillator: %v", err)
	}

	// Fifty periods sampled at 2000 points, started at [0, 1], should
	// track sin/cos without noticeable phase drift.
	times := grid(2000, 0, 50*2*math.Pi)
	traj, err := NewDormandPrince().Integrate(osc.Derivative, times, []float64{0, 1})
	if err != nil {
		t.Fatalf("integrate: %v", err)
	}

	var worst float64
	for k, tk := range traj.Times {
		d0 := math.Abs(traj.States[k][0] - math.Sin(tk))
		d1 := math.Abs(traj.States[k][1] - math.Cos(tk))
		worst = math.Max(worst, math.Max(d0, d1))
	}
	if worst > 5e-3 {
		t.Fatalf("worst deviation from sin/cos = %g, want <= 5e-3", worst)
	}

	// The short horizon should be much tighter than the drift bound.
	for k := 0; k < 200; k++ {
		tk := traj.Times[k]
		if d := math.Abs(traj.States[k][0] - math.Sin(tk)); d > 2e-5 {
			t.Fatalf("early deviation %g at t=%g, want <= 2e-5", d, tk)
		}
	}
}

func TestIntegrateDampedOscillator(t *testing.T) {
	osc, err := NewOscillator(OscillatorParams{Omega: 1, Damping: 3.0 / 8.0}, nil)
	if err != nil {
		t.Fatalf("oscillator: %v", err)
	}

	times := grid(201, 0, 10)
	traj, err := NewDormandPrince().Integrate(osc.Derivative, times, []float64{1, 0})
	if err != nil {
		t.Fatalf("integrate: %v", err)
	}

	// Underdamped closed form for y(0)=1, y'(0)=0.
	rate := 3.0 / 16.0
	wd := math.Sqrt(1 - rate*rate)
	for k, tk := range traj.Times {
		want := math.Exp(-rate*tk) * (math.Cos(wd*tk) + rate/wd*math.Sin(wd*tk))
		if d := math.Abs(traj.States[k][0] - want); d > 1e-4 {
			t.Fatalf("position deviates by %g at t=%g", d, tk)
		}
	}
}

func TestIntegrateExponentialDecay(t *testing.T) {
	field := func(t float64, y, dy []float64) {
		dy[0] = -y[0]
	}

	times := grid(101, 0, 5)
	traj, err := NewDormandPrince().Integrate(field, times, []float64{1})
	if err != nil {
		t.Fatalf("integrate: %v", err)
	}
	for k, tk := range traj.Times {
		if d := math.Abs(traj.States[k][0] - math.Exp(-tk)); d > 1e-5 {
			t.Fatalf("decay deviates by %g at t=%g", d, tk)
		}
	}
}

func TestIntegrateEchoesGrid(t *testing.T) {
	field := func(t float64, y, dy []float64) {
		dy[0] = 0
	}

	times := []float64{0, 0.1, 0.5, 0.7, 3}
	traj, err := NewDormandPrince().Integrate(field, times, []float64{42})
	if err != nil {
		t.Fatalf("integrate: %v", err)
	}
	if traj.Len() != len(times) || traj.Dim() != 1 {
		t.Fatalf("trajectory shape %dx%d, want %dx1", traj.Len(), traj.Dim(), len(times))
	}
	for k := range times {
		if traj.Times[k] != times[k] {
			t.Fatalf("grid point %d echoed as %v, want %v", k, traj.Times[k], times[k])
		}
		if traj.States[k][0] != 42 {
			t.Fatalf("constant solution drifted to %v at index %d", traj.States[k][0], k)
		}
	}
}

func TestIntegrateFiniteTimeBlowup(t *testing.T) {
	// y' = y^2 with y(0)=1 leaves the finite range at t=1.
	field := func(t float64, y, dy []float64) {
		dy[0] = y[0] * y[0]
	}

	traj, err := NewDormandPrince().Integrate(field, grid(21, 0, 2), []float64{1})
	if !errors.Is(err, ErrDiverged) {
		t.Fatalf("got %v, want ErrDiverged", err)
	}
	if traj != nil {
		t.Fatal("diverged integration returned a trajectory")
	}
}

func TestIntegrateNonFiniteInitialState(t *testing.T) {
	field := func(t float64, y, dy []float64) {
		dy[0] = -y[0]
	}
	if _, err := NewDormandPrince().Integrate(field, grid(11, 0, 1), []float64{math.NaN()}); !errors.Is(err, ErrDiverged) {
		t.Fatalf("got %v, want ErrDiverged", err)
	}
}

func TestIntegrateMaxStepsExhausted(t *testing.T) {
	osc, err := NewOscillator(OscillatorParams{Omega: 1}, nil)
	if err != nil {
		t.Fatalf("oscillator: %v", err)
	}

	dp := NewDormandPrince()
	dp.MaxSteps = 5
	if _, err := dp.Integrate(osc.Derivative, grid(2, 0, 100), []float64{0, 1}); !errors.Is(err, ErrDiverged) {
		t.Fatalf("got %v, want ErrDiverged", err)
	}
}

func TestIntegrateRejectsBadArguments(t *testing.T) {
	field := func(t float64, y, dy []float64) {
		dy[0] = 0
	}

	cases := []struct {
		name  string
		field VectorField
		times []float64
		y0    []float64
	}{
		{"nil field", nil, grid(11, 0, 1), []float64{1}},
		{"empty state", field, grid(11, 0, 1), nil},
		{"single point", field, []float64{0}, []float64{1}},
		{"decreasing grid", field, []float64{0, 2, 1}, []float64{1}},
		{"duplicate grid point", field, []float64{0, 1, 1}, []float64{1}},
	}
	for _, tc := range cases {
		_, err := NewDormandPrince().Integrate(tc.field, tc.times, tc.y0)
		if err == nil {
			t.Fatalf("%s: integration succeeded, want error", tc.name)
		}
		if errors.Is(err, ErrDiverged) {
			t.Fatalf("%s: argument error reported as divergence: %v", tc.name, err)
		}
	}
}
