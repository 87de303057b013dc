package dynamics

import (
	"math"
	"testing"
)

func TestOscillatorDerivative(t *testing.T) {
	osc, err := NewOscillator(OscillatorParams{Omega: 2, Damping: 3.0 / 8.0}, nil)
	if err != nil {
		t.Fatalf("oscillator: %v", err)
	}

	dy := make([]float64, 2)
	osc.Derivative(0, []float64{1, 2}, dy)
	if dy[0] != 2 {
		t.Fatalf("dy0 = %v, want 2", dy[0])
	}
	if want := -4.0 - 0.75; dy[1] != want {
		t.Fatalf("dy1 = %v, want %v", dy[1], want)
	}
}

func TestOscillatorActuatorCoupling(t *testing.T) {
	force := func(state []float64) float64 {
		return state[0] + state[1]
	}
	osc, err := NewOscillator(OscillatorParams{Omega: 1, Coupling: 0.5}, force)
	if err != nil {
		t.Fatalf("oscillator: %v", err)
	}

	dy := make([]float64, 2)
	osc.Derivative(0, []float64{1, 2}, dy)
	if want := -1.0 + 0.5*3; dy[1] != want {
		t.Fatalf("dy1 = %v, want %v", dy[1], want)
	}
}

func TestOscillatorNaNActuatorPoisonsDerivative(t *testing.T) {
	force := func(state []float64) float64 {
		return math.NaN()
	}
	// Zero coupling does not mask a NaN control value: 0*NaN is NaN.
	osc, err := NewOscillator(OscillatorParams{Omega: 1}, force)
	if err != nil {
		t.Fatalf("oscillator: %v", err)
	}

	dy := make([]float64, 2)
	osc.Derivative(0, []float64{1, 0}, dy)
	if !math.IsNaN(dy[1]) {
		t.Fatalf("dy1 = %v, want NaN", dy[1])
	}
}

func TestNewOscillatorValidation(t *testing.T) {
	if _, err := NewOscillator(OscillatorParams{Omega: 0}, nil); err == nil {
		t.Fatal("zero omega accepted")
	}
	if _, err := NewOscillator(OscillatorParams{Omega: -1}, nil); err == nil {
		t.Fatal("negative omega accepted")
	}
	if _, err := NewOscillator(OscillatorParams{Omega: 1, Coupling: 1}, nil); err == nil {
		t.Fatal("coupled plant without actuator accepted")
	}
	if _, err := NewOscillator(OscillatorParams{Omega: 1}, nil); err != nil {
		t.Fatalf("uncoupled plant without actuator rejected: %v", err)
	}
}

func TestDefaultOscillatorParams(t *testing.T) {
	p := DefaultOscillatorParams()
	if p.Omega != 1 || p.Damping != 3.0/8.0 || p.Coupling != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}
