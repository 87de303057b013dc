package dynamics

import (
	"errors"
	"fmt"
)

// Actuator is a feedback control law sampled on the instantaneous state.
type Actuator func(state []float64) float64

// OscillatorParams are the physical coefficients of the plant.
type OscillatorParams struct {
	// Omega is the natural angular frequency of the restoring force.
	Omega float64
	// Damping scales the velocity term.
	Damping float64
	// Coupling scales the actuator contribution. Zero decouples the
	// control law from the plant entirely.
	Coupling float64
}

// DefaultOscillatorParams returns the reference plant: unit frequency,
// damping 3/8, actuator decoupled.
func DefaultOscillatorParams() OscillatorParams {
	return OscillatorParams{Omega: 1, Damping: 3.0 / 8.0, Coupling: 0}
}

// Oscillator is a damped harmonic oscillator driven through an actuator:
//
//	y0' = y1
//	y1' = -omega^2*y0 - damping*y1 + coupling*u(y)
//
// where u is the control law under evaluation.
type Oscillator struct {
	params OscillatorParams
	force  Actuator
}

// NewOscillator validates the coefficients and binds the actuator. A nil
// actuator is allowed only for an uncoupled plant.
func NewOscillator(params OscillatorParams, force Actuator) (*Oscillator, error) {
	if params.Omega <= 0 {
		return nil, fmt.Errorf("omega must be positive, got %g", params.Omega)
	}
	if force == nil && params.Coupling != 0 {
		return nil, errors.New("coupling is set but no actuator was given")
	}
	return &Oscillator{params: params, force: force}, nil
}

// Dim reports the state dimension.
func (o *Oscillator) Dim() int {
	return 2
}

// Derivative writes dy/dt for the given state. It satisfies VectorField, so
// an Oscillator can be handed to an integrator directly. The actuator is
// always sampled when present; a NaN control value poisons the derivative
// even at zero coupling, matching IEEE multiplication.
func (o *Oscillator) Derivative(t float64, y, dy []float64) {
	accel := -o.params.Omega*o.params.Omega*y[0] - o.params.Damping*y[1]
	if o.force != nil {
		accel += o.params.Coupling * o.force(y)
	}
	dy[0] = y[1]
	dy[1] = accel
}
