// Package scape scores candidate control laws against the damped oscillator
// task: compile the expression, close the control loop, integrate, fit the
// free constants and measure the trajectory against the target amplitude and
// frequency. Failed integrations score as sentinel-penalized fitness, never
// as errors, so a degenerate candidate cannot take down a batch.
package scape

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"harmonia/internal/dynamics"
	"harmonia/internal/expr"
	"harmonia/internal/numeric"
	"harmonia/internal/optimize"
)

// OscillatorConfig describes one experiment: the plant coefficients, the
// evaluation grid, the scoring targets and the numeric tooling. Zero-valued
// Optimizer and Integrator fields are filled with the reference settings by
// NewOscillatorScape.
type OscillatorConfig struct {
	Params  dynamics.OscillatorParams
	Initial []float64

	GridStart  float64
	GridStop   float64
	GridPoints int

	TargetAmplitude float64
	TargetFrequency float64

	// NaNSentinel replaces non-finite error components in the published
	// fitness.
	NaNSentinel float64

	Optimizer  *optimize.LevenbergMarquardt
	Integrator *dynamics.DormandPrince
}

// DefaultOscillatorConfig returns the reference experiment: a unit-frequency
// plant damped at 3/8 with the actuator coupled at gain 1, started at [0, 1]
// and scored over fifty target periods on 2000 grid points.
func DefaultOscillatorConfig() OscillatorConfig {
	return OscillatorConfig{
		Params:          dynamics.OscillatorParams{Omega: 1, Damping: 3.0 / 8.0, Coupling: 1},
		Initial:         []float64{0, 1},
		GridStart:       0,
		GridStop:        50 * 2 * math.Pi,
		GridPoints:      2000,
		TargetAmplitude: 1,
		TargetFrequency: 1,
		NaNSentinel:     1e9,
	}
}

// OscillatorScape evaluates candidates against one fixed experiment. All
// state is read-only after construction, so a single scape may score many
// candidates concurrently.
type OscillatorScape struct {
	cfg  OscillatorConfig
	grid []float64
	// nt is the number of target periods covered by the grid; the scoring
	// integrals are normalized by it.
	nt float64
}

// NewOscillatorScape validates the configuration and precomputes the
// evaluation grid.
func NewOscillatorScape(cfg OscillatorConfig) (*OscillatorScape, error) {
	if cfg.Params.Omega <= 0 {
		return nil, fmt.Errorf("plant omega must be positive, got %g", cfg.Params.Omega)
	}
	if len(cfg.Initial) != 2 {
		return nil, fmt.Errorf("initial state must have 2 components, got %d", len(cfg.Initial))
	}
	if cfg.GridPoints < 2 {
		return nil, fmt.Errorf("grid needs at least 2 points, got %d", cfg.GridPoints)
	}
	if cfg.GridStop <= cfg.GridStart {
		return nil, fmt.Errorf("grid window [%g, %g] is not increasing", cfg.GridStart, cfg.GridStop)
	}
	if cfg.TargetAmplitude <= 0 {
		return nil, fmt.Errorf("target amplitude must be positive, got %g", cfg.TargetAmplitude)
	}
	if cfg.TargetFrequency <= 0 {
		return nil, fmt.Errorf("target frequency must be positive, got %g", cfg.TargetFrequency)
	}
	if cfg.NaNSentinel <= 0 || math.IsInf(cfg.NaNSentinel, 0) || math.IsNaN(cfg.NaNSentinel) {
		return nil, fmt.Errorf("sentinel must be finite and positive, got %g", cfg.NaNSentinel)
	}

	cfg.Initial = append([]float64(nil), cfg.Initial...)
	if cfg.Optimizer == nil {
		cfg.Optimizer = optimize.NewLevenbergMarquardt()
	}
	if cfg.Integrator == nil {
		cfg.Integrator = dynamics.NewDormandPrince()
	}

	return &OscillatorScape{
		cfg:  cfg,
		grid: floats.Span(make([]float64, cfg.GridPoints), cfg.GridStart, cfg.GridStop),
		nt:   (cfg.GridStop - cfg.GridStart) / cfg.TargetFrequency,
	}, nil
}

func (s *OscillatorScape) Name() string {
	return "damped-oscillator"
}

// Grid returns a copy of the evaluation grid.
func (s *OscillatorScape) Grid() []float64 {
	return append([]float64(nil), s.grid...)
}

// Config returns the resolved configuration.
func (s *OscillatorScape) Config() OscillatorConfig {
	cfg := s.cfg
	cfg.Initial = append([]float64(nil), cfg.Initial...)
	return cfg
}

// Evaluate scores one candidate. The candidate's free constants are fitted
// by least squares starting from zeros, the trajectory errors are measured
// at the fitted constants, and non-finite error components are replaced by
// the sentinel. Fitness and constants are written back to the candidate.
// Errors are reserved for structurally broken candidates; a diverging or
// degenerate control law yields a penalized fitness instead.
func (s *OscillatorScape) Evaluate(c *Candidate) (Fitness, Trace, error) {
	if c == nil || c.Tree == nil {
		return Fitness{}, nil, errors.New("candidate has no expression tree")
	}

	residual := func(x []float64) ([]float64, error) {
		ampl, omega, err := s.measure(c.Tree, x)
		if err != nil {
			return nil, err
		}
		return []float64{
			numeric.RMSE(s.cfg.TargetAmplitude, ampl),
			numeric.RMSE(s.cfg.TargetFrequency, omega),
		}, nil
	}

	res, err := s.cfg.Optimizer.Minimize(residual, make([]float64, len(c.Tree.Consts())))
	if err != nil {
		return Fitness{}, nil, err
	}

	clean := numeric.ReplaceNaN(res.Residual, s.cfg.NaNSentinel)
	penalized := false
	for i := range clean {
		if math.IsInf(clean[i], 0) {
			clean[i] = s.cfg.NaNSentinel
		}
		if clean[i] != res.Residual[i] {
			penalized = true
		}
	}

	fit := Fitness{
		AmplitudeError: clean[0],
		FrequencyError: clean[1],
		Size:           c.Tree.NodeCount(),
	}
	c.Fitness = &fit
	c.Constants = res.X
	c.Penalized = penalized

	return fit, Trace{
		"iterations":  res.Iterations,
		"evaluations": res.Evaluations,
		"converged":   res.Converged,
		"penalized":   penalized,
		"cost":        res.Cost,
	}, nil
}

// Simulate integrates the controlled plant for a tree with bound constants.
// Divergence yields a poisoned all-NaN trajectory, not an error; errors are
// reserved for constant-arity and plant-configuration problems.
func (s *OscillatorScape) Simulate(tree *expr.Tree, consts []float64) (*dynamics.Trajectory, error) {
	if tree == nil {
		return nil, errors.New("expression tree is required")
	}
	pheno, err := tree.Compile(consts)
	if err != nil {
		return nil, err
	}
	osc, err := dynamics.NewOscillator(s.cfg.Params, dynamics.Actuator(pheno))
	if err != nil {
		return nil, err
	}

	traj, err := s.cfg.Integrator.Integrate(osc.Derivative, s.grid, s.cfg.Initial)
	if err != nil {
		if errors.Is(err, dynamics.ErrDiverged) {
			return dynamics.Poisoned(s.grid, len(s.cfg.Initial)), nil
		}
		return nil, err
	}
	return traj, nil
}

func (s *OscillatorScape) measure(tree *expr.Tree, consts []float64) (ampl, omega float64, err error) {
	traj, err := s.Simulate(tree, consts)
	if err != nil {
		return 0, 0, err
	}
	ampl, omega = s.score(traj)
	return ampl, omega, nil
}

// score reduces a trajectory to its mean amplitude and mean angular
// frequency over the grid. A poisoned trajectory propagates NaN through
// both; an identically-zero trajectory yields NaN frequency, the degenerate
// case the sentinel later absorbs.
func (s *OscillatorScape) score(traj *dynamics.Trajectory) (ampl, omega float64) {
	sq0 := traj.Component(0)
	sq1 := traj.Component(1)
	for i := range sq0 {
		sq0[i] *= sq0[i]
		sq1[i] *= sq1[i]
	}

	ampl = math.Sqrt(integrate.Trapezoidal(traj.Times, sq0) * 2 / s.nt)
	omega = math.Sqrt(integrate.Trapezoidal(traj.Times, sq1) * 2 / (s.nt * ampl * ampl))
	return ampl, omega
}
