// Package optimize fits free constants by damped least squares. The solver
// is a Levenberg-Marquardt loop over a finite-difference Jacobian; it is
// built for small parameter vectors scored by expensive, possibly NaN-valued
// residual functions, so running out of iterations or damping headroom is an
// ordinary outcome rather than an error.
package optimize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ResidualFunc evaluates the residual vector at x. A failed model
// evaluation is reported in-band as NaN entries; a returned error aborts
// the whole fit and is reserved for broken setups.
type ResidualFunc func(x []float64) ([]float64, error)

// Result is the state of a fit when the solver stopped.
type Result struct {
	// X is the best parameter vector found.
	X []float64
	// Residual is the residual vector at X.
	Residual []float64
	// Cost is the sum of squared residuals at X.
	Cost float64
	// Iterations counts outer iterations, one Jacobian build each.
	Iterations int
	// Evaluations counts calls to the residual function.
	Evaluations int
	// Converged reports whether a stopping tolerance was met. A false
	// value still carries the best point seen.
	Converged bool
}

// LevenbergMarquardt holds the solver knobs. Construct with
// NewLevenbergMarquardt and override fields as needed.
type LevenbergMarquardt struct {
	// InitialDamping seeds the damping factor lambda.
	InitialDamping float64
	// MaxIterations bounds outer iterations.
	MaxIterations int
	// CostTolerance stops the fit when an accepted step improves the
	// cost by no more than CostTolerance relative to max(cost, 1).
	CostTolerance float64
	// StepTolerance stops the fit when an accepted step moves x by no
	// more than StepTolerance relative to its norm.
	StepTolerance float64
}

const maxDamping = 1e12

// NewLevenbergMarquardt returns a solver with the reference settings.
func NewLevenbergMarquardt() *LevenbergMarquardt {
	return &LevenbergMarquardt{
		InitialDamping: 1e-3,
		MaxIterations:  100,
		CostTolerance:  1e-10,
		StepTolerance:  1e-10,
	}
}

// Minimize fits x starting from x0. An empty x0 short-circuits to a single
// residual evaluation: there is nothing to vary, but callers still want the
// residual and cost through the same path. The returned error is reserved
// for invalid arguments and residual-function failures; exhausting the
// iteration or damping budget only clears Converged.
func (lm *LevenbergMarquardt) Minimize(fn ResidualFunc, x0 []float64) (*Result, error) {
	if fn == nil {
		return nil, errors.New("residual function is required")
	}
	if lm.InitialDamping <= 0 {
		return nil, fmt.Errorf("initial damping must be positive, got %g", lm.InitialDamping)
	}
	if lm.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", lm.MaxIterations)
	}
	if lm.CostTolerance < 0 || lm.StepTolerance < 0 {
		return nil, fmt.Errorf("tolerances must not be negative, got cost=%g step=%g", lm.CostTolerance, lm.StepTolerance)
	}

	x := append([]float64(nil), x0...)
	res := &Result{}

	r, err := fn(x)
	if err != nil {
		return nil, err
	}
	res.Evaluations = 1
	cost := sumSquares(r)

	if len(x) == 0 {
		res.X = x
		res.Residual = r
		res.Cost = cost
		res.Converged = true
		return res, nil
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		// Nothing to improve from a non-finite start.
		res.X = x
		res.Residual = r
		res.Cost = cost
		return res, nil
	}

	n := len(x)
	m := len(r)
	if m == 0 {
		res.X = x
		res.Residual = r
		res.Cost = cost
		res.Converged = true
		return res, nil
	}

	var ferr error
	jacFn := func(dst, xx []float64) {
		res.Evaluations++
		rr, err := fn(xx)
		if err != nil || len(rr) != m {
			if ferr == nil {
				if err != nil {
					ferr = err
				} else {
					ferr = fmt.Errorf("residual length changed from %d to %d", m, len(rr))
				}
			}
			for i := range dst {
				dst[i] = math.NaN()
			}
			return
		}
		copy(dst, rr)
	}

	jac := mat.NewDense(m, n, nil)
	jtj := mat.NewSymDense(n, nil)
	damped := mat.NewSymDense(n, nil)
	var grad, rhs, delta mat.VecDense

	lambda := lm.InitialDamping
	for res.Iterations = 0; res.Iterations < lm.MaxIterations; res.Iterations++ {
		fd.Jacobian(jac, jacFn, x, &fd.JacobianSettings{
			Formula:     fd.Forward,
			OriginValue: r,
		})
		if ferr != nil {
			return nil, ferr
		}

		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))
		rhs.ScaleVec(-1, &grad)

		accepted := false
		for lambda <= maxDamping {
			damped.CopySym(jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				if d <= 0 {
					d = 1
				}
				damped.SetSym(i, i, jtj.At(i, i)+lambda*d)
			}

			var chol mat.Cholesky
			if !chol.Factorize(damped) {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(&delta, &rhs); err != nil {
				lambda *= 10
				continue
			}

			trial := make([]float64, n)
			for i := range trial {
				trial[i] = x[i] + delta.AtVec(i)
			}
			rTrial, err := fn(trial)
			if err != nil {
				return nil, err
			}
			res.Evaluations++
			if len(rTrial) != m {
				return nil, fmt.Errorf("residual length changed from %d to %d", m, len(rTrial))
			}
			costTrial := sumSquares(rTrial)

			if !(costTrial < cost) {
				// Covers NaN trial costs as well.
				lambda *= 10
				continue
			}

			stepNorm := mat.Norm(&delta, 2)
			improvement := cost - costTrial

			x = trial
			r = rTrial
			cost = costTrial
			lambda = math.Max(lambda*0.1, 1e-12)
			accepted = true

			if improvement <= lm.CostTolerance*math.Max(cost, 1) {
				res.Converged = true
			}
			if stepNorm <= lm.StepTolerance*(floats.Norm(x, 2)+lm.StepTolerance) {
				res.Converged = true
			}
			break
		}

		if !accepted || res.Converged {
			res.Iterations++
			break
		}
	}

	res.X = x
	res.Residual = r
	res.Cost = cost
	return res, nil
}

func sumSquares(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v * v
	}
	return total
}
