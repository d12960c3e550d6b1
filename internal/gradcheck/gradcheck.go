// Package gradcheck compares the analytic gradients of a criterion against
// central finite differences of its forward loss.
package gradcheck

import (
	"math"

	"github.com/born-ml/criterion/internal/criterion"
	"github.com/born-ml/criterion/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"k8s.io/klog/v2"
)

// Config controls a check.
type Config struct {
	// Step is the finite-difference step.
	Step float64

	// Tolerance bounds the error, absolute for small gradients and
	// relative above 1.
	Tolerance float64

	// Seed is the upstream gradient placed in the criterion's Gradient.
	Seed float64
}

// DefaultConfig returns a configuration suited to float64 criteria.
func DefaultConfig() Config {
	return Config{Step: 1e-5, Tolerance: 1e-5, Seed: 1}
}

// Result reports the comparison for one input.
type Result struct {
	Input    int
	Node     string
	Elements int
	MaxError float64
	Worst    int // row-major index of the worst element
	Passed   bool
}

// Check runs Forward and Backward(i) on c for every input index in inputs,
// and compares each input gradient with a central difference of the loss.
// Input values are restored before Check returns.
func Check(c criterion.Criterion, inputs []int, cfg Config) ([]Result, error) {
	if cfg.Step <= 0 {
		return nil, errors.Errorf("gradcheck: step must be positive, got %g", cfg.Step)
	}
	results := make([]Result, 0, len(inputs))
	for _, i := range inputs {
		if i < 0 || i >= len(c.Inputs()) {
			return results, errors.Errorf("gradcheck: %s has no input %d", c.Name(), i)
		}
		r, err := checkInput(c, i, cfg)
		if err != nil {
			return results, err
		}
		klog.V(1).Infof("gradcheck %s input %d (%s): %d elements, max error %.3g", c.Name(), i, r.Node, r.Elements, r.MaxError)
		results = append(results, r)
	}
	return results, nil
}

func checkInput(c criterion.Criterion, i int, cfg Config) (Result, error) {
	in := c.Inputs()[i]
	value := in.Value()
	result := Result{Input: i, Node: in.Name(), Elements: value.NumElements(), Passed: true}

	analytic, err := analyticGradient(c, i, cfg.Seed)
	if err != nil {
		return result, err
	}

	x := flatten(value)
	original := append([]float64(nil), x...)
	var forwardErr error
	loss := func(p []float64) float64 {
		unflatten(value, p)
		if err := c.Forward(); err != nil {
			forwardErr = err
			return math.NaN()
		}
		return cfg.Seed * c.Value().Get00()
	}
	numeric := fd.Gradient(nil, loss, x, &fd.Settings{Formula: fd.Central, Step: cfg.Step})
	unflatten(value, original)
	if forwardErr != nil {
		return result, errors.Wrapf(forwardErr, "gradcheck: perturbed forward of input %d", i)
	}
	if err := c.Forward(); err != nil {
		return result, err
	}

	want := flatten(analytic)
	for k, got := range numeric {
		diff := math.Abs(got - want[k])
		if scale := math.Max(math.Abs(got), math.Abs(want[k])); scale > 1 {
			diff /= scale
		}
		if diff > result.MaxError {
			result.MaxError, result.Worst = diff, k
		}
	}
	result.Passed = result.MaxError <= cfg.Tolerance
	return result, nil
}

// analyticGradient returns a copy of the gradient Backward(i) adds on top of
// a zeroed input gradient.
func analyticGradient(c criterion.Criterion, i int, seed float64) (*tensor.Matrix, error) {
	if err := c.Forward(); err != nil {
		return nil, err
	}
	in := c.Inputs()[i]
	in.Gradient().SetAll(0)
	c.Gradient().Resize(1, 1)
	c.Gradient().SetAll(seed)
	if err := c.Backward(i); err != nil {
		return nil, err
	}
	return in.Gradient().Clone(), nil
}

func flatten(m *tensor.Matrix) []float64 {
	out := make([]float64, 0, m.NumElements())
	for r := 0; r < m.Rows(); r++ {
		for col := 0; col < m.Cols(); col++ {
			out = append(out, m.At(r, col))
		}
	}
	return out
}

func unflatten(m *tensor.Matrix, values []float64) {
	k := 0
	for r := 0; r < m.Rows(); r++ {
		for col := 0; col < m.Cols(); col++ {
			m.Set(r, col, values[k])
			k++
		}
	}
}
