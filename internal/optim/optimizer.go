// Package optim implements optimization algorithms that update graph node
// values from the gradients criteria accumulate into them.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Example usage:
//
//	opt := optim.NewAdam(params, optim.AdamConfig{LR: 0.01})
//	for step := range steps {
//	    opt.ZeroGrad()
//	    if err := c.Forward(); err != nil { ... }
//	    c.FillGradient(1)
//	    for _, i := range trainable {
//	        if err := c.Backward(i); err != nil { ... }
//	    }
//	    opt.Step()
//	}
package optim

import "github.com/born-ml/criterion/internal/node"

// Optimizer updates node values in place from their accumulated gradients.
type Optimizer interface {
	// Step applies one update to every parameter from its Gradient.
	Step()

	// ZeroGrad clears all parameter gradients. Criteria add into gradients,
	// so call it before each backward pass.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float64
}

// zeroGrad clears the gradients of params.
func zeroGrad(params []node.Node) {
	for _, p := range params {
		p.Gradient().SetAll(0)
	}
}
