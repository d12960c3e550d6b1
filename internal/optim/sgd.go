package optim

import (
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []node.Node
	lr         float64
	momentum   float64
	velocities map[node.Node]*tensor.Matrix
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer over params.
func NewSGD(params []node.Node, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[node.Node]*tensor.Matrix),
	}
}

// Step implements Optimizer.
func (s *SGD) Step() {
	for _, p := range s.params {
		grad := p.Gradient()
		if s.momentum == 0 {
			p.Value().AddScaled(-s.lr, grad)
			continue
		}
		velocity, ok := s.velocities[p]
		if !ok {
			velocity = tensor.New(grad.Rows(), grad.Cols())
			s.velocities[p] = velocity
		}
		velocity.Scale(s.momentum)
		velocity.AddScaled(1, grad)
		p.Value().AddScaled(-s.lr, velocity)
	}
}

// ZeroGrad implements Optimizer.
func (s *SGD) ZeroGrad() { zeroGrad(s.params) }

// LR implements Optimizer.
func (s *SGD) LR() float64 { return s.lr }

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) { s.lr = lr }
