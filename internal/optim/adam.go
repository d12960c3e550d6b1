package optim

import (
	"math"

	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []node.Node
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int                          // Timestep for bias correction
	m      map[node.Node]*tensor.Matrix // First moment estimates
	v      map[node.Node]*tensor.Matrix // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer over params.
func NewAdam(params []node.Node, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[node.Node]*tensor.Matrix),
		v:      make(map[node.Node]*tensor.Matrix),
	}
}

// Step implements Optimizer.
func (a *Adam) Step() {
	a.t++
	biasCorrection1 := 1 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, p := range a.params {
		grad, value := p.Gradient(), p.Value()
		m, ok := a.m[p]
		if !ok {
			m = tensor.New(grad.Rows(), grad.Cols())
			a.m[p] = m
		}
		v, ok := a.v[p]
		if !ok {
			v = tensor.New(grad.Rows(), grad.Cols())
			a.v[p] = v
		}
		for i := 0; i < grad.Rows(); i++ {
			for j := 0; j < grad.Cols(); j++ {
				g := grad.At(i, j)
				mt := a.beta1*m.At(i, j) + (1-a.beta1)*g
				vt := a.beta2*v.At(i, j) + (1-a.beta2)*g*g
				m.Set(i, j, mt)
				v.Set(i, j, vt)
				value.Add(i, j, -a.lr*(mt/biasCorrection1)/(math.Sqrt(vt/biasCorrection2)+a.eps))
			}
		}
	}
}

// ZeroGrad implements Optimizer.
func (a *Adam) ZeroGrad() { zeroGrad(a.params) }

// LR implements Optimizer.
func (a *Adam) LR() float64 { return a.lr }

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) { a.lr = lr }

// Timestep returns the number of steps taken.
func (a *Adam) Timestep() int { return a.t }
