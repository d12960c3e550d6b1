// Package criterion implements training-criterion nodes: graph nodes that
// reduce model predictions and labels to a scalar loss and propagate its
// gradient back into their inputs.
//
// Every criterion follows the same lifecycle. Validate checks arity and shapes
// and sizes the scratch buffers; Forward writes the 1x1 loss into Value;
// Backward(i) adds the contribution of the loss to input i's gradient, scaled
// by the seed held in the criterion's own 1x1 Gradient. Backward must follow
// a Forward of the same step, since it reads the buffers Forward filled.
//
// Columns marked as gaps or as unlabeled in an input's minibatch layout never
// contribute to a loss or a gradient.
//
// Example:
//
//	labels := node.NewInput("labels", oneHot, mb)
//	logits := node.NewComputed("z", "Times", z, mb)
//	ce := criterion.NewCrossEntropyWithSoftmax("ce", labels, logits)
//	if err := ce.Validate(true); err != nil { ... }
//	if err := ce.Forward(); err != nil { ... }
//	ce.FillGradient(1)
//	if err := ce.Backward(1); err != nil { ... }
package criterion

import (
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
	"k8s.io/klog/v2"
)

// CopyFlags selects what Clone and CopyTo carry over.
type CopyFlags int

const (
	// CopyValue deep-copies function value, gradient and scratch buffers.
	CopyValue CopyFlags = iota

	// CopyStructureOnly copies inputs and settings; buffers start empty.
	CopyStructureOnly
)

// Criterion is the contract shared by all training criteria.
type Criterion interface {
	node.Node

	// Inputs returns the input nodes in order. They are shared, not owned.
	Inputs() []node.Node

	// Validate checks input roles and shapes and sizes the scratch buffers.
	// Shape checks that need final dimensions run only when isFinalPass.
	Validate(isFinalPass bool) error

	// Forward computes the scalar loss into Value.
	Forward() error

	// Backward adds the loss gradient w.r.t. input inputIndex into that
	// input's Gradient, scaled by the seed in this node's Gradient.
	Backward(inputIndex int) error

	// FillGradient sets the seed of the next Backward.
	FillGradient(v float64)

	// MoveToDevice places every scratch buffer on device. Idempotent.
	MoveToDevice(device tensor.Device) error

	// Clone returns an independent copy sharing the same inputs. It panics
	// with the CopyTo error when the copy cannot be placed on this node's device.
	Clone(flags CopyFlags) Criterion

	// CopyTo copies state into dst, which must be the same kind of criterion.
	CopyTo(dst Criterion, flags CopyFlags) error

	// MasksOwnColumns reports whether the criterion excludes gap columns
	// itself, so the engine need not mask its inputs' gradients.
	MasksOwnColumns() bool
}

// base carries what all criteria share: node identity, inputs, settings and
// the registry of scratch buffers used by MoveToDevice and CopyTo.
type base struct {
	node.Base
	inputs    []node.Node
	cfg       config
	scratch   []*tensor.Matrix
	evaluated bool
}

func newBase(name, opName string, inputs []node.Node, opts []Option) base {
	b := base{
		Base:   node.NewBase(name, opName),
		inputs: inputs,
		cfg:    defaultConfig(),
	}
	for _, opt := range opts {
		opt(&b.cfg)
	}
	b.SetValue(tensor.New(1, 1))
	return b
}

// newScratch registers and returns an empty scratch buffer.
func (b *base) newScratch() *tensor.Matrix {
	m := tensor.New(0, 0)
	b.scratch = append(b.scratch, m)
	return m
}

// Inputs returns the input nodes.
func (b *base) Inputs() []node.Node { return b.inputs }

// MasksOwnColumns reports true: every criterion in this package masks gaps.
func (b *base) MasksOwnColumns() bool { return true }

// Device returns the placement of the scratch buffers.
func (b *base) Device() tensor.Device { return b.cfg.device }

// MoveToDevice places every scratch buffer on device.
func (b *base) MoveToDevice(device tensor.Device) error {
	for _, m := range b.scratch {
		if err := m.MoveTo(device); err != nil {
			return b.runtimeErrorf("move to %s: %v", device, err)
		}
	}
	b.cfg.device = device
	return nil
}

// validateBase runs the checks every criterion shares.
func (b *base) validateBase(isFinalPass bool) error {
	for i, in := range b.inputs {
		if in == nil {
			return b.logicErrorf("input %d is not connected", i)
		}
	}
	b.Value().Resize(1, 1)
	if !isFinalPass {
		return nil
	}
	for i, in := range b.inputs {
		if err := in.Layout().Check(in.Value().Cols()); err != nil {
			return b.logicErrorf("input %d (%s): %v", i, in.Name(), err)
		}
	}
	return nil
}

// place moves the scratch buffers to the configured device after a resize.
func (b *base) place() error {
	if b.cfg.device == tensor.CPU {
		return nil
	}
	return b.MoveToDevice(b.cfg.device)
}

// finishForward records the loss and refreshes device mirrors.
func (b *base) finishForward(loss float64) error {
	b.Value().Set(0, 0, loss)
	b.evaluated = true
	if b.cfg.device != tensor.CPU {
		for _, m := range b.scratch {
			if err := m.Sync(); err != nil {
				return b.runtimeErrorf("sync to %s: %v", b.cfg.device, err)
			}
		}
	}
	if b.Value().HasNaN() {
		klog.Warningf("%s %q: loss is not finite (%g)", b.OperationName(), b.Name(), loss)
	}
	klog.V(2).Infof("%s %q: loss=%g", b.OperationName(), b.Name(), loss)
	return nil
}

func (b *base) requireForward() error {
	if !b.evaluated {
		return b.logicErrorf("Backward called before Forward")
	}
	return nil
}

// seed returns the upstream scalar gradient.
func (b *base) seed() float64 {
	return b.Gradient().Get00()
}

// accumulate adds delta into input i's gradient, zeroing the columns input
// i's layout excludes first.
func (b *base) accumulate(i int, delta *tensor.Matrix) {
	in := b.inputs[i]
	in.Layout().MaskColumns(delta)
	in.Gradient().AddScaled(1, delta)
}

// copyBaseTo copies shared state into dst.
func (b *base) copyBaseTo(dst *base, flags CopyFlags) error {
	copyValue := flags == CopyValue
	if err := dst.MoveToDevice(tensor.CPU); err != nil {
		return err
	}
	b.CopyBaseTo(&dst.Base, copyValue)
	dst.inputs = b.inputs
	dst.cfg = b.cfg
	dst.cfg.device = tensor.CPU
	dst.evaluated = copyValue && b.evaluated
	if copyValue {
		for i, m := range b.scratch {
			dst.scratch[i].CopyFrom(m)
		}
	}
	return dst.MoveToDevice(b.cfg.device)
}

// checkGradientIndex rejects input indices outside valid.
func (b *base) checkGradientIndex(inputIndex int, valid ...int) error {
	for _, v := range valid {
		if inputIndex == v {
			return nil
		}
	}
	return b.invalidArgumentf("no gradient w.r.t. input %d (valid: %v)", inputIndex, valid)
}
