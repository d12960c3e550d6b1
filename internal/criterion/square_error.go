package criterion

import (
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// OpSquareError is the operation name of SquareError.
const OpSquareError = "SquareError"

// SquareError computes ||left - right||^2 / 2 over the contributing columns.
//
// Gradients:
//
//	d/d left  =  g * (left - right)
//	d/d right = -g * (left - right)
type SquareError struct {
	base
	leftMinusRight *tensor.Matrix
}

// NewSquareError creates a SquareError criterion.
func NewSquareError(name string, left, right node.Node, opts ...Option) *SquareError {
	c := &SquareError{base: newBase(name, OpSquareError, []node.Node{left, right}, opts)}
	c.leftMinusRight = c.newScratch()
	return c
}

// Validate implements Criterion.
func (c *SquareError) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	left, right := c.inputs[0].Value(), c.inputs[1].Value()
	if isFinalPass && !left.SameShape(right) {
		return c.logicErrorf("input shapes differ: %dx%d vs %dx%d", left.Rows(), left.Cols(), right.Rows(), right.Cols())
	}
	c.leftMinusRight.Resize(left.Rows(), left.Cols())
	return c.place()
}

// Forward implements Criterion.
func (c *SquareError) Forward() error {
	return c.guard("Forward", func() error {
		c.leftMinusRight.AssignDifference(c.inputs[0].Value(), c.inputs[1].Value())
		for _, in := range c.inputs {
			in.Layout().MaskColumns(c.leftMinusRight)
		}
		norm := c.leftMinusRight.FrobeniusNorm()
		return c.finishForward(norm * norm / 2)
	})
}

// Backward implements Criterion.
func (c *SquareError) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 0, 1); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		alpha := c.seed()
		if inputIndex == 1 {
			alpha = -alpha
		}
		c.inputs[inputIndex].Gradient().AddScaled(alpha, c.leftMinusRight)
		return nil
	})
}

// Clone implements Criterion.
func (c *SquareError) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewSquareError(c.Name(), c.inputs[0], c.inputs[1]), flags)
}

// CopyTo implements Criterion.
func (c *SquareError) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*SquareError)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	return c.copyBaseTo(&d.base, flags)
}
