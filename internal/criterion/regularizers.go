package criterion

import (
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// Operation names of the matrix regularizers.
const (
	OpMatrixL1Reg = "MatrixL1Reg"
	OpMatrixL2Reg = "MatrixL2Reg"
)

// epsInInverse guards the L2 gradient against a vanishing norm.
const epsInInverse = 1e-30

// L1Reg computes sum |x| over the contributing columns of x.
// Its gradient is g * sign(x), zero on excluded columns.
type L1Reg struct {
	base
	masked *tensor.Matrix
	sign   *tensor.Matrix
}

// NewL1Reg creates a MatrixL1Reg criterion.
func NewL1Reg(name string, x node.Node, opts ...Option) *L1Reg {
	c := &L1Reg{base: newBase(name, OpMatrixL1Reg, []node.Node{x}, opts)}
	c.masked = c.newScratch()
	c.sign = c.newScratch()
	return c
}

// Validate implements Criterion.
func (c *L1Reg) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	x := c.inputs[0].Value()
	c.masked.Resize(x.Rows(), x.Cols())
	c.sign.Resize(x.Rows(), x.Cols())
	return c.place()
}

// Forward implements Criterion.
func (c *L1Reg) Forward() error {
	return c.guard("Forward", func() error {
		c.masked.CopyFrom(c.inputs[0].Value())
		c.inputs[0].Layout().MaskColumns(c.masked)
		return c.finishForward(c.masked.SumAbs())
	})
}

// Backward implements Criterion.
func (c *L1Reg) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 0); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		c.sign.AssignSign(c.masked)
		c.inputs[0].Gradient().AddScaled(c.seed(), c.sign)
		return nil
	})
}

// Clone implements Criterion.
func (c *L1Reg) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewL1Reg(c.Name(), c.inputs[0]), flags)
}

// CopyTo implements Criterion.
func (c *L1Reg) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*L1Reg)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	return c.copyBaseTo(&d.base, flags)
}

// L2Reg computes the Frobenius norm of x over its contributing columns.
// Its gradient is g / (norm + eps) * x.
type L2Reg struct {
	base
	masked *tensor.Matrix
}

// NewL2Reg creates a MatrixL2Reg criterion.
func NewL2Reg(name string, x node.Node, opts ...Option) *L2Reg {
	c := &L2Reg{base: newBase(name, OpMatrixL2Reg, []node.Node{x}, opts)}
	c.masked = c.newScratch()
	return c
}

// Validate implements Criterion.
func (c *L2Reg) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	x := c.inputs[0].Value()
	c.masked.Resize(x.Rows(), x.Cols())
	return c.place()
}

// Forward implements Criterion.
func (c *L2Reg) Forward() error {
	return c.guard("Forward", func() error {
		c.masked.CopyFrom(c.inputs[0].Value())
		c.inputs[0].Layout().MaskColumns(c.masked)
		return c.finishForward(c.masked.FrobeniusNorm())
	})
}

// Backward implements Criterion.
func (c *L2Reg) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 0); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		alpha := c.seed() / (c.Value().Get00() + epsInInverse)
		c.inputs[0].Gradient().AddScaled(alpha, c.masked)
		return nil
	})
}

// Clone implements Criterion.
func (c *L2Reg) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewL2Reg(c.Name(), c.inputs[0]), flags)
}

// CopyTo implements Criterion.
func (c *L2Reg) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*L2Reg)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	return c.copyBaseTo(&d.base, flags)
}
