package criterion

import (
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// OpDummyCriterion is the operation name of the pass-through criterion.
const OpDummyCriterion = "DummyCriterion"

// DummyCriterion forwards a loss and its derivative computed outside the
// graph. Inputs are (objective, derivative, prediction): the objective is a
// 1x1 InputValue, the derivative has the prediction's shape. Forward copies
// the objective; Backward adds g * derivative into the prediction gradient.
type DummyCriterion struct {
	base
	delta *tensor.Matrix
}

// NewDummyCriterion creates a DummyCriterion.
func NewDummyCriterion(name string, objective, derivative, prediction node.Node, opts ...Option) *DummyCriterion {
	c := &DummyCriterion{base: newBase(name, OpDummyCriterion, []node.Node{objective, derivative, prediction}, opts)}
	c.delta = c.newScratch()
	return c
}

// Validate implements Criterion.
func (c *DummyCriterion) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	if c.inputs[0].OperationName() != node.OpInputValue {
		return c.logicErrorf("input 0 must be the objective (%s), got %s", node.OpInputValue, c.inputs[0].OperationName())
	}
	if !isFinalPass {
		return nil
	}
	for i, in := range c.inputs {
		if in.Value().Rows() == 0 {
			return c.logicErrorf("input %d (%s) has no rows", i, in.Name())
		}
	}
	if rows := c.inputs[0].Value().Rows(); rows != 1 {
		return c.logicErrorf("objective must have 1 row, got %d", rows)
	}
	derivative, prediction := c.inputs[1].Value(), c.inputs[2].Value()
	if derivative.Rows() != prediction.Rows() {
		return c.logicErrorf("derivative has %d rows but prediction has %d", derivative.Rows(), prediction.Rows())
	}
	c.delta.Resize(derivative.Rows(), derivative.Cols())
	return c.place()
}

// Forward implements Criterion.
func (c *DummyCriterion) Forward() error {
	objective := c.inputs[0].Value()
	if objective.Rows() != 1 || objective.Cols() != 1 {
		return c.logicErrorf("objective must be 1x1, got %dx%d", objective.Rows(), objective.Cols())
	}
	return c.finishForward(objective.Get00())
}

// Backward implements Criterion. Only input 2 (prediction) is
// differentiable; the objective and derivative come from outside the graph.
func (c *DummyCriterion) Backward(inputIndex int) error {
	switch inputIndex {
	case 0, 1:
		return c.logicErrorf("no gradient w.r.t. externally computed input %d", inputIndex)
	case 2:
	default:
		return c.invalidArgumentf("no gradient w.r.t. input %d (valid: [2])", inputIndex)
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		c.delta.CopyFrom(c.inputs[1].Value())
		c.delta.Scale(c.seed())
		c.accumulate(2, c.delta)
		return nil
	})
}

// Clone implements Criterion.
func (c *DummyCriterion) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewDummyCriterion(c.Name(), c.inputs[0], c.inputs[1], c.inputs[2]), flags)
}

// CopyTo implements Criterion.
func (c *DummyCriterion) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*DummyCriterion)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	return c.copyBaseTo(&d.base, flags)
}
