package criterion

import (
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// Operation names of the cross-entropy criteria.
const (
	OpCrossEntropyWithSoftmax = "CrossEntropyWithSoftmax"
	OpCrossEntropy            = "CrossEntropy"
)

// CrossEntropyWithSoftmax computes -sum(labels .* logSoftmax(logits)), the
// log-softmax taken per column.
//
// Gradients:
//
//	d/d labels = -g * logSoftmax(logits)
//	d/d logits =  g * (softmax(logits) - labels)
//
// This is the numerically stable fusion of a softmax output layer with its
// cross-entropy loss; prefer it to CrossEntropy over explicit probabilities.
type CrossEntropyWithSoftmax struct {
	base
	logSoftmax *tensor.Matrix
	softmax    *tensor.Matrix
	delta      *tensor.Matrix
}

// NewCrossEntropyWithSoftmax creates a CrossEntropyWithSoftmax criterion.
func NewCrossEntropyWithSoftmax(name string, labels, logits node.Node, opts ...Option) *CrossEntropyWithSoftmax {
	c := &CrossEntropyWithSoftmax{base: newBase(name, OpCrossEntropyWithSoftmax, []node.Node{labels, logits}, opts)}
	c.logSoftmax = c.newScratch()
	c.softmax = c.newScratch()
	c.delta = c.newScratch()
	return c
}

// Validate implements Criterion.
func (c *CrossEntropyWithSoftmax) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	labels, logits := c.inputs[0].Value(), c.inputs[1].Value()
	if isFinalPass && !labels.SameShape(logits) {
		return c.logicErrorf("labels are %dx%d but logits are %dx%d", labels.Rows(), labels.Cols(), logits.Rows(), logits.Cols())
	}
	for _, m := range c.scratch {
		m.Resize(labels.Rows(), labels.Cols())
	}
	return c.place()
}

// Forward implements Criterion.
func (c *CrossEntropyWithSoftmax) Forward() error {
	return c.guard("Forward", func() error {
		c.logSoftmax.AssignLogSoftmaxColumns(c.inputs[1].Value())
		c.softmax.AssignExp(c.logSoftmax)
		c.inputs[1].Layout().MaskColumns(c.logSoftmax)
		loss := -tensor.InnerProduct(c.inputs[0].Value(), c.logSoftmax)
		return c.finishForward(loss)
	})
}

// Backward implements Criterion.
func (c *CrossEntropyWithSoftmax) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 0, 1); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		g := c.seed()
		if inputIndex == 0 {
			c.inputs[0].Gradient().AddScaled(-g, c.logSoftmax)
			return nil
		}
		c.delta.AssignDifference(c.softmax, c.inputs[0].Value())
		c.delta.Scale(g)
		c.accumulate(1, c.delta)
		return nil
	})
}

// Clone implements Criterion.
func (c *CrossEntropyWithSoftmax) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewCrossEntropyWithSoftmax(c.Name(), c.inputs[0], c.inputs[1]), flags)
}

// CopyTo implements Criterion.
func (c *CrossEntropyWithSoftmax) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*CrossEntropyWithSoftmax)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	return c.copyBaseTo(&d.base, flags)
}

// CrossEntropy computes -sum(labels .* log(probs)) for probs that are already
// normalized. Input 0 must be a label leaf (InputValue).
//
// Gradients:
//
//	d/d labels = -g * log(probs)
//	d/d probs  = -g * labels ./ probs
type CrossEntropy struct {
	base
	logOfRight   *tensor.Matrix
	leftDivRight *tensor.Matrix
}

// NewCrossEntropy creates a CrossEntropy criterion.
func NewCrossEntropy(name string, labels, probs node.Node, opts ...Option) *CrossEntropy {
	c := &CrossEntropy{base: newBase(name, OpCrossEntropy, []node.Node{labels, probs}, opts)}
	c.logOfRight = c.newScratch()
	c.leftDivRight = c.newScratch()
	return c
}

// Validate implements Criterion.
func (c *CrossEntropy) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	if c.inputs[0].OperationName() != node.OpInputValue {
		return c.logicErrorf("input 0 must be the label (%s), got %s", node.OpInputValue, c.inputs[0].OperationName())
	}
	labels, probs := c.inputs[0].Value(), c.inputs[1].Value()
	if isFinalPass && !labels.SameShape(probs) {
		return c.logicErrorf("labels are %dx%d but probabilities are %dx%d", labels.Rows(), labels.Cols(), probs.Rows(), probs.Cols())
	}
	c.logOfRight.Resize(probs.Rows(), probs.Cols())
	c.leftDivRight.Resize(probs.Rows(), probs.Cols())
	return c.place()
}

// Forward implements Criterion.
func (c *CrossEntropy) Forward() error {
	return c.guard("Forward", func() error {
		c.logOfRight.CopyFrom(c.inputs[1].Value())
		c.logOfRight.Log()
		c.inputs[1].Layout().MaskColumns(c.logOfRight)
		loss := -tensor.InnerProduct(c.inputs[0].Value(), c.logOfRight)
		return c.finishForward(loss)
	})
}

// Backward implements Criterion.
func (c *CrossEntropy) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 0, 1); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		g := c.seed()
		if inputIndex == 0 {
			c.inputs[0].Gradient().AddScaled(-g, c.logOfRight)
			return nil
		}
		c.leftDivRight.AssignElementDivision(c.inputs[0].Value(), c.inputs[1].Value())
		c.inputs[0].Layout().MaskColumns(c.leftDivRight)
		c.inputs[1].Gradient().AddScaled(-g, c.leftDivRight)
		return nil
	})
}

// Clone implements Criterion.
func (c *CrossEntropy) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewCrossEntropy(c.Name(), c.inputs[0], c.inputs[1]), flags)
}

// CopyTo implements Criterion.
func (c *CrossEntropy) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*CrossEntropy)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	return c.copyBaseTo(&d.base, flags)
}
