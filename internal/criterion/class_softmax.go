package criterion

import (
	"math"

	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
	"k8s.io/klog/v2"
)

// OpClassBasedCrossEntropyWithSoftmax is the operation name of the
// class-based (two-level) softmax criterion.
const OpClassBasedCrossEntropyWithSoftmax = "ClassBasedCrossEntropyWithSoftmax"

// Rows of the packed class label matrix.
const (
	classLabelWord = iota
	classLabelClass
	classLabelFirstWord
	classLabelEndWord
	classLabelRows
)

// ClassBasedCrossEntropyWithSoftmax factors the output softmax into a class
// softmax and a softmax over the words of the target's class. Inputs are
// (labels, hidden, weights, classLogits):
//
//	labels       [4 x T]  word, class, first word of class, first word of next class
//	hidden       [D x T]
//	weights      [D x V]  columns of a class form the range [first, next)
//	classLogits  [C x T]
//
// The loss is -sum(log P(class) + log P(word | class)) over the contributing
// columns. Within-class distributions have a different size per column, so
// they are packed back to back into flat buffers; forward and backward walk
// the columns in the same layout order and so agree on every offset.
//
// Labels must stay in host memory.
type ClassBasedCrossEntropyWithSoftmax struct {
	base
	clsLogSoftmax *tensor.Matrix // [C x T]
	clsSoftmax    *tensor.Matrix // [C x T]
	logSoftmax    *tensor.Matrix // [1 x sum of class sizes]
	grd           *tensor.Matrix // [1 x sum of class sizes], softmax - onehot
	delta         *tensor.Matrix

	// needRecompute marks grd as stale. Forward sets it; the first
	// Backward after that refills grd and clears it.
	needRecompute bool
}

// NewClassBasedCrossEntropyWithSoftmax creates a class-based softmax criterion.
func NewClassBasedCrossEntropyWithSoftmax(name string, labels, hidden, weights, classLogits node.Node, opts ...Option) *ClassBasedCrossEntropyWithSoftmax {
	c := &ClassBasedCrossEntropyWithSoftmax{base: newBase(name, OpClassBasedCrossEntropyWithSoftmax, []node.Node{labels, hidden, weights, classLogits}, opts)}
	c.clsLogSoftmax = c.newScratch()
	c.clsSoftmax = c.newScratch()
	c.logSoftmax = c.newScratch()
	c.grd = c.newScratch()
	c.delta = c.newScratch()
	return c
}

// classColumn is the decoded label of one column.
type classColumn struct {
	word, class int
	first, n    int
}

// Validate implements Criterion.
func (c *ClassBasedCrossEntropyWithSoftmax) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	if c.inputs[0].OperationName() != node.OpInputValue {
		return c.logicErrorf("input 0 must be the label (%s), got %s", node.OpInputValue, c.inputs[0].OperationName())
	}
	if err := c.checkHostLabels(); err != nil {
		return err
	}
	if !isFinalPass {
		return nil
	}
	labels, hidden := c.inputs[0].Value(), c.inputs[1].Value()
	weights, clsLogits := c.inputs[2].Value(), c.inputs[3].Value()
	if labels.Rows() != classLabelRows {
		return c.logicErrorf("labels need %d rows (word, class, first, end), got %d", classLabelRows, labels.Rows())
	}
	if hidden.Rows() != weights.Rows() {
		return c.logicErrorf("hidden has %d rows but weights have %d", hidden.Rows(), weights.Rows())
	}
	if labels.Cols() != hidden.Cols() || labels.Cols() != clsLogits.Cols() {
		return c.logicErrorf("column counts differ: labels %d, hidden %d, class logits %d", labels.Cols(), hidden.Cols(), clsLogits.Cols())
	}
	l := c.inputs[0].Layout()
	if !l.Equal(c.inputs[1].Layout()) || !l.Equal(c.inputs[3].Layout()) {
		return c.invalidArgumentf("labels, hidden and class logits must share one minibatch layout")
	}
	c.clsLogSoftmax.Resize(clsLogits.Rows(), clsLogits.Cols())
	c.clsSoftmax.Resize(clsLogits.Rows(), clsLogits.Cols())
	klog.V(1).Infof("%s %q: %d classes over %d words, %d columns", c.OperationName(), c.Name(), clsLogits.Rows(), weights.Cols(), labels.Cols())
	return c.place()
}

func (c *ClassBasedCrossEntropyWithSoftmax) checkHostLabels() error {
	if d := c.inputs[0].Value().Device(); !d.IsHost() {
		return c.logicErrorf("labels must reside in host memory, found on %s", d)
	}
	return nil
}

// decode reads and checks the label of column j.
func (c *ClassBasedCrossEntropyWithSoftmax) decode(j int) (classColumn, error) {
	labels := c.inputs[0].Value()
	word := int(labels.At(classLabelWord, j))
	class := int(labels.At(classLabelClass, j))
	first := int(labels.At(classLabelFirstWord, j))
	end := int(labels.At(classLabelEndWord, j))
	col := classColumn{word: word, class: class, first: first, n: end - first}
	switch {
	case col.n <= 0:
		return col, c.logicErrorf("column %d: class %d has no words [%d, %d)", j, class, first, end)
	case word < first || word >= end:
		return col, c.logicErrorf("column %d: word %d outside its class range [%d, %d)", j, word, first, end)
	case first < 0 || end > c.inputs[2].Value().Cols():
		return col, c.logicErrorf("column %d: class range [%d, %d) outside vocabulary of %d", j, first, end, c.inputs[2].Value().Cols())
	case class < 0 || class >= c.inputs[3].Value().Rows():
		return col, c.logicErrorf("column %d: class %d outside %d classes", j, class, c.inputs[3].Value().Rows())
	}
	return col, nil
}

// eachColumn visits the contributing columns in layout order, passing the
// offset of the column's slice in the packed buffers.
func (c *ClassBasedCrossEntropyWithSoftmax) eachColumn(fn func(j int, col classColumn, offset int)) (int, error) {
	l := c.inputs[0].Layout()
	var err error
	sz := 0
	l.ForEachColumn(c.inputs[0].Value().Cols(), func(s, t, j int) {
		if err != nil || !l.Contributes(s, t) {
			return
		}
		var col classColumn
		if col, err = c.decode(j); err != nil {
			return
		}
		if fn != nil {
			fn(j, col, sz)
		}
		sz += col.n
	})
	return sz, err
}

// Forward implements Criterion.
func (c *ClassBasedCrossEntropyWithSoftmax) Forward() error {
	if err := c.checkHostLabels(); err != nil {
		return err
	}
	return c.guard("Forward", func() error {
		c.clsLogSoftmax.AssignLogSoftmaxColumns(c.inputs[3].Value())
		c.clsSoftmax.AssignExp(c.clsLogSoftmax)

		total, err := c.eachColumn(nil)
		if err != nil {
			return err
		}
		c.logSoftmax.Resize(1, total)
		c.grd.Resize(1, total)

		hidden, weights := c.inputs[1].Value(), c.inputs[2].Value()
		var loss float64
		_, err = c.eachColumn(func(j int, col classColumn, offset int) {
			wordLogSoftmax := c.logSoftmax.ColumnSlice(offset, col.n)
			wordLogSoftmax.AssignProduct(hidden.ColumnSlice(j, 1), true, weights.ColumnSlice(col.first, col.n), false)
			wordLogSoftmax.LogSoftmaxRows()
			loss -= wordLogSoftmax.At(0, col.word-col.first) + c.clsLogSoftmax.At(col.class, j)
		})
		if err != nil {
			return err
		}
		c.needRecompute = true
		return c.finishForward(loss)
	})
}

// WordPosterior returns P(word | class) over the class range of column j as
// computed by the last Forward, or nil for a column that does not contribute.
func (c *ClassBasedCrossEntropyWithSoftmax) WordPosterior(j int) []float64 {
	var out []float64
	_, _ = c.eachColumn(func(col int, cc classColumn, offset int) {
		if col != j {
			return
		}
		out = make([]float64, cc.n)
		for i := range out {
			out[i] = math.Exp(c.logSoftmax.At(0, offset+i))
		}
	})
	return out
}

func (c *ClassBasedCrossEntropyWithSoftmax) recompute() error {
	if !c.needRecompute {
		return nil
	}
	_, err := c.eachColumn(func(j int, col classColumn, offset int) {
		for i := 0; i < col.n; i++ {
			v := math.Exp(c.logSoftmax.At(0, offset+i))
			if i == col.word-col.first {
				v--
			}
			c.grd.Set(0, offset+i, v)
		}
	})
	if err != nil {
		return err
	}
	c.needRecompute = false
	return nil
}

// Backward implements Criterion. Inputs 1 (hidden), 2 (weights) and
// 3 (class logits) are differentiable.
func (c *ClassBasedCrossEntropyWithSoftmax) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 1, 2, 3); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		if err := c.recompute(); err != nil {
			return err
		}
		g := c.seed()
		hidden, weights := c.inputs[1].Value(), c.inputs[2].Value()
		grad := c.inputs[inputIndex].Gradient()

		if inputIndex == 3 {
			c.delta.Resize(c.clsSoftmax.Rows(), c.clsSoftmax.Cols())
			c.delta.SetAll(0)
		}
		_, err := c.eachColumn(func(j int, col classColumn, offset int) {
			grd := c.grd.ColumnSlice(offset, col.n)
			switch inputIndex {
			case 1:
				grad.ColumnSlice(j, 1).AddProduct(g, weights.ColumnSlice(col.first, col.n), false, grd, true)
			case 2:
				grad.ColumnSlice(col.first, col.n).AddProduct(g, hidden.ColumnSlice(j, 1), false, grd, false)
			case 3:
				for k := 0; k < c.clsSoftmax.Rows(); k++ {
					v := c.clsSoftmax.At(k, j)
					if k == col.class {
						v--
					}
					c.delta.Set(k, j, g*v)
				}
			}
		})
		if err != nil {
			return err
		}
		if inputIndex == 3 {
			c.accumulate(3, c.delta)
		}
		return nil
	})
}

// Clone implements Criterion.
func (c *ClassBasedCrossEntropyWithSoftmax) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewClassBasedCrossEntropyWithSoftmax(c.Name(), c.inputs[0], c.inputs[1], c.inputs[2], c.inputs[3]), flags)
}

// CopyTo implements Criterion.
func (c *ClassBasedCrossEntropyWithSoftmax) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*ClassBasedCrossEntropyWithSoftmax)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	d.needRecompute = flags == CopyValue && c.needRecompute
	return c.copyBaseTo(&d.base, flags)
}
