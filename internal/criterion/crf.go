package criterion

import (
	"math"

	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// OpCRF is the operation name of the linear-chain CRF criterion.
const OpCRF = "CRF"

// CRF is a linear-chain conditional random field over inputs
// (labels, emissions, transitions):
//
//	labels       [K x T]  one-hot gold label per column
//	emissions    [K x T]  position-dependent label scores
//	transitions  [K x K]  transitions[k, j] scores label j followed by k
//
// The chain is anchored on the gold label of its first column: the path
// enters position 0 through the transition from that start label. The loss
// is the negative log-probability of the gold path,
//
//	-(score(gold) - logsumexp over all paths of score(path))
//
// computed with a log-domain forward-backward pass. The minibatch must hold
// a single sequence; it ends at its first non-contributing column, and
// every later column must be a gap or NoLabel too.
type CRF struct {
	base
	alpha    *tensor.Matrix // [K x T] forward log scores
	beta     *tensor.Matrix // [K x T] log label posteriors
	postProb *tensor.Matrix // [K x T] exp(beta)
	delta    *tensor.Matrix

	gold       []int
	startLabel int
	endLabel   int
}

// NewCRF creates a CRF criterion.
func NewCRF(name string, labels, emissions, transitions node.Node, opts ...Option) *CRF {
	c := &CRF{
		base:       newBase(name, OpCRF, []node.Node{labels, emissions, transitions}, opts),
		startLabel: -1,
		endLabel:   -1,
	}
	c.alpha = c.newScratch()
	c.beta = c.newScratch()
	c.postProb = c.newScratch()
	c.delta = c.newScratch()
	return c
}

// StartLabel returns the gold label of the first column seen by the last
// Forward, or -1.
func (c *CRF) StartLabel() int { return c.startLabel }

// EndLabel returns the gold label of the last column seen by the last
// Forward, or -1.
func (c *CRF) EndLabel() int { return c.endLabel }

// Posterior returns the label posteriors of the last Forward.
func (c *CRF) Posterior() *tensor.Matrix { return c.postProb }

// Validate implements Criterion.
func (c *CRF) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	if !isFinalPass {
		return nil
	}
	labels, emissions, trans := c.inputs[0].Value(), c.inputs[1].Value(), c.inputs[2].Value()
	if trans.Rows() != trans.Cols() {
		return c.logicErrorf("transitions must be square, got %dx%d", trans.Rows(), trans.Cols())
	}
	if emissions.Rows() != trans.Rows() || labels.Rows() != trans.Rows() {
		return c.logicErrorf("label counts differ: labels %d, emissions %d, transitions %d", labels.Rows(), emissions.Rows(), trans.Rows())
	}
	if labels.Cols() != emissions.Cols() {
		return c.logicErrorf("labels have %d columns but emissions have %d", labels.Cols(), emissions.Cols())
	}
	for _, m := range c.scratch {
		m.Resize(emissions.Rows(), emissions.Cols())
	}
	return c.place()
}

// sequenceLength returns the number of leading contributing columns. Gap
// and NoLabel columns may only trail the sequence.
func (c *CRF) sequenceLength() (int, error) {
	l := c.inputs[1].Layout()
	if n := l.NumParallelSequences(); n > 1 {
		return 0, c.logicErrorf("%d parallel sequences in the minibatch; only one is supported", n)
	}
	labelLayout := c.inputs[0].Layout()
	contributes := func(j int) bool {
		return l.ColumnContributes(j) && labelLayout.ColumnContributes(j)
	}
	cols := c.inputs[1].Value().Cols()
	n := 0
	for n < cols && contributes(n) {
		n++
	}
	for j := n + 1; j < cols; j++ {
		if contributes(j) {
			return 0, c.logicErrorf("column %d follows a gap at column %d; the chain cannot skip columns", j, n)
		}
	}
	return n, nil
}

// goldPath decodes the one-hot labels of the first n columns.
func (c *CRF) goldPath(n int) ([]int, error) {
	labels := c.inputs[0].Value()
	gold := make([]int, n)
	for t := range gold {
		gold[t] = -1
		for k := 0; k < labels.Rows(); k++ {
			if labels.At(k, t) != 0 {
				gold[t] = k
				break
			}
		}
		if gold[t] < 0 {
			return nil, c.logicErrorf("column %d carries no label", t)
		}
	}
	return gold, nil
}

// previous returns the log scores entering position t: alpha[:, t-1], or the
// start vector at t = 0.
func (c *CRF) previous(t int, out []float64) {
	if t > 0 {
		for k := range out {
			out[k] = c.alpha.At(k, t-1)
		}
		return
	}
	for k := range out {
		out[k] = tensor.LogZero
	}
	out[c.startLabel] = 0
}

// Forward implements Criterion.
func (c *CRF) Forward() error {
	return c.guard("Forward", func() error {
		n, err := c.sequenceLength()
		if err != nil {
			return err
		}
		emissions, trans := c.inputs[1].Value(), c.inputs[2].Value()
		for _, m := range c.scratch {
			m.Resize(emissions.Rows(), emissions.Cols())
			m.SetAll(0)
		}
		if n == 0 {
			c.gold, c.startLabel, c.endLabel = nil, -1, -1
			return c.finishForward(0)
		}
		if c.gold, err = c.goldPath(n); err != nil {
			return err
		}
		c.startLabel, c.endLabel = c.gold[0], c.gold[n-1]

		numLabels := emissions.Rows()
		prev := make([]float64, numLabels)
		vals := make([]float64, numLabels)
		for t := 0; t < n; t++ {
			c.previous(t, prev)
			for k := 0; k < numLabels; k++ {
				for j := range vals {
					vals[j] = prev[j] + trans.At(k, j)
				}
				c.alpha.Set(k, t, tensor.LogSumExp(vals)+emissions.At(k, t))
			}
		}

		logZ := c.alpha.LogSumExpColumn(n - 1)
		for k := 0; k < numLabels; k++ {
			c.beta.Set(k, n-1, c.alpha.At(k, n-1)-logZ)
		}
		norm := make([]float64, numLabels)
		for t := n - 2; t >= 0; t-- {
			for j := range norm {
				for m := range vals {
					vals[m] = c.alpha.At(m, t) + trans.At(j, m)
				}
				norm[j] = tensor.LogSumExp(vals)
			}
			for k := 0; k < numLabels; k++ {
				for j := range vals {
					vals[j] = c.beta.At(j, t+1) + c.alpha.At(k, t) + trans.At(j, k) - norm[j]
				}
				c.beta.Set(k, t, tensor.LogSumExp(vals))
			}
		}
		for k := 0; k < numLabels; k++ {
			for t := 0; t < n; t++ {
				c.postProb.Set(k, t, math.Exp(c.beta.At(k, t)))
			}
		}

		goldScore := trans.At(c.gold[0], c.startLabel)
		for t, k := range c.gold {
			goldScore += emissions.At(k, t)
			if t > 0 {
				goldScore += trans.At(k, c.gold[t-1])
			}
		}
		return c.finishForward(-(goldScore - logZ))
	})
}

// Backward implements Criterion. Inputs 1 (emissions) and 2 (transitions)
// are differentiable.
func (c *CRF) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 1, 2); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		g := c.seed()
		n := len(c.gold)
		if inputIndex == 1 {
			c.delta.AssignDifference(c.postProb, c.inputs[0].Value())
			for j := n; j < c.delta.Cols(); j++ {
				c.delta.ZeroColumn(j)
			}
			c.delta.Scale(g)
			c.accumulate(1, c.delta)
			return nil
		}
		c.transitionGradient(g, c.inputs[2].Gradient())
		return nil
	})
}

// transitionGradient adds g * (expected - gold) transition counts into grad.
func (c *CRF) transitionGradient(g float64, grad *tensor.Matrix) {
	trans := c.inputs[2].Value()
	numLabels := trans.Rows()
	prev := make([]float64, numLabels)
	vals := make([]float64, numLabels)
	for t := range c.gold {
		c.previous(t, prev)
		for j := 0; j < numLabels; j++ {
			for k := range vals {
				vals[k] = prev[k] + trans.At(j, k)
			}
			norm := tensor.LogSumExp(vals)
			for i := 0; i < numLabels; i++ {
				if math.IsInf(prev[i], -1) {
					continue
				}
				grad.Add(j, i, g*math.Exp(prev[i]+trans.At(j, i)-norm+c.beta.At(j, t)))
			}
		}
		from := c.startLabel
		if t > 0 {
			from = c.gold[t-1]
		}
		grad.Add(c.gold[t], from, -g)
	}
}

// Clone implements Criterion.
func (c *CRF) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewCRF(c.Name(), c.inputs[0], c.inputs[1], c.inputs[2]), flags)
}

// CopyTo implements Criterion.
func (c *CRF) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*CRF)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	d.gold, d.startLabel, d.endLabel = nil, -1, -1
	if flags == CopyValue {
		d.gold = append([]int(nil), c.gold...)
		d.startLabel, d.endLabel = c.startLabel, c.endLabel
	}
	return c.copyBaseTo(&d.base, flags)
}
