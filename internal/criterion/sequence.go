package criterion

import (
	"github.com/born-ml/criterion/internal/gamma"
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/serialization"
	"github.com/born-ml/criterion/internal/tensor"
	"k8s.io/klog/v2"
)

// OpSequenceWithSoftmax is the operation name of the sequence-training
// criterion.
const OpSequenceWithSoftmax = "SequenceWithSoftmax"

// SequenceWithSoftmax is a lattice-based sequence criterion over inputs
// (labels, logits, logLikelihoods). Forward takes the column log-softmax of
// the logits and hands it to a gamma.Calculator, which returns the sequence
// loss and the per-frame posterior gamma. The logits gradient blends the
// frame and sequence terms,
//
//	g * ((1-h) * softmax + h * gamma - labels)
//
// with h the smoothing weight. Frames whose gamma at the reference state
// falls below the frame-drop threshold get no gradient. The log-likelihood
// input receives no gradient.
type SequenceWithSoftmax struct {
	base
	logSoftmax *tensor.Matrix
	softmax    *tensor.Matrix
	gammaPost  *tensor.Matrix
	delta      *tensor.Matrix
}

// NewSequenceWithSoftmax creates a SequenceWithSoftmax criterion. A gamma
// calculator must be supplied with WithGammaCalculator before Forward.
func NewSequenceWithSoftmax(name string, labels, logits, logLikelihoods node.Node, opts ...Option) *SequenceWithSoftmax {
	c := &SequenceWithSoftmax{base: newBase(name, OpSequenceWithSoftmax, []node.Node{labels, logits, logLikelihoods}, opts)}
	c.logSoftmax = c.newScratch()
	c.softmax = c.newScratch()
	c.gammaPost = c.newScratch()
	c.delta = c.newScratch()
	return c
}

// SmoothingWeight returns the weight h of the sequence term.
func (c *SequenceWithSoftmax) SmoothingWeight() float64 { return c.cfg.smoothingWeight }

// SetSmoothingWeight sets the weight h of the sequence term.
func (c *SequenceWithSoftmax) SetSmoothingWeight(h float64) { c.cfg.smoothingWeight = h }

// FrameDropThreshold returns the gamma below which a frame is dropped.
func (c *SequenceWithSoftmax) FrameDropThreshold() float64 { return c.cfg.frameDropThreshold }

// SetFrameDropThreshold sets the gamma below which a frame is dropped.
func (c *SequenceWithSoftmax) SetFrameDropThreshold(threshold float64) {
	c.cfg.frameDropThreshold = threshold
}

// ReferenceAlign reports whether gamma follows the reference alignment.
func (c *SequenceWithSoftmax) ReferenceAlign() bool { return c.cfg.referenceAlign }

// SetReferenceAlign switches gamma to the reference alignment.
func (c *SequenceWithSoftmax) SetReferenceAlign(enabled bool) { c.cfg.referenceAlign = enabled }

// SetGammaCalculator replaces the alignment collaborator.
func (c *SequenceWithSoftmax) SetGammaCalculator(calc gamma.Calculator) {
	c.cfg.gammaCalculator = calc
}

// Gamma returns the frame posteriors of the last Forward.
func (c *SequenceWithSoftmax) Gamma() *tensor.Matrix { return c.gammaPost }

// Validate implements Criterion.
func (c *SequenceWithSoftmax) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	switch op := c.inputs[0].OperationName(); op {
	case node.OpInputValue, node.OpSparseInputValue:
	default:
		return c.logicErrorf("input 0 must be the label (%s or %s), got %s", node.OpInputValue, node.OpSparseInputValue, op)
	}
	labels := c.inputs[0].Value()
	if isFinalPass {
		for i := 1; i < len(c.inputs); i++ {
			if m := c.inputs[i].Value(); !m.SameShape(labels) {
				return c.logicErrorf("input %d is %dx%d but labels are %dx%d", i, m.Rows(), m.Cols(), labels.Rows(), labels.Cols())
			}
		}
	}
	for _, m := range c.scratch {
		m.Resize(labels.Rows(), labels.Cols())
	}
	return c.place()
}

// Forward implements Criterion.
func (c *SequenceWithSoftmax) Forward() error {
	calc := c.cfg.gammaCalculator
	if calc == nil {
		return c.logicErrorf("no gamma calculator configured")
	}
	return c.guard("Forward", func() error {
		c.logSoftmax.AssignLogSoftmaxColumns(c.inputs[1].Value())
		c.softmax.AssignExp(c.logSoftmax)
		c.gammaPost.Resize(c.logSoftmax.Rows(), c.logSoftmax.Cols())
		loss, err := calc.Compute(gamma.Request{
			LogSoftmax:     c.logSoftmax,
			LogLikelihood:  c.inputs[2].Value(),
			Labels:         c.inputs[0].Value(),
			Layout:         c.inputs[0].Layout(),
			ReferenceAlign: c.cfg.referenceAlign,
		}, c.gammaPost)
		if err != nil {
			return c.runtimeErrorf("gamma calculation: %v", err)
		}
		c.inputs[1].Layout().MaskColumns(c.logSoftmax)
		return c.finishForward(loss)
	})
}

// Backward implements Criterion. Input 0 receives -g * logSoftmax, input 1
// the blended logits gradient and input 2 nothing.
func (c *SequenceWithSoftmax) Backward(inputIndex int) error {
	if err := c.checkGradientIndex(inputIndex, 0, 1, 2); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		g := c.seed()
		switch inputIndex {
		case 0:
			c.inputs[0].Gradient().AddScaled(-g, c.logSoftmax)
		case 1:
			c.logitsGradient(g)
			c.accumulate(1, c.delta)
		}
		return nil
	})
}

func (c *SequenceWithSoftmax) logitsGradient(g float64) {
	h := c.cfg.smoothingWeight
	labels := c.inputs[0].Value()
	c.delta.Resize(labels.Rows(), labels.Cols())
	c.delta.CopyFrom(c.softmax)
	c.delta.Scale(1 - h)
	c.delta.AddScaled(h, c.gammaPost)
	c.delta.AddScaled(-1, labels)
	c.delta.Scale(g)

	dropped := 0
	for j := 0; j < labels.Cols(); j++ {
		for k := 0; k < labels.Rows(); k++ {
			if labels.At(k, j) > 0.5 && c.gammaPost.At(k, j) < c.cfg.frameDropThreshold {
				c.delta.ZeroColumn(j)
				dropped++
				break
			}
		}
	}
	if dropped > 0 {
		klog.V(2).Infof("%s %q: dropped %d of %d frames", c.OperationName(), c.Name(), dropped, labels.Cols())
	}
}

// Save writes the sequence-training settings.
func (c *SequenceWithSoftmax) Save(w *serialization.Writer) {
	w.WriteFloat64(c.cfg.smoothingWeight)
	w.WriteFloat64(c.cfg.frameDropThreshold)
	w.WriteBool(c.cfg.referenceAlign)
}

// Load reads the settings written by Save.
func (c *SequenceWithSoftmax) Load(r *serialization.Reader) error {
	h, err := r.ReadFloat64()
	if err != nil {
		return c.runtimeErrorf("read smoothing weight: %v", err)
	}
	threshold, err := r.ReadFloat64()
	if err != nil {
		return c.runtimeErrorf("read frame-drop threshold: %v", err)
	}
	align, err := r.ReadBool()
	if err != nil {
		return c.runtimeErrorf("read reference-align flag: %v", err)
	}
	c.cfg.smoothingWeight, c.cfg.frameDropThreshold, c.cfg.referenceAlign = h, threshold, align
	return nil
}

// Clone implements Criterion.
func (c *SequenceWithSoftmax) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewSequenceWithSoftmax(c.Name(), c.inputs[0], c.inputs[1], c.inputs[2]), flags)
}

// CopyTo implements Criterion.
func (c *SequenceWithSoftmax) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*SequenceWithSoftmax)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	return c.copyBaseTo(&d.base, flags)
}
