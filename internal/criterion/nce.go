package criterion

import (
	"fmt"
	"math"

	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/serialization"
	"github.com/born-ml/criterion/internal/tensor"
	"k8s.io/klog/v2"
)

// OpNCE is the operation name of the noise-contrastive estimation criterion.
const OpNCE = "NCEBasedCrossEntropyWithSoftmax"

// NCEEvalMode selects how an NCE criterion evaluates its loss.
type NCEEvalMode int32

// Evaluation modes. The values are persisted; do not renumber.
const (
	// NCEEvalSoftmax evaluates the exact softmax cross entropy.
	NCEEvalSoftmax NCEEvalMode = 0
	// NCEEvalUnnormalized evaluates the unnormalized target score.
	NCEEvalUnnormalized NCEEvalMode = 1
	// NCEEvalNone trains with the sampled NCE objective.
	NCEEvalNone NCEEvalMode = 2
)

// String returns the mode name.
func (m NCEEvalMode) String() string {
	switch m {
	case NCEEvalSoftmax:
		return "Softmax"
	case NCEEvalUnnormalized:
		return "Unnormalized"
	case NCEEvalNone:
		return "None"
	default:
		return fmt.Sprintf("NCEEvalMode(%d)", int32(m))
	}
}

// NCE is the noise-contrastive estimation criterion over
// (labels, hidden, weights, bias).
//
// In training, labels is a [2K x T] block: for every column, row 2s holds the
// index of sample s and row 2s+1 its noise log-probability; sample 0 is the
// target word and stores its log-probability as is, the K-1 noise samples
// store it negated. The loss is the negative log-likelihood of classifying
// the target as data and the noise samples as noise, with score
// bias[w] + hidden·weights[:,w] and prior log(K-1).
//
// For evaluation the mode is picked per call: NCEEvalSoftmax, or a single
// label row of positive word indices, evaluates the exact softmax over
// hiddenᵀ·weights + bias; NCEEvalUnnormalized, or a single label row of
// negated word indices, sums the unnormalized target scores. Gradients exist
// only after a training-mode Forward.
type NCE struct {
	base
	logSoftmax    *tensor.Matrix // [T x V], softmax evaluation
	ncePrediction *tensor.Matrix // [K x T], d logLikelihood / d score

	evalMode NCEEvalMode
	lastMode NCEEvalMode
}

// NewNCE creates an NCE criterion. The mode defaults to NCEEvalNone.
func NewNCE(name string, labels, hidden, weights, bias node.Node, opts ...Option) *NCE {
	c := &NCE{base: newBase(name, OpNCE, []node.Node{labels, hidden, weights, bias}, opts)}
	c.logSoftmax = c.newScratch()
	c.ncePrediction = c.newScratch()
	c.evalMode = c.cfg.evalMode
	c.lastMode = c.evalMode
	return c
}

// EvalMode returns the configured evaluation mode.
func (c *NCE) EvalMode() NCEEvalMode { return c.evalMode }

// SetEvalMode changes the evaluation mode.
func (c *NCE) SetEvalMode(mode NCEEvalMode) { c.evalMode = mode }

// Validate implements Criterion.
func (c *NCE) Validate(isFinalPass bool) error {
	if err := c.validateBase(isFinalPass); err != nil {
		return err
	}
	if c.inputs[0].OperationName() != node.OpInputValue {
		return c.logicErrorf("input 0 must be the label (%s), got %s", node.OpInputValue, c.inputs[0].OperationName())
	}
	if !isFinalPass {
		return nil
	}
	labels, hidden := c.inputs[0].Value(), c.inputs[1].Value()
	weights, bias := c.inputs[2].Value(), c.inputs[3].Value()
	if hidden.Rows() != weights.Rows() {
		return c.logicErrorf("hidden has %d rows but weights have %d", hidden.Rows(), weights.Rows())
	}
	if labels.Cols() != hidden.Cols() {
		return c.logicErrorf("labels have %d columns but hidden has %d", labels.Cols(), hidden.Cols())
	}
	if bias.Rows() != 1 || bias.Cols() != weights.Cols() {
		return c.logicErrorf("bias must be 1x%d, got %dx%d", weights.Cols(), bias.Rows(), bias.Cols())
	}
	if labels.Rows() != 1 && (labels.Rows()%2 != 0 || labels.Rows() < 4) {
		return c.logicErrorf("labels need 1 row or 2K rows with K >= 2 samples, got %d", labels.Rows())
	}
	klog.V(1).Infof("%s %q: vocabulary %d, hidden %d, %d label rows", c.OperationName(), c.Name(), weights.Cols(), hidden.Rows(), labels.Rows())
	return c.place()
}

// selectMode applies the sign-pattern rule to the current labels.
func (c *NCE) selectMode() NCEEvalMode {
	labels := c.inputs[0].Value()
	positive, negative := 0, 0
	if labels.Rows() == 1 {
		for j := 0; j < labels.Cols(); j++ {
			switch v := labels.At(0, j); {
			case v > 0:
				positive++
			case v < 0:
				negative++
			}
		}
	}
	switch {
	case c.evalMode == NCEEvalSoftmax || positive > 0:
		return NCEEvalSoftmax
	case c.evalMode == NCEEvalUnnormalized || negative > 0:
		return NCEEvalUnnormalized
	default:
		return NCEEvalNone
	}
}

// Forward implements Criterion.
func (c *NCE) Forward() error {
	return c.guard("Forward", func() error {
		mode := c.selectMode()
		klog.V(1).Infof("%s %q: evaluating in %s mode", c.OperationName(), c.Name(), mode)
		var loss float64
		var err error
		switch mode {
		case NCEEvalSoftmax:
			loss, err = c.softmaxEval()
		case NCEEvalUnnormalized:
			loss, err = c.unnormalizedEval()
		default:
			loss, err = c.nceObjective()
		}
		if err != nil {
			return err
		}
		c.lastMode = mode
		return c.finishForward(loss)
	})
}

// wordIndex decodes a label value into a vocabulary index.
func (c *NCE) wordIndex(v float64, vocab int) (int, error) {
	w := int(math.Abs(v))
	if w >= vocab {
		return 0, c.logicErrorf("word index %d outside vocabulary of %d", w, vocab)
	}
	return w, nil
}

// score returns bias[w] + hidden[:,j]·weights[:,w].
func (c *NCE) score(j, w int) float64 {
	hidden, weights, bias := c.inputs[1].Value(), c.inputs[2].Value(), c.inputs[3].Value()
	s := bias.At(0, w)
	for d := 0; d < hidden.Rows(); d++ {
		s += hidden.At(d, j) * weights.At(d, w)
	}
	return s
}

func (c *NCE) softmaxEval() (float64, error) {
	labels, hidden, weights := c.inputs[0].Value(), c.inputs[1].Value(), c.inputs[2].Value()
	c.logSoftmax.AssignProduct(hidden, true, weights, false)
	c.logSoftmax.AddRowVector(c.inputs[3].Value())
	c.logSoftmax.LogSoftmaxRows()

	var logLikelihood float64
	l := c.inputs[0].Layout()
	for j := 0; j < labels.Cols(); j++ {
		if !l.ColumnContributes(j) {
			continue
		}
		w, err := c.wordIndex(labels.At(0, j), weights.Cols())
		if err != nil {
			return 0, err
		}
		logLikelihood += c.logSoftmax.At(j, w)
	}
	return -logLikelihood, nil
}

func (c *NCE) unnormalizedEval() (float64, error) {
	labels, weights := c.inputs[0].Value(), c.inputs[2].Value()
	var logLikelihood float64
	l := c.inputs[0].Layout()
	for j := 0; j < labels.Cols(); j++ {
		if !l.ColumnContributes(j) {
			continue
		}
		w, err := c.wordIndex(labels.At(0, j), weights.Cols())
		if err != nil {
			return 0, err
		}
		logLikelihood += c.score(j, w)
	}
	return -logLikelihood, nil
}

func (c *NCE) nceObjective() (float64, error) {
	labels, weights := c.inputs[0].Value(), c.inputs[2].Value()
	numSamples := labels.Rows() / 2
	if numSamples < 2 {
		return 0, c.logicErrorf("training needs 2K label rows with K >= 2, got %d", labels.Rows())
	}
	logNumNoise := math.Log(float64(numSamples - 1))
	c.ncePrediction.Resize(numSamples, labels.Cols())
	c.ncePrediction.SetAll(0)

	var logLikelihood float64
	l := c.inputs[0].Layout()
	for j := 0; j < labels.Cols(); j++ {
		if !l.ColumnContributes(j) {
			continue
		}
		for s := 0; s < numSamples; s++ {
			w, err := c.wordIndex(labels.At(2*s, j), weights.Cols())
			if err != nil {
				return 0, err
			}
			score := c.score(j, w)
			sampleLogProb := -labels.At(2*s+1, j)
			if s == 0 {
				sampleLogProb = -sampleLogProb
			}
			scoreNoise := logNumNoise + sampleLogProb
			z := tensor.LogAdd(score, scoreNoise)
			logProb := score - z
			logProbNoise := scoreNoise - z

			pred := -math.Exp(logProb)
			if s == 0 {
				pred++
				logLikelihood += logProb
			} else {
				logLikelihood += logProbNoise
			}
			c.ncePrediction.Set(s, j, pred)
		}
	}
	return -logLikelihood, nil
}

// Backward implements Criterion. Inputs 1 (hidden), 2 (weights) and
// 3 (bias) are differentiable, and only after a training-mode Forward.
func (c *NCE) Backward(inputIndex int) error {
	if c.evalMode != NCEEvalNone || c.lastMode != NCEEvalNone {
		return c.logicErrorf("Backward is only defined in training mode, not %s", c.lastMode)
	}
	if inputIndex == 0 {
		return c.invalidArgumentf("no gradient w.r.t. the label input")
	}
	if err := c.checkGradientIndex(inputIndex, 1, 2, 3); err != nil {
		return err
	}
	if err := c.requireForward(); err != nil {
		return err
	}
	return c.guard("Backward", func() error {
		labels, hidden, weights := c.inputs[0].Value(), c.inputs[1].Value(), c.inputs[2].Value()
		grad := c.inputs[inputIndex].Gradient()
		g := c.seed()
		numSamples := c.ncePrediction.Rows()
		for j := 0; j < c.ncePrediction.Cols(); j++ {
			for s := 0; s < numSamples; s++ {
				pred := c.ncePrediction.At(s, j)
				if pred == 0 {
					continue
				}
				w := int(math.Abs(labels.At(2*s, j)))
				coef := -g * pred
				switch inputIndex {
				case 1:
					for d := 0; d < hidden.Rows(); d++ {
						grad.Add(d, j, coef*weights.At(d, w))
					}
				case 2:
					for d := 0; d < hidden.Rows(); d++ {
						grad.Add(d, w, coef*hidden.At(d, j))
					}
				case 3:
					grad.Add(0, w, coef)
				}
			}
		}
		return nil
	})
}

// Save writes the evaluation mode as a 4-byte tag.
func (c *NCE) Save(w *serialization.Writer) {
	w.WriteInt32(int32(c.evalMode))
}

// Load reads the evaluation mode. A tag beyond the known modes comes from a
// newer writer that stored something else at this position: the mode falls
// back to NCEEvalNone and the tag is left unread.
func (c *NCE) Load(r *serialization.Reader) error {
	if r.Remaining() == 0 {
		c.evalMode = NCEEvalNone
		return nil
	}
	tag, err := r.ReadInt32()
	if err != nil {
		return c.runtimeErrorf("read eval mode: %v", err)
	}
	mode := NCEEvalMode(tag)
	if mode < NCEEvalSoftmax {
		return c.runtimeErrorf("unknown eval mode tag %d", tag)
	}
	if mode > NCEEvalNone {
		klog.Warningf("%s %q: eval mode tag %d unknown, using %s", c.OperationName(), c.Name(), tag, NCEEvalNone)
		if err := r.SetPosition(r.Position() - 4); err != nil {
			return c.runtimeErrorf("rewind eval mode: %v", err)
		}
		mode = NCEEvalNone
	}
	c.evalMode = mode
	c.lastMode = mode
	return nil
}

// Clone implements Criterion.
func (c *NCE) Clone(flags CopyFlags) Criterion {
	return mustCopy(c, NewNCE(c.Name(), c.inputs[0], c.inputs[1], c.inputs[2], c.inputs[3]), flags)
}

// CopyTo implements Criterion.
func (c *NCE) CopyTo(dst Criterion, flags CopyFlags) error {
	d, ok := dst.(*NCE)
	if !ok {
		return c.invalidArgumentf("cannot copy into %s", dst.OperationName())
	}
	d.evalMode = c.evalMode
	d.lastMode = c.lastMode
	return c.copyBaseTo(&d.base, flags)
}
