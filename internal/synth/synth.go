// Package synth builds criteria over random inputs of consistent shapes, for
// gradient checks and smoke tests of every registered operation.
package synth

import (
	"math/rand/v2"

	"github.com/born-ml/criterion/internal/classes"
	"github.com/born-ml/criterion/internal/criterion"
	"github.com/born-ml/criterion/internal/gamma"
	"github.com/born-ml/criterion/internal/layout"
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sizes of the generated problems.
const (
	NumLabels  = 4 // classes of the frame-level criteria and CRF states
	HiddenDim  = 3
	VocabSize  = 8
	NumClasses = 3
	NumNoise   = 3 // NCE noise samples per column
)

// Config selects the minibatch shape of a generated problem.
type Config struct {
	// Cols is the number of minibatch columns. It is ignored when Layout is
	// set.
	Cols int

	// Layout is shared by every input that has columns. Nil means dense.
	Layout *layout.MBLayout

	Seed uint64

	// Options are passed to the criterion constructor.
	Options []criterion.Option
}

// Problem is a validated criterion over random inputs.
type Problem struct {
	Criterion criterion.Criterion

	// Checked lists the inputs whose Backward is the exact derivative of the
	// forward loss, and so can be compared with finite differences.
	Checked []int
}

type generator struct {
	rng    *rand.Rand
	normal distuv.Normal
	cols   int
	l      *layout.MBLayout
}

func (g *generator) matrix(rows, cols int) *tensor.Matrix {
	m := tensor.New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, g.normal.Rand())
		}
	}
	return m
}

func (g *generator) oneHot(rows int) *tensor.Matrix {
	m := tensor.New(rows, g.cols)
	for c := 0; c < g.cols; c++ {
		m.Set(g.rng.IntN(rows), c, 1)
	}
	return m
}

func (g *generator) computed(name string, m *tensor.Matrix) node.Node {
	return node.NewComputed(name, "Times", m, g.l)
}

func (g *generator) labels(name string, m *tensor.Matrix) node.Node {
	return node.NewInput(name, m, g.l)
}

// Build creates and validates the criterion registered under op.
func Build(op string, cfg Config) (*Problem, error) {
	cols := cfg.Cols
	if cfg.Layout != nil {
		cols = cfg.Layout.NumCols()
	}
	if cols <= 0 {
		return nil, errors.Errorf("synth: need at least one column, got %d", cols)
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	g := &generator{
		rng:    rand.New(src),
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
		cols:   cols,
		l:      cfg.Layout,
	}

	var (
		inputs  []node.Node
		checked []int
		opts    = cfg.Options
	)
	switch op {
	case criterion.OpSquareError:
		inputs = []node.Node{g.computed("a", g.matrix(NumLabels, cols)), g.computed("b", g.matrix(NumLabels, cols))}
		checked = []int{0, 1}
	case criterion.OpCrossEntropyWithSoftmax:
		inputs = []node.Node{g.labels("y", g.oneHot(NumLabels)), g.computed("z", g.matrix(NumLabels, cols))}
		checked = []int{0, 1}
	case criterion.OpCrossEntropy:
		probs := tensor.New(0, 0)
		probs.AssignLogSoftmaxColumns(g.matrix(NumLabels, cols))
		probs.Exp()
		inputs = []node.Node{g.labels("y", g.oneHot(NumLabels)), g.computed("p", probs)}
		checked = []int{0, 1}
	case criterion.OpMatrixL1Reg:
		w := g.matrix(NumLabels, cols)
		for r := 0; r < w.Rows(); r++ {
			for c := 0; c < w.Cols(); c++ {
				if v := w.At(r, c); v >= 0 {
					w.Set(r, c, v+0.1)
				} else {
					w.Set(r, c, v-0.1)
				}
			}
		}
		inputs = []node.Node{g.computed("w", w)}
		checked = []int{0}
	case criterion.OpMatrixL2Reg:
		inputs = []node.Node{g.computed("w", g.matrix(NumLabels, cols))}
		checked = []int{0}
	case criterion.OpNCE:
		labels, err := g.nceLabels(src)
		if err != nil {
			return nil, err
		}
		inputs = []node.Node{
			g.labels("y", labels),
			g.computed("h", g.matrix(HiddenDim, cols)),
			node.NewParameter("W", g.matrix(HiddenDim, VocabSize)),
			node.NewParameter("b", g.matrix(1, VocabSize)),
		}
		checked = []int{1, 2, 3}
	case criterion.OpClassBasedCrossEntropyWithSoftmax:
		labels, numClasses, vocab, err := g.classLabels()
		if err != nil {
			return nil, err
		}
		inputs = []node.Node{
			g.labels("y", labels),
			g.computed("h", g.matrix(HiddenDim, cols)),
			node.NewParameter("W", g.matrix(HiddenDim, vocab)),
			g.computed("c", g.matrix(numClasses, cols)),
		}
		checked = []int{1, 2, 3}
	case criterion.OpCRF:
		if cfg.Layout != nil && cfg.Layout.NumParallelSequences() > 1 {
			return nil, errors.Wrapf(criterion.ErrInvalidArgument, "synth: %s takes a single sequence", op)
		}
		inputs = []node.Node{
			g.labels("y", g.oneHot(NumLabels)),
			g.computed("e", g.matrix(NumLabels, cols)),
			node.NewParameter("T", g.matrix(NumLabels, NumLabels)),
		}
		checked = []int{1, 2}
	case criterion.OpDummyCriterion:
		inputs = []node.Node{
			node.NewInput("obj", tensor.Scalar(g.normal.Rand()), nil),
			g.computed("d", g.matrix(NumLabels, cols)),
			g.computed("p", g.matrix(NumLabels, cols)),
		}
	case criterion.OpSequenceWithSoftmax:
		inputs = []node.Node{
			g.labels("y", g.oneHot(NumLabels)),
			g.computed("z", g.matrix(NumLabels, cols)),
			g.computed("ll", g.matrix(NumLabels, cols)),
		}
		// With full smoothing and no frame drop the gradient is exact.
		opts = append([]criterion.Option{
			criterion.WithGammaCalculator(gamma.NewFramePosterior()),
			criterion.WithSmoothingWeight(1),
			criterion.WithFrameDropThreshold(0),
		}, opts...)
		checked = []int{1}
	}

	c, err := criterion.New(op, op, inputs, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(false); err != nil {
		return nil, err
	}
	if err := c.Validate(true); err != nil {
		return nil, err
	}
	return &Problem{Criterion: c, Checked: checked}, nil
}

// zipf returns word weights proportional to 1/(rank+1).
func zipf(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(i+1)
	}
	return w
}

func (g *generator) nceLabels(src rand.Source) (*tensor.Matrix, error) {
	unigram := zipf(VocabSize)
	targets := make([]int, g.cols)
	for j := range targets {
		targets[j] = g.rng.IntN(VocabSize)
	}
	return classes.SampleNCE(targets, unigram, NumNoise, src)
}

// classLabels draws a Zipf-distributed token stream, partitions its
// vocabulary and labels cols tokens of it.
func (g *generator) classLabels() (labels *tensor.Matrix, numClasses, vocab int, err error) {
	draw := distuv.NewCategorical(zipf(VocabSize), g.rng)
	stream := make([]int, 0, 16*VocabSize)
	for token := 0; token < VocabSize; token++ {
		stream = append(stream, token)
	}
	for len(stream) < cap(stream) {
		stream = append(stream, int(draw.Rand()))
	}
	p, err := classes.Build(classes.Count(stream), NumClasses)
	if err != nil {
		return nil, 0, 0, err
	}
	targets := make([]int, g.cols)
	for j := range targets {
		targets[j] = stream[g.rng.IntN(len(stream))]
	}
	labels, err = p.Labels(targets)
	if err != nil {
		return nil, 0, 0, err
	}
	return labels, p.NumClasses(), p.VocabSize(), nil
}
