package criterion

import (
	"math"

	"github.com/born-ml/criterion/internal/gamma"
	"github.com/born-ml/criterion/internal/layout"
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// Fixture builds one criterion over deterministic data. Values depend only on
// (row, column), so a minibatch and the same minibatch with trailing gap
// columns agree on every shared column.
type Fixture struct {
	Name  string
	Build func(cols int, l *layout.MBLayout) Criterion

	// Grads lists the inputs Backward accepts; Checked those whose gradient
	// is the exact derivative of the forward loss.
	Grads   []int
	Checked []int
}

// Sample returns a rows x cols matrix of smooth pseudo-random values.
func Sample(rows, cols int, seed float64) *tensor.Matrix {
	m := tensor.New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, math.Sin(1.3*float64(r)+0.7*float64(c)+seed))
		}
	}
	return m
}

// OneHot returns a rows x cols one-hot matrix.
func OneHot(rows, cols, seed int) *tensor.Matrix {
	m := tensor.New(rows, cols)
	for c := 0; c < cols; c++ {
		m.Set((2*c+seed)%rows, c, 1)
	}
	return m
}

// awayFromZero pushes every element at least 0.2 away from zero.
func awayFromZero(m *tensor.Matrix) *tensor.Matrix {
	for r := 0; r < m.Rows(); r++ {
		for c := 0; c < m.Cols(); c++ {
			if v := m.At(r, c); v >= 0 {
				m.Set(r, c, v+0.2)
			} else {
				m.Set(r, c, v-0.2)
			}
		}
	}
	return m
}

func computed(name string, m *tensor.Matrix, l *layout.MBLayout) *node.Computed {
	return node.NewComputed(name, "Times", m, l)
}

// nceLabels builds a [6 x cols] block: target plus two noise words over a
// vocabulary of 5 with uniform noise probability.
func nceLabels(cols int) *tensor.Matrix {
	m := tensor.New(6, cols)
	logP := math.Log(0.2)
	for c := 0; c < cols; c++ {
		m.Set(0, c, float64(c%5))
		m.Set(1, c, logP)
		m.Set(2, c, float64((c+2)%5))
		m.Set(3, c, -logP)
		m.Set(4, c, float64((3*c+1)%5))
		m.Set(5, c, -logP)
	}
	return m
}

// classLabels packs words over classes [0, 2) and [2, 5).
func classLabels(cols int) *tensor.Matrix {
	m := tensor.New(4, cols)
	for c := 0; c < cols; c++ {
		word := (3*c + 1) % 5
		class, first, end := 0, 0, 2
		if word >= 2 {
			class, first, end = 1, 2, 5
		}
		m.Set(0, c, float64(word))
		m.Set(1, c, float64(class))
		m.Set(2, c, float64(first))
		m.Set(3, c, float64(end))
	}
	return m
}

// softmaxColumns returns exp(logSoftmax) of m.
func softmaxColumns(m *tensor.Matrix) *tensor.Matrix {
	out := tensor.New(0, 0)
	out.AssignLogSoftmaxColumns(m)
	out.Exp()
	return out
}

// Fixtures returns one fixture per criterion variant.
func Fixtures() []Fixture {
	return []Fixture{
		{
			Name: OpSquareError,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewSquareError("se", computed("a", Sample(3, cols, 0), l), computed("b", Sample(3, cols, 1), l))
			},
			Grads: []int{0, 1}, Checked: []int{0, 1},
		},
		{
			Name: OpCrossEntropyWithSoftmax,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewCrossEntropyWithSoftmax("cews", node.NewInput("y", OneHot(3, cols, 0), l), computed("z", Sample(3, cols, 2), l))
			},
			Grads: []int{0, 1}, Checked: []int{0, 1},
		},
		{
			Name: OpCrossEntropy,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewCrossEntropy("ce", node.NewInput("y", OneHot(3, cols, 1), l), computed("p", softmaxColumns(Sample(3, cols, 3)), l))
			},
			Grads: []int{0, 1}, Checked: []int{0, 1},
		},
		{
			Name: OpMatrixL1Reg,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewL1Reg("l1", computed("w", awayFromZero(Sample(2, cols, 4)), l))
			},
			Grads: []int{0}, Checked: []int{0},
		},
		{
			Name: OpMatrixL2Reg,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewL2Reg("l2", computed("w", Sample(2, cols, 5), l))
			},
			Grads: []int{0}, Checked: []int{0},
		},
		{
			Name: OpNCE,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewNCE("nce",
					node.NewInput("y", nceLabels(cols), l),
					computed("h", Sample(3, cols, 6), l),
					node.NewParameter("W", Sample(3, 5, 7)),
					node.NewParameter("b", Sample(1, 5, 8)))
			},
			Grads: []int{1, 2, 3}, Checked: []int{1, 2, 3},
		},
		{
			Name: OpClassBasedCrossEntropyWithSoftmax,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewClassBasedCrossEntropyWithSoftmax("cls",
					node.NewInput("y", classLabels(cols), l),
					computed("h", Sample(3, cols, 9), l),
					node.NewParameter("W", Sample(3, 5, 10)),
					computed("c", Sample(2, cols, 11), l))
			},
			Grads: []int{1, 2, 3}, Checked: []int{1, 2, 3},
		},
		{
			Name: OpCRF,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewCRF("crf",
					node.NewInput("y", OneHot(3, cols, 2), l),
					computed("e", Sample(3, cols, 12), l),
					node.NewParameter("T", Sample(3, 3, 13)))
			},
			Grads: []int{1, 2}, Checked: []int{1, 2},
		},
		{
			Name: OpDummyCriterion,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewDummyCriterion("dummy",
					node.NewInput("obj", tensor.Scalar(2.5), nil),
					computed("d", Sample(2, cols, 14), l),
					computed("p", Sample(2, cols, 15), l))
			},
			Grads: []int{2},
		},
		{
			Name: OpSequenceWithSoftmax,
			Build: func(cols int, l *layout.MBLayout) Criterion {
				return NewSequenceWithSoftmax("seq",
					node.NewInput("y", OneHot(3, cols, 0), l),
					computed("z", Sample(3, cols, 16), l),
					computed("ll", Sample(3, cols, 17), l),
					WithGammaCalculator(gamma.NewFramePosterior()),
					WithSmoothingWeight(1),
					WithFrameDropThreshold(0))
			},
			Grads: []int{0, 1, 2}, Checked: []int{1},
		},
	}
}

// TrailingGap returns a single-sequence layout whose last column is a gap.
func TrailingGap(cols int) *layout.MBLayout {
	l := layout.New(1, cols)
	l.Set(0, cols-1, layout.NoInput)
	return l
}
