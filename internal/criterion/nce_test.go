package criterion

import (
	"math"
	"testing"

	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/serialization"
	"github.com/born-ml/criterion/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildNCE(labels *tensor.Matrix, opts ...Option) *NCE {
	cols := labels.Cols()
	return NewNCE("nce",
		node.NewInput("y", labels, nil),
		computed("h", Sample(3, cols, 0.5), nil),
		node.NewParameter("W", Sample(3, 5, 1.5)),
		node.NewParameter("b", Sample(1, 5, 2.5)),
		opts...)
}

// exactLogSoftmax returns log softmax(hᵀW + b) for column j at word w.
func exactLogSoftmax(c *NCE, j, w int) float64 {
	scores := make([]float64, 5)
	for v := range scores {
		scores[v] = c.score(j, v)
	}
	return scores[w] - tensor.LogSumExp(scores)
}

func TestNCESoftmaxEvaluation(t *testing.T) {
	labels := tensor.FromRows([][]float64{{1, 4, 2}})
	c := buildNCE(labels)
	loss := evaluate(t, c)

	var want float64
	for j, w := range []int{1, 4, 2} {
		want -= exactLogSoftmax(c, j, w)
	}
	assert.InDelta(t, want, loss, 1e-10)
}

func TestNCEUnnormalizedEvaluation(t *testing.T) {
	labels := tensor.FromRows([][]float64{{-1, -4, -2}})
	c := buildNCE(labels)
	loss := evaluate(t, c)

	var want float64
	for j, w := range []int{1, 4, 2} {
		want -= c.score(j, w)
	}
	assert.InDelta(t, want, loss, 1e-10)
}

func TestNCEExplicitModeWins(t *testing.T) {
	labels := tensor.FromRows([][]float64{{1, 4, 2}})
	c := buildNCE(labels, WithEvalMode(NCEEvalUnnormalized))
	assert.Equal(t, NCEEvalUnnormalized, c.EvalMode())

	var want float64
	for j, w := range []int{1, 4, 2} {
		want -= c.score(j, w)
	}
	assert.InDelta(t, want, evaluate(t, c), 1e-10)

	c.SetEvalMode(NCEEvalSoftmax)
	require.NoError(t, c.Forward())
	want = 0
	for j, w := range []int{1, 4, 2} {
		want -= exactLogSoftmax(c, j, w)
	}
	assert.InDelta(t, want, c.Value().Get00(), 1e-10)
}

func TestNCETrainingObjective(t *testing.T) {
	c := buildNCE(nceLabels(2))
	loss := evaluate(t, c)

	labels := c.Inputs()[0].Value()
	logNoise := math.Log(2)
	var ll float64
	for j := 0; j < 2; j++ {
		for s := 0; s < 3; s++ {
			score := c.score(j, int(labels.At(2*s, j)))
			noise := logNoise + math.Log(0.2)
			z := tensor.LogAdd(score, noise)
			if s == 0 {
				ll += score - z
			} else {
				ll += noise - z
			}
		}
	}
	assert.InDelta(t, -ll, loss, 1e-10)
}

func TestNCEBackwardOnlyInTraining(t *testing.T) {
	c := buildNCE(tensor.FromRows([][]float64{{1, 2}}))
	evaluate(t, c)
	err := c.Backward(1)
	assert.True(t, errors.Is(err, ErrLogic), "softmax evaluation has no gradient: %v", err)

	c = buildNCE(nceLabels(2), WithEvalMode(NCEEvalUnnormalized))
	evaluate(t, c)
	assert.True(t, errors.Is(c.Backward(2), ErrLogic))

	c = buildNCE(nceLabels(2))
	evaluate(t, c)
	assert.True(t, errors.Is(c.Backward(0), ErrInvalidArgument))
	assert.NoError(t, c.Backward(3))
}

func TestNCEValidate(t *testing.T) {
	t.Run("label role", func(t *testing.T) {
		c := NewNCE("nce", computed("y", nceLabels(2), nil), computed("h", Sample(3, 2, 0), nil),
			node.NewParameter("W", Sample(3, 5, 0)), node.NewParameter("b", Sample(1, 5, 0)))
		assert.True(t, errors.Is(c.Validate(false), ErrLogic))
	})
	t.Run("hidden rows", func(t *testing.T) {
		c := NewNCE("nce", node.NewInput("y", nceLabels(2), nil), computed("h", Sample(4, 2, 0), nil),
			node.NewParameter("W", Sample(3, 5, 0)), node.NewParameter("b", Sample(1, 5, 0)))
		assert.True(t, errors.Is(c.Validate(true), ErrLogic))
	})
	t.Run("label columns", func(t *testing.T) {
		c := NewNCE("nce", node.NewInput("y", nceLabels(3), nil), computed("h", Sample(3, 2, 0), nil),
			node.NewParameter("W", Sample(3, 5, 0)), node.NewParameter("b", Sample(1, 5, 0)))
		assert.True(t, errors.Is(c.Validate(true), ErrLogic))
	})
	t.Run("word out of range", func(t *testing.T) {
		c := buildNCE(tensor.FromRows([][]float64{{7}}))
		require.NoError(t, c.Validate(true))
		assert.True(t, errors.Is(c.Forward(), ErrLogic))
	})
}

func TestNCEEvalModePersistence(t *testing.T) {
	c := buildNCE(nceLabels(2), WithEvalMode(NCEEvalUnnormalized))
	w := serialization.NewWriter()
	c.Save(w)
	assert.Equal(t, 4, w.Len())

	loaded := buildNCE(nceLabels(2))
	require.NoError(t, loaded.Load(serialization.NewReader(w.Bytes())))
	assert.Equal(t, NCEEvalUnnormalized, loaded.EvalMode())
}

func TestNCEEvalModeForwardCompatible(t *testing.T) {
	// A tag from a newer writer resets the mode and leaves the bytes unread.
	w := serialization.NewWriter()
	w.WriteInt32(int32(NCEEvalNone) + 5)
	w.WriteFloat64(1.5)

	c := buildNCE(nceLabels(2), WithEvalMode(NCEEvalSoftmax))
	r := serialization.NewReader(w.Bytes())
	require.NoError(t, c.Load(r))
	assert.Equal(t, NCEEvalNone, c.EvalMode())
	assert.Equal(t, 0, r.Position())

	tag, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(NCEEvalNone)+5, tag)
}

func TestNCEEvalModeUnknownNegativeTag(t *testing.T) {
	w := serialization.NewWriter()
	w.WriteInt32(-3)
	c := buildNCE(nceLabels(2))
	err := c.Load(serialization.NewReader(w.Bytes()))
	assert.True(t, errors.Is(err, ErrRuntime), "got %v", err)
}

func TestNCEEvalModeString(t *testing.T) {
	assert.Equal(t, "Softmax", NCEEvalSoftmax.String())
	assert.Equal(t, "Unnormalized", NCEEvalUnnormalized.String())
	assert.Equal(t, "None", NCEEvalNone.String())
	assert.Equal(t, "NCEEvalMode(9)", NCEEvalMode(9).String())
}
