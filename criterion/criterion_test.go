// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package criterion_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/born-ml/criterion/criterion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossEntropyWithSoftmax(t *testing.T) {
	mb := criterion.FromLengths(2, 1)
	// Columns are (s0,t0), (s1,t0), (s0,t1), (s1,t1); the last is a gap.
	labels := criterion.NewInput("y", criterion.FromColumns([][]float64{{1, 0}, {0, 1}, {1, 0}, {0, 1}}), mb)
	logits := criterion.NewComputed("z", "Times", criterion.FromColumns([][]float64{{0, 0}, {0, 0}, {0, 0}, {5, -5}}), mb)

	ce := criterion.NewCrossEntropyWithSoftmax("ce", labels, logits)
	require.NoError(t, ce.Validate(true))
	require.NoError(t, ce.Forward())
	assert.InDelta(t, 3*math.Ln2, ce.Value().Get00(), 1e-12)

	ce.FillGradient(1)
	require.NoError(t, ce.Backward(1))
	grad := logits.Gradient()
	assert.InDelta(t, -0.5, grad.At(0, 0), 1e-12)
	assert.Zero(t, grad.At(0, 3))
	assert.Zero(t, grad.At(1, 3))
}

func TestFactoryAndCheckpoint(t *testing.T) {
	assert.Contains(t, criterion.Operations(), "CRF")

	inputs := []criterion.Node{
		criterion.NewInput("y", criterion.FromRows([][]float64{{1, 2}}), nil),
		criterion.NewComputed("h", "Times", criterion.FromRows([][]float64{{0.1, 0.2}, {0.3, -0.4}}), nil),
		criterion.NewParameter("W", criterion.FromRows([][]float64{{1, 0, -1}, {0, 1, 0.5}})),
		criterion.NewParameter("b", criterion.NewMatrix(1, 3)),
	}
	c, err := criterion.New("NCEBasedCrossEntropyWithSoftmax", "nce", inputs, criterion.WithEvalMode(criterion.NCEEvalUnnormalized))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, criterion.Save(&buf, c))
	loaded, err := criterion.Load(&buf, inputs)
	require.NoError(t, err)
	assert.Equal(t, criterion.NCEEvalUnnormalized, loaded.(*criterion.NCE).EvalMode())

	_, err = criterion.New("Softmax", "x", nil)
	assert.ErrorIs(t, err, criterion.ErrInvalidArgument)
}
