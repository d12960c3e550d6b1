// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim_test

import (
	"testing"

	"github.com/born-ml/criterion/criterion"
	"github.com/born-ml/criterion/optim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdamFitsLabels(t *testing.T) {
	labels := criterion.NewInput("y", criterion.FromColumns([][]float64{{1, 0, 0}, {0, 0, 1}}), nil)
	logits := criterion.NewComputed("z", "Times", criterion.NewMatrix(3, 2), nil)
	ce := criterion.NewCrossEntropyWithSoftmax("ce", labels, logits)
	require.NoError(t, ce.Validate(true))

	opt := optim.NewAdam([]criterion.Node{logits}, optim.AdamConfig{LR: 0.1})
	var losses []float64
	for range 20 {
		opt.ZeroGrad()
		require.NoError(t, ce.Forward())
		losses = append(losses, ce.Value().Get00())
		ce.FillGradient(1)
		require.NoError(t, ce.Backward(1))
		opt.Step()
	}
	for i := 1; i < len(losses); i++ {
		assert.Less(t, losses[i], losses[i-1], "step %d", i)
	}
	assert.Greater(t, logits.Value().At(0, 0), logits.Value().At(1, 0))
}

func TestSGDStep(t *testing.T) {
	w := criterion.NewParameter("w", criterion.Scalar(2))
	w.Gradient().SetAll(1)
	opt := optim.NewSGD([]criterion.Node{w}, optim.SGDConfig{LR: 0.1})
	opt.Step()
	assert.InDelta(t, 1.9, w.Value().Get00(), 1e-12)
}
