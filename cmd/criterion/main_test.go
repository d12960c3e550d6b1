package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/born-ml/criterion/internal/criterion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOps(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runOps(&out))
	assert.Contains(t, out.String(), "ClassBasedCrossEntropyWithSoftmax")
	assert.Equal(t, len(criterion.Operations()), strings.Count(out.String(), "\n"))
}

func TestGradcheckAll(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runGradcheck(nil, &out))
	for _, op := range criterion.Operations() {
		assert.Contains(t, out.String(), op)
	}
	assert.NotContains(t, out.String(), "FAIL")
	assert.Contains(t, out.String(), "no differentiable inputs")
}

func TestGradcheckPackedSequences(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runGradcheck([]string{"-seqs", "3,2", "-grad", "0.5"}, &out))
	assert.Contains(t, out.String(), "skipped")
}

func TestGradcheckWebGPUFallsBack(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runGradcheck([]string{"-op", criterion.OpSquareError, "-device", "webgpu"}, &out))
	assert.Contains(t, out.String(), "ok")
}

func TestGradcheckRejects(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runGradcheck([]string{"-op", "Softmax"}, &out))
	assert.Error(t, runGradcheck([]string{"-device", "tpu"}, &out))
	assert.Error(t, runGradcheck([]string{"-seqs", "3,x"}, &out))
}

func TestGradcheckReportsFailure(t *testing.T) {
	var out bytes.Buffer
	err := runGradcheck([]string{"-op", criterion.OpMatrixL2Reg, "-tol", "-1"}, &out)
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, out.String(), "FAIL")
}

func TestClasses(t *testing.T) {
	text := strings.Repeat("the cat sat on the mat the end ", 4)
	var out bytes.Buffer
	require.NoError(t, runClasses([]string{"-n", "2", "-top", "1"}, strings.NewReader(text), &out))
	report := out.String()
	assert.Contains(t, report, "32 tokens, 6 distinct, 2 classes")
	assert.Contains(t, report, `"the"`)
	assert.Contains(t, report, "...")
}

func TestTrainDecreasesLoss(t *testing.T) {
	for _, args := range [][]string{
		{"-op", criterion.OpSquareError, "-optimizer", "sgd", "-lr", "0.2", "-steps", "30"},
		{"-op", criterion.OpCrossEntropyWithSoftmax, "-steps", "40", "-every", "10"},
		{"-op", criterion.OpCrossEntropyWithSoftmax, "-optimizer", "sgd", "-momentum", "0.9", "-lr", "0.1"},
	} {
		var out bytes.Buffer
		require.NoError(t, runTrain(args, &out), strings.Join(args, " "))
		assert.Contains(t, out.String(), "loss")
	}
}

func TestTrainRejects(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runTrain([]string{"-op", "Softmax"}, &out))
	assert.Error(t, runTrain([]string{"-optimizer", "lbfgs"}, &out))
	assert.Error(t, runTrain([]string{"-steps", "0"}, &out))
	assert.Error(t, runTrain([]string{"-op", criterion.OpDummyCriterion}, &out))
}
