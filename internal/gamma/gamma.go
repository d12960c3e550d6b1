// Package gamma provides the alignment collaborator used by sequence-level
// training: given frame log-posteriors and external log-likelihoods it
// produces a per-frame posterior weighting ("gamma") and the sequence loss.
package gamma

import (
	"math"

	"github.com/born-ml/criterion/internal/layout"
	"github.com/born-ml/criterion/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Request bundles the per-minibatch inputs of a gamma computation. All
// matrices are [numStates x numCols].
type Request struct {
	LogSoftmax    *tensor.Matrix // frame log-posteriors of the network
	LogLikelihood *tensor.Matrix // externally supplied per-state scores
	Labels        *tensor.Matrix // reference alignment, one-hot per column
	Layout        *layout.MBLayout

	// ReferenceAlign replaces the competing-path posterior by the
	// reference alignment.
	ReferenceAlign bool
}

// Calculator computes the gamma weighting into gamma, which the caller has
// sized like req.LogSoftmax, and returns the sequence loss. Columns the
// layout excludes must be left at zero.
type Calculator interface {
	Compute(req Request, gamma *tensor.Matrix) (loss float64, err error)
}

// FramePosterior is a Calculator for frame-synchronous alignments, where each
// frame's competing hypotheses are the states themselves. The combined score
// of state k at frame j is logSoftmax[k,j] + AcousticScale*logLikelihood[k,j];
// gamma is its column-wise posterior and the loss is the negative log
// posterior of the reference states.
type FramePosterior struct {
	AcousticScale float64
}

// NewFramePosterior returns a FramePosterior with unit acoustic scale.
func NewFramePosterior() *FramePosterior {
	return &FramePosterior{AcousticScale: 1}
}

// Compute implements Calculator.
func (f *FramePosterior) Compute(req Request, g *tensor.Matrix) (float64, error) {
	rows, cols := req.LogSoftmax.Rows(), req.LogSoftmax.Cols()
	operands := []struct {
		name string
		m    *tensor.Matrix
	}{{"log-likelihood", req.LogLikelihood}, {"labels", req.Labels}, {"gamma", g}}
	for _, op := range operands {
		if op.m.Rows() != rows || op.m.Cols() != cols {
			return 0, errors.Errorf("gamma: %s is %dx%d, want %dx%d", op.name, op.m.Rows(), op.m.Cols(), rows, cols)
		}
	}

	g.SetAll(0)
	score := make([]float64, rows)
	var loss float64
	skipped := 0
	req.Layout.ForEachColumn(cols, func(s, t, j int) {
		if !req.Layout.Contributes(s, t) {
			skipped++
			return
		}
		for k := range score {
			score[k] = req.LogSoftmax.At(k, j) + f.AcousticScale*req.LogLikelihood.At(k, j)
		}
		lse := tensor.LogSumExp(score)
		for k, v := range score {
			label := req.Labels.At(k, j)
			if req.ReferenceAlign {
				g.Set(k, j, label)
				loss -= label * req.LogSoftmax.At(k, j)
				continue
			}
			g.Set(k, j, math.Exp(v-lse))
			loss -= label * (v - lse)
		}
	})
	klog.V(3).Infof("gamma: %d frames, %d skipped, loss=%g", cols-skipped, skipped, loss)
	return loss, nil
}
