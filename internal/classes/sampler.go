package classes

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/criterion/internal/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// SampleNCE builds the [2(k+1) x T] label block of NCE training for the word
// ids in targets. Column j holds the target in rows 0 and 1 (id and its noise
// log-probability) and k noise words drawn from unigram in the following row
// pairs, their log-probabilities stored negated.
func SampleNCE(targets []int, unigram []float64, k int, src rand.Source) (*tensor.Matrix, error) {
	if k < 1 {
		return nil, errors.Errorf("classes: need at least one noise sample, got %d", k)
	}
	var total float64
	for id, p := range unigram {
		if p < 0 {
			return nil, errors.Errorf("classes: negative unigram weight %g for word %d", p, id)
		}
		total += p
	}
	if total == 0 {
		return nil, errors.New("classes: unigram distribution has no mass")
	}
	logProb := func(id int) float64 { return math.Log(unigram[id] / total) }

	noise := distuv.NewCategorical(unigram, src)
	labels := tensor.New(2*(k+1), len(targets))
	for j, target := range targets {
		if target < 0 || target >= len(unigram) {
			return nil, errors.Wrapf(ErrUnknownToken, "target %d outside vocabulary of %d", target, len(unigram))
		}
		labels.Set(0, j, float64(target))
		labels.Set(1, j, logProb(target))
		for s := 1; s <= k; s++ {
			id := int(noise.Rand())
			labels.Set(2*s, j, float64(id))
			labels.Set(2*s+1, j, -logProb(id))
		}
	}
	return labels, nil
}
