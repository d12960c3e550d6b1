// Package classes prepares labels for the factored output layers: it splits a
// vocabulary into frequency-binned word classes, packs the 4-row labels of
// the class-based softmax, and draws the noise samples of NCE training.
package classes

import (
	"slices"

	"github.com/born-ml/criterion/internal/tensor"
	"github.com/pkg/errors"
)

// ErrUnknownToken is returned when a token is not part of the partition.
var ErrUnknownToken = errors.New("token not in vocabulary")

// Partition maps a vocabulary onto word classes. Words are renumbered in
// order of decreasing frequency so that every class covers a contiguous
// range of word ids.
type Partition struct {
	start   []int       // start[c] is the first word id of class c; len = classes+1
	classOf []int       // class of each word id
	tokens  []int       // original token of each word id
	ids     map[int]int // word id of each original token
	unigram []float64   // relative frequency of each word id
}

// Build partitions the tokens of counts into at most numClasses classes, each
// holding about 1/numClasses of the total frequency mass. Classes that would
// be empty are dropped, so NumClasses may be smaller than requested.
func Build(counts map[int]int, numClasses int) (*Partition, error) {
	if numClasses <= 0 {
		return nil, errors.Errorf("classes: need at least one class, got %d", numClasses)
	}
	var total float64
	tokens := make([]int, 0, len(counts))
	for tok, n := range counts {
		if n <= 0 {
			return nil, errors.Errorf("classes: token %d has count %d", tok, n)
		}
		tokens = append(tokens, tok)
		total += float64(n)
	}
	if len(tokens) == 0 {
		return nil, errors.New("classes: empty vocabulary")
	}
	slices.SortFunc(tokens, func(a, b int) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return a - b
	})

	p := &Partition{
		classOf: make([]int, len(tokens)),
		tokens:  tokens,
		ids:     make(map[int]int, len(tokens)),
		unigram: make([]float64, len(tokens)),
	}
	var cum float64
	class, bin := -1, -1
	for id, tok := range tokens {
		b := min(int(cum/total*float64(numClasses)), numClasses-1)
		if b != bin {
			bin = b
			class++
			p.start = append(p.start, id)
		}
		p.classOf[id] = class
		p.ids[tok] = id
		p.unigram[id] = float64(counts[tok]) / total
		cum += float64(counts[tok])
	}
	p.start = append(p.start, len(tokens))
	return p, nil
}

// Count tallies the occurrences of every token.
func Count(tokens []int) map[int]int {
	counts := make(map[int]int)
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

// NumClasses returns the number of classes.
func (p *Partition) NumClasses() int { return len(p.start) - 1 }

// VocabSize returns the number of words.
func (p *Partition) VocabSize() int { return len(p.tokens) }

// Range returns the half-open word id range [first, end) of class c.
func (p *Partition) Range(c int) (first, end int) { return p.start[c], p.start[c+1] }

// ClassOf returns the class of word id.
func (p *Partition) ClassOf(id int) int { return p.classOf[id] }

// ID returns the word id of an original token.
func (p *Partition) ID(token int) (int, bool) {
	id, ok := p.ids[token]
	return id, ok
}

// Token returns the original token of word id.
func (p *Partition) Token(id int) int { return p.tokens[id] }

// Unigram returns the relative frequency of every word id. The slice is
// shared; do not modify it.
func (p *Partition) Unigram() []float64 { return p.unigram }

// IDs maps original tokens to word ids.
func (p *Partition) IDs(tokens []int) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := p.ids[tok]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownToken, "token %d at position %d", tok, i)
		}
		ids[i] = id
	}
	return ids, nil
}

// Labels packs the class-based softmax labels of a token sequence, one
// column per token: word id, class, first word id of the class and first word
// id of the next class.
func (p *Partition) Labels(tokens []int) (*tensor.Matrix, error) {
	ids, err := p.IDs(tokens)
	if err != nil {
		return nil, err
	}
	labels := tensor.New(4, len(ids))
	for j, id := range ids {
		c := p.classOf[id]
		labels.SetColumn(j, []float64{float64(id), float64(c), float64(p.start[c]), float64(p.start[c+1])})
	}
	return labels, nil
}
