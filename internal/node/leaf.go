package node

import (
	"github.com/born-ml/criterion/internal/layout"
	"github.com/born-ml/criterion/internal/tensor"
)

// Input is a data leaf: features or labels fed by the reader.
//
// Example:
//
//	labels := node.NewInput("labels", tensor.FromColumns(oneHot), mbLayout)
type Input struct {
	Base
}

// NewInput creates an InputValue leaf holding a copy of value.
func NewInput(name string, value *tensor.Matrix, l *layout.MBLayout) *Input {
	in := &Input{Base: NewBase(name, OpInputValue)}
	in.SetValue(value)
	in.SetLayout(l)
	return in
}

// NewSparseInput creates a SparseInputValue leaf. Storage is dense; only the
// operation name differs, which is what label-role checks look at.
func NewSparseInput(name string, value *tensor.Matrix, l *layout.MBLayout) *Input {
	in := NewInput(name, value, l)
	in.opName = OpSparseInputValue
	return in
}

// Parameter is a learnable leaf, e.g. an output weight matrix or a bias.
// Its value carries no minibatch layout.
type Parameter struct {
	Base
}

// NewParameter creates a LearnableParameter leaf holding a copy of value.
func NewParameter(name string, value *tensor.Matrix) *Parameter {
	p := &Parameter{Base: NewBase(name, OpLearnableParameter)}
	p.SetValue(value)
	return p
}

// Computed is an interior node whose value is produced elsewhere in the graph,
// e.g. the logits feeding a criterion. It behaves like an Input except that it
// never qualifies as a label.
type Computed struct {
	Base
}

// NewComputed creates an interior node with the given operation name.
func NewComputed(name, opName string, value *tensor.Matrix, l *layout.MBLayout) *Computed {
	c := &Computed{Base: NewBase(name, opName)}
	c.SetValue(value)
	c.SetLayout(l)
	return c
}
