// Package node defines the graph-node contract criteria consume and the leaf
// nodes (inputs and learnable parameters) that feed them.
//
// The graph engine owns topology and evaluation order; a node here is only a
// named holder of a function value, an accumulated gradient and the minibatch
// layout of its columns. Consumers share nodes by reference.
package node

import (
	"github.com/born-ml/criterion/internal/layout"
	"github.com/born-ml/criterion/internal/tensor"
)

// Operation names of the leaf nodes.
const (
	OpInputValue         = "InputValue"
	OpSparseInputValue   = "SparseInputValue"
	OpLearnableParameter = "LearnableParameter"
)

// Node is one vertex of the computation graph as seen by its consumers.
type Node interface {
	// Name returns the node name, unique within a graph.
	Name() string

	// OperationName returns the node type, e.g. "InputValue" or "CRF".
	OperationName() string

	// Value returns the function value computed by the last forward pass.
	Value() *tensor.Matrix

	// Gradient returns the accumulated gradient, shaped like Value.
	// Consumers add into it; they never overwrite it.
	Gradient() *tensor.Matrix

	// Layout returns the minibatch layout of Value's columns. A nil layout
	// means every column is valid; criteria have no layout of their own.
	Layout() *layout.MBLayout
}

// Base implements Node and is embedded by concrete nodes.
type Base struct {
	name   string
	opName string
	value  *tensor.Matrix
	grad   *tensor.Matrix
	layout *layout.MBLayout
}

// NewBase creates a Base with an empty value.
func NewBase(name, opName string) Base {
	return Base{
		name:   name,
		opName: opName,
		value:  tensor.New(0, 0),
		grad:   tensor.New(0, 0),
	}
}

// Name returns the node name.
func (b *Base) Name() string { return b.name }

// OperationName returns the node type.
func (b *Base) OperationName() string { return b.opName }

// Value returns the function value.
func (b *Base) Value() *tensor.Matrix { return b.value }

// Gradient returns the gradient, resized (and zeroed) when Value changed shape.
func (b *Base) Gradient() *tensor.Matrix {
	b.grad.Resize(b.value.Rows(), b.value.Cols())
	return b.grad
}

// Layout returns the minibatch layout.
func (b *Base) Layout() *layout.MBLayout { return b.layout }

// SetLayout assigns the minibatch layout.
func (b *Base) SetLayout(l *layout.MBLayout) { b.layout = l }

// SetValue replaces the function value with a copy of m.
func (b *Base) SetValue(m *tensor.Matrix) { b.value.CopyFrom(m) }

// ZeroGradient clears the accumulated gradient.
func (b *Base) ZeroGradient() { b.Gradient().SetAll(0) }

// FillGradient sets every gradient element to v. For a scalar node this is
// how the upstream seed is supplied.
func (b *Base) FillGradient(v float64) { b.Gradient().SetAll(v) }

// CloneBase returns a deep copy of b. The layout is shared.
func (b *Base) CloneBase(copyValue bool) Base {
	c := NewBase(b.name, b.opName)
	c.layout = b.layout
	if copyValue {
		c.value = b.value.Clone()
		c.grad = b.grad.Clone()
	} else {
		c.value.Resize(b.value.Rows(), b.value.Cols())
	}
	return c
}

// CopyBaseTo copies value, gradient and layout into dst.
func (b *Base) CopyBaseTo(dst *Base, copyValue bool) {
	dst.name = b.name
	dst.opName = b.opName
	dst.layout = b.layout
	if copyValue {
		dst.value.CopyFrom(b.value)
		dst.grad.CopyFrom(b.grad)
	}
}

// IsInputValue reports whether n is a data leaf that holds labels or features.
func IsInputValue(n Node) bool {
	op := n.OperationName()
	return op == OpInputValue || op == OpSparseInputValue
}
