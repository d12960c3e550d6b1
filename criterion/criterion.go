// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package criterion

import (
	"io"

	"github.com/born-ml/criterion/internal/criterion"
	"github.com/born-ml/criterion/internal/gamma"
	"github.com/born-ml/criterion/internal/layout"
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/tensor"
)

// Type aliases for public API

// Criterion is the contract shared by all training criteria.
type Criterion = criterion.Criterion

// Node is one vertex of the computation graph as seen by a criterion.
type Node = node.Node

// Matrix is a dense float64 matrix; column j holds minibatch sample j.
type Matrix = tensor.Matrix

// Device is the placement of a criterion's scratch buffers.
type Device = tensor.Device

// MBLayout maps minibatch columns to (sequence, timestep) slots.
type MBLayout = layout.MBLayout

// GammaCalculator computes the frame posteriors of SequenceWithSoftmax.
type GammaCalculator = gamma.Calculator

// GammaRequest bundles the inputs of a gamma computation.
type GammaRequest = gamma.Request

// Option configures a criterion at construction.
type Option = criterion.Option

// CopyFlags selects what Clone and CopyTo carry over.
type CopyFlags = criterion.CopyFlags

// NCEEvalMode selects how NCE evaluates outside training.
type NCEEvalMode = criterion.NCEEvalMode

// Concrete criterion types.
type (
	SquareError                       = criterion.SquareError
	CrossEntropy                      = criterion.CrossEntropy
	CrossEntropyWithSoftmax           = criterion.CrossEntropyWithSoftmax
	L1Reg                             = criterion.L1Reg
	L2Reg                             = criterion.L2Reg
	NCE                               = criterion.NCE
	ClassBasedCrossEntropyWithSoftmax = criterion.ClassBasedCrossEntropyWithSoftmax
	CRF                               = criterion.CRF
	DummyCriterion                    = criterion.DummyCriterion
	SequenceWithSoftmax               = criterion.SequenceWithSoftmax
)

// Devices.
const (
	CPU    = tensor.CPU
	CUDA   = tensor.CUDA
	Vulkan = tensor.Vulkan
	Metal  = tensor.Metal
	WebGPU = tensor.WebGPU
)

// Copy flags.
const (
	CopyValue         = criterion.CopyValue
	CopyStructureOnly = criterion.CopyStructureOnly
)

// NCE evaluation modes.
const (
	NCEEvalSoftmax      = criterion.NCEEvalSoftmax
	NCEEvalUnnormalized = criterion.NCEEvalUnnormalized
	NCEEvalNone         = criterion.NCEEvalNone
)

// Layout slot flags.
const (
	NoInput       = layout.NoInput
	NoLabel       = layout.NoLabel
	SequenceStart = layout.SequenceStart
	SequenceEnd   = layout.SequenceEnd
)

// Error kinds; test with errors.Is.
var (
	ErrLogic           = criterion.ErrLogic
	ErrInvalidArgument = criterion.ErrInvalidArgument
	ErrRuntime         = criterion.ErrRuntime
)

// Options.
var (
	WithEvalMode           = criterion.WithEvalMode
	WithSmoothingWeight    = criterion.WithSmoothingWeight
	WithFrameDropThreshold = criterion.WithFrameDropThreshold
	WithReferenceAlign     = criterion.WithReferenceAlign
	WithGammaCalculator    = criterion.WithGammaCalculator
	WithDevice             = criterion.WithDevice
)

// Matrices and layouts.
var (
	NewMatrix   = tensor.New
	FromColumns = tensor.FromColumns
	FromRows    = tensor.FromRows
	Scalar      = tensor.Scalar
	NewLayout   = layout.New
	FromLengths = layout.FromLengths
)

// NewInput creates a label or feature leaf.
func NewInput(name string, value *Matrix, l *MBLayout) Node {
	return node.NewInput(name, value, l)
}

// NewSparseInput creates a sparse label leaf.
func NewSparseInput(name string, value *Matrix, l *MBLayout) Node {
	return node.NewSparseInput(name, value, l)
}

// NewParameter creates a learnable parameter leaf.
func NewParameter(name string, value *Matrix) Node {
	return node.NewParameter(name, value)
}

// NewComputed creates a node holding the output of operation opName, for
// wiring a criterion to values produced elsewhere.
func NewComputed(name, opName string, value *Matrix, l *MBLayout) Node {
	return node.NewComputed(name, opName, value, l)
}

// NewFramePosterior returns the frame-synchronous gamma calculator.
func NewFramePosterior() GammaCalculator {
	return gamma.NewFramePosterior()
}

// NewSquareError creates a SquareError criterion over (left, right).
func NewSquareError(name string, left, right Node, opts ...Option) *SquareError {
	return criterion.NewSquareError(name, left, right, opts...)
}

// NewCrossEntropyWithSoftmax creates a CrossEntropyWithSoftmax criterion over
// (labels, logits).
func NewCrossEntropyWithSoftmax(name string, labels, logits Node, opts ...Option) *CrossEntropyWithSoftmax {
	return criterion.NewCrossEntropyWithSoftmax(name, labels, logits, opts...)
}

// NewCrossEntropy creates a CrossEntropy criterion over (labels, probs).
func NewCrossEntropy(name string, labels, probs Node, opts ...Option) *CrossEntropy {
	return criterion.NewCrossEntropy(name, labels, probs, opts...)
}

// NewL1Reg creates an L1 regularizer over x.
func NewL1Reg(name string, x Node, opts ...Option) *L1Reg {
	return criterion.NewL1Reg(name, x, opts...)
}

// NewL2Reg creates an L2 regularizer over x.
func NewL2Reg(name string, x Node, opts ...Option) *L2Reg {
	return criterion.NewL2Reg(name, x, opts...)
}

// NewNCE creates an NCE criterion over (labels, hidden, weights, bias).
func NewNCE(name string, labels, hidden, weights, bias Node, opts ...Option) *NCE {
	return criterion.NewNCE(name, labels, hidden, weights, bias, opts...)
}

// NewClassBasedCrossEntropyWithSoftmax creates a class-factorized softmax
// criterion over (labels, hidden, weights, classLogits).
func NewClassBasedCrossEntropyWithSoftmax(name string, labels, hidden, weights, classLogits Node, opts ...Option) *ClassBasedCrossEntropyWithSoftmax {
	return criterion.NewClassBasedCrossEntropyWithSoftmax(name, labels, hidden, weights, classLogits, opts...)
}

// NewCRF creates a CRF criterion over (labels, emissions, transitions).
func NewCRF(name string, labels, emissions, transitions Node, opts ...Option) *CRF {
	return criterion.NewCRF(name, labels, emissions, transitions, opts...)
}

// NewDummyCriterion creates a pass-through criterion over (objective,
// derivative, prediction).
func NewDummyCriterion(name string, objective, derivative, prediction Node, opts ...Option) *DummyCriterion {
	return criterion.NewDummyCriterion(name, objective, derivative, prediction, opts...)
}

// NewSequenceWithSoftmax creates a sequence-training criterion over (labels,
// logits, logLikelihoods).
func NewSequenceWithSoftmax(name string, labels, logits, logLikelihoods Node, opts ...Option) *SequenceWithSoftmax {
	return criterion.NewSequenceWithSoftmax(name, labels, logits, logLikelihoods, opts...)
}

// New creates the criterion registered under opName.
func New(opName, nodeName string, inputs []Node, opts ...Option) (Criterion, error) {
	return criterion.New(opName, nodeName, inputs, opts...)
}

// Operations returns the registered operation names, sorted.
func Operations() []string {
	return criterion.Operations()
}

// Save writes c as one checkpoint record.
func Save(w io.Writer, c Criterion) error {
	return criterion.Save(w, c)
}

// Load reads a record written by Save and rebuilds the criterion over inputs.
func Load(r io.Reader, inputs []Node, opts ...Option) (Criterion, error) {
	return criterion.Load(r, inputs, opts...)
}
