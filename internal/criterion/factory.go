package criterion

import (
	"slices"
	"strings"

	"github.com/born-ml/criterion/internal/node"
	"github.com/pkg/errors"
)

type constructor struct {
	arity int
	build func(name string, in []node.Node, opts []Option) Criterion
}

var constructors = map[string]constructor{
	OpSquareError: {2, func(name string, in []node.Node, opts []Option) Criterion {
		return NewSquareError(name, in[0], in[1], opts...)
	}},
	OpCrossEntropyWithSoftmax: {2, func(name string, in []node.Node, opts []Option) Criterion {
		return NewCrossEntropyWithSoftmax(name, in[0], in[1], opts...)
	}},
	OpCrossEntropy: {2, func(name string, in []node.Node, opts []Option) Criterion {
		return NewCrossEntropy(name, in[0], in[1], opts...)
	}},
	OpMatrixL1Reg: {1, func(name string, in []node.Node, opts []Option) Criterion {
		return NewL1Reg(name, in[0], opts...)
	}},
	OpMatrixL2Reg: {1, func(name string, in []node.Node, opts []Option) Criterion {
		return NewL2Reg(name, in[0], opts...)
	}},
	OpNCE: {4, func(name string, in []node.Node, opts []Option) Criterion {
		return NewNCE(name, in[0], in[1], in[2], in[3], opts...)
	}},
	OpClassBasedCrossEntropyWithSoftmax: {4, func(name string, in []node.Node, opts []Option) Criterion {
		return NewClassBasedCrossEntropyWithSoftmax(name, in[0], in[1], in[2], in[3], opts...)
	}},
	OpCRF: {3, func(name string, in []node.Node, opts []Option) Criterion {
		return NewCRF(name, in[0], in[1], in[2], opts...)
	}},
	OpDummyCriterion: {3, func(name string, in []node.Node, opts []Option) Criterion {
		return NewDummyCriterion(name, in[0], in[1], in[2], opts...)
	}},
	OpSequenceWithSoftmax: {3, func(name string, in []node.Node, opts []Option) Criterion {
		return NewSequenceWithSoftmax(name, in[0], in[1], in[2], opts...)
	}},
}

// New creates the criterion registered under opName. It fails with
// ErrInvalidArgument for an unknown operation or a wrong number of inputs.
func New(opName, nodeName string, inputs []node.Node, opts ...Option) (Criterion, error) {
	ctor, ok := constructors[opName]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown criterion %q (known: %s)", opName, strings.Join(Operations(), ", "))
	}
	if len(inputs) != ctor.arity {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s %q: takes %d inputs, got %d", opName, nodeName, ctor.arity, len(inputs))
	}
	return ctor.build(nodeName, inputs, opts), nil
}

// Arity returns the number of inputs of opName, or 0 for an unknown name.
func Arity(opName string) int {
	return constructors[opName].arity
}

// Operations returns the registered operation names, sorted.
func Operations() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
