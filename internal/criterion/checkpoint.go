package criterion

import (
	"io"
	"strconv"

	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/serialization"
	"github.com/pkg/errors"
)

// persistent is implemented by criteria with settings that outlive a step.
type persistent interface {
	Save(w *serialization.Writer)
	Load(r *serialization.Reader) error
}

// Save writes c as one checkpoint record: operation name, node name and the
// criterion's persisted settings. Scratch buffers are not saved.
func Save(w io.Writer, c Criterion) error {
	payload := serialization.NewWriter()
	if p, ok := c.(persistent); ok {
		p.Save(payload)
	}
	header := serialization.Header{
		OperationName: c.OperationName(),
		NodeName:      c.Name(),
		Metadata:      map[string]string{"inputs": strconv.Itoa(len(c.Inputs()))},
	}
	if err := serialization.WriteRecord(w, header, payload.Bytes()); err != nil {
		return errors.Wrapf(ErrRuntime, "save %s %q: %v", c.OperationName(), c.Name(), err)
	}
	return nil
}

// Load reads a record written by Save and rebuilds the criterion over inputs.
// A damaged record or an unknown operation fails with ErrRuntime.
func Load(r io.Reader, inputs []node.Node, opts ...Option) (Criterion, error) {
	header, payload, err := serialization.ReadRecord(r)
	if err != nil {
		return nil, errors.Wrapf(ErrRuntime, "load criterion: %v", err)
	}
	if Arity(header.OperationName) == 0 {
		return nil, errors.Wrapf(ErrRuntime, "load criterion %q: unknown operation %q", header.NodeName, header.OperationName)
	}
	c, err := New(header.OperationName, header.NodeName, inputs, opts...)
	if err != nil {
		return nil, err
	}
	if p, ok := c.(persistent); ok {
		if err := p.Load(serialization.NewReader(payload)); err != nil {
			return nil, err
		}
	}
	return c, nil
}
