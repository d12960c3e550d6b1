package criterion

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Error kinds. Every error returned by a criterion wraps exactly one of them;
// test with errors.Is.
var (
	// ErrLogic reports a malformed graph: wrong arity, mismatched shapes,
	// an input in the wrong role, malformed class ranges. Not retryable.
	ErrLogic = errors.New("logic error")

	// ErrInvalidArgument reports caller misuse, such as asking for the
	// gradient of an input the criterion does not differentiate.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRuntime reports unexpected data, such as an unknown persisted tag.
	ErrRuntime = errors.New("runtime error")
)

func (b *base) errorf(kind error, format string, args ...any) error {
	return errors.Wrapf(kind, "%s %q: %s", b.OperationName(), b.Name(), fmt.Sprintf(format, args...))
}

func (b *base) logicErrorf(format string, args ...any) error {
	return b.errorf(ErrLogic, format, args...)
}

func (b *base) invalidArgumentf(format string, args ...any) error {
	return b.errorf(ErrInvalidArgument, format, args...)
}

func (b *base) runtimeErrorf(format string, args ...any) error {
	return b.errorf(ErrRuntime, format, args...)
}

// guard runs fn, turning a panic raised by the tensor kernels (shape misuse,
// out-of-range slices) into an ErrLogic.
func (b *base) guard(op string, fn func() error) error {
	var err error
	if exc := exceptions.TryCatch[error](func() { err = fn() }); exc != nil {
		return b.logicErrorf("%s: %v", op, exc)
	}
	return err
}

// mustCopy copies src into dst for Clone. Clone has no error result, so a
// failed copy, e.g. a placement on a device whose store is gone, panics with
// the copy error.
func mustCopy(src, dst Criterion, flags CopyFlags) Criterion {
	if err := src.CopyTo(dst, flags); err != nil {
		panic(err)
	}
	return dst
}
