package criterion

import (
	"github.com/born-ml/criterion/internal/gamma"
	"github.com/born-ml/criterion/internal/tensor"
)

// Defaults of the sequence-training settings.
const (
	DefaultSmoothingWeight    = 0.95
	DefaultFrameDropThreshold = 1e-10
)

// config holds the per-node settings collected from Options.
type config struct {
	evalMode           NCEEvalMode
	smoothingWeight    float64
	frameDropThreshold float64
	referenceAlign     bool
	gammaCalculator    gamma.Calculator
	device             tensor.Device
}

func defaultConfig() config {
	return config{
		evalMode:           NCEEvalNone,
		smoothingWeight:    DefaultSmoothingWeight,
		frameDropThreshold: DefaultFrameDropThreshold,
		device:             tensor.CPU,
	}
}

// Option configures a criterion at construction.
type Option func(*config)

// WithEvalMode sets the evaluation mode of an NCE criterion.
func WithEvalMode(mode NCEEvalMode) Option {
	return func(c *config) { c.evalMode = mode }
}

// WithSmoothingWeight sets the weight of the sequence posterior against the
// frame softmax in the SequenceWithSoftmax gradient.
func WithSmoothingWeight(w float64) Option {
	return func(c *config) { c.smoothingWeight = w }
}

// WithFrameDropThreshold sets the gamma below which a SequenceWithSoftmax
// frame is dropped from the gradient.
func WithFrameDropThreshold(threshold float64) Option {
	return func(c *config) { c.frameDropThreshold = threshold }
}

// WithReferenceAlign makes the gamma calculator use the reference alignment.
func WithReferenceAlign(enabled bool) Option {
	return func(c *config) { c.referenceAlign = enabled }
}

// WithGammaCalculator sets the alignment collaborator of SequenceWithSoftmax.
func WithGammaCalculator(calc gamma.Calculator) Option {
	return func(c *config) { c.gammaCalculator = calc }
}

// WithDevice places the scratch buffers on device once they are sized.
func WithDevice(device tensor.Device) Option {
	return func(c *config) { c.device = device }
}
