package tensor

import (
	"math"
	"sync/atomic"

	"github.com/born-ml/criterion/internal/parallel"
	"gonum.org/v1/gonum/floats"
)

// LogZero is log(0) as used by the log-domain kernels.
var LogZero = math.Inf(-1)

var parallelConfig atomic.Pointer[parallel.Config]

func init() {
	cfg := parallel.DefaultConfig()
	parallelConfig.Store(&cfg)
}

// SetParallelConfig replaces the fan-out configuration of the column kernels.
func SetParallelConfig(cfg parallel.Config) {
	parallelConfig.Store(&cfg)
}

// LogAdd returns log(exp(a) + exp(b)) without overflow.
func LogAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// LogSumExp returns log(sum exp(values)); LogZero for an empty or all-LogZero input.
func LogSumExp(values []float64) float64 {
	maxV := LogZero
	for _, v := range values {
		if v > maxV {
			maxV = v
		}
	}
	if math.IsInf(maxV, -1) {
		return LogZero
	}
	return floats.LogSumExp(values)
}

// LogSumExpColumn returns log(sum_i exp(m_ij)) for column j.
func (m *Matrix) LogSumExpColumn(j int) float64 {
	return LogSumExp(m.Column(j))
}

// logNormalize subtracts logsumexp(values) in place. A vector with no
// finite mass stays all LogZero.
func logNormalize(values []float64) {
	lse := LogSumExp(values)
	if math.IsInf(lse, -1) {
		for i := range values {
			values[i] = LogZero
		}
		return
	}
	for i := range values {
		values[i] -= lse
	}
}

// LogSoftmaxColumns replaces every column c with c - logsumexp(c).
func (m *Matrix) LogSoftmaxColumns() {
	if m.IsEmpty() {
		return
	}
	raw := m.data.RawMatrix()
	parallel.ForRange(m.cols, func(start, end int) {
		col := make([]float64, m.rows)
		for j := start; j < end; j++ {
			for i := range col {
				col[i] = raw.Data[i*raw.Stride+j]
			}
			logNormalize(col)
			for i, v := range col {
				raw.Data[i*raw.Stride+j] = v
			}
		}
	}, *parallelConfig.Load())
}

// LogSoftmaxRows replaces every row r with r - logsumexp(r).
func (m *Matrix) LogSoftmaxRows() {
	if m.IsEmpty() {
		return
	}
	parallel.ForRange(m.rows, func(start, end int) {
		for i := start; i < end; i++ {
			logNormalize(m.rowSlice(i))
		}
	}, *parallelConfig.Load())
}

// AssignLogSoftmaxColumns sets m = src with LogSoftmaxColumns applied.
func (m *Matrix) AssignLogSoftmaxColumns(src *Matrix) {
	m.CopyFrom(src)
	m.LogSoftmaxColumns()
}
