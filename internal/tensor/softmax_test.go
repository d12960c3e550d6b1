package tensor

import (
	"math"
	"testing"

	"github.com/born-ml/criterion/internal/parallel"
	"github.com/stretchr/testify/assert"
)

func TestLogAdd(t *testing.T) {
	assert.InDelta(t, math.Log(2), LogAdd(0, 0), 1e-12)
	assert.Equal(t, 3.0, LogAdd(LogZero, 3))
	assert.Equal(t, 3.0, LogAdd(3, LogZero))
	assert.True(t, math.IsInf(LogAdd(LogZero, LogZero), -1))
	// Large magnitudes do not overflow.
	assert.InDelta(t, 1000+math.Log(2), LogAdd(1000, 1000), 1e-9)
}

func TestLogSumExp(t *testing.T) {
	assert.InDelta(t, math.Log(3), LogSumExp([]float64{0, 0, 0}), 1e-12)
	assert.True(t, math.IsInf(LogSumExp([]float64{LogZero, LogZero}), -1))
	assert.True(t, math.IsInf(LogSumExp(nil), -1))
}

func TestLogSoftmaxColumns(t *testing.T) {
	for _, cfg := range []parallel.Config{parallel.Sequential(), {Enabled: true, NumWorkers: 4, MinChunkSize: 1}} {
		SetParallelConfig(cfg)

		m := FromColumns([][]float64{{0, 0}, {1, 3}, {-500, 500}, {2, 2}})
		m.LogSoftmaxColumns()

		for j := 0; j < m.Cols(); j++ {
			var total float64
			for i := 0; i < m.Rows(); i++ {
				total += math.Exp(m.At(i, j))
			}
			assert.InDelta(t, 1.0, total, 1e-12, "column %d", j)
		}
		assert.InDelta(t, math.Log(0.5), m.At(0, 0), 1e-12)
		assert.InDelta(t, 0.0, m.At(1, 2), 1e-12)
	}
	SetParallelConfig(parallel.DefaultConfig())
}

func TestLogSoftmaxOfEmptyMass(t *testing.T) {
	m := FromColumns([][]float64{{LogZero, LogZero}, {0, 0}})
	m.LogSoftmaxColumns()
	assert.True(t, math.IsInf(m.At(0, 0), -1))
	assert.True(t, math.IsInf(m.At(1, 0), -1))
	assert.InDelta(t, -math.Ln2, m.At(0, 1), 1e-12)

	r := FromRows([][]float64{{LogZero, LogZero, LogZero}})
	r.LogSoftmaxRows()
	for j := 0; j < 3; j++ {
		assert.True(t, math.IsInf(r.At(0, j), -1))
	}
}

func TestHasNaN(t *testing.T) {
	m := FromRows([][]float64{{1, 2}, {3, 4}})
	assert.False(t, m.HasNaN())
	m.Set(1, 0, math.NaN())
	assert.True(t, m.HasNaN())
	m.Set(1, 0, math.Inf(1))
	assert.True(t, m.HasNaN())
}

func TestLogSoftmaxRowsOnView(t *testing.T) {
	m := FromRows([][]float64{{9, 0, 0, 9}, {9, 1, 1, 9}})
	view := m.ColumnSlice(1, 2)
	view.LogSoftmaxRows()

	assert.InDelta(t, math.Log(0.5), m.At(0, 1), 1e-12)
	assert.InDelta(t, math.Log(0.5), m.At(1, 2), 1e-12)
	assert.Equal(t, 9.0, m.At(0, 0), "columns outside the view are untouched")
	assert.Equal(t, 9.0, m.At(1, 3))
}
