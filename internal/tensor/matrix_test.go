package tensor

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromColumns(t *testing.T) {
	m := FromColumns([][]float64{{1, 2}, {3, 4}, {5, 6}})

	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 2.0, m.At(1, 0))
	assert.Equal(t, 5.0, m.At(0, 2))
	assert.Equal(t, []float64{3, 4}, m.Column(1))
}

func TestFromSliceIsColumnMajor(t *testing.T) {
	m := FromSlice(2, 2, []float64{1, 2, 3, 4})
	assert.Equal(t, FromRows([][]float64{{1, 3}, {2, 4}}).String(), m.String())
}

func TestColumnSliceSharesStorage(t *testing.T) {
	m := New(2, 4)
	view := m.ColumnSlice(1, 2)
	require.True(t, view.IsView())

	view.Set(1, 1, 7)
	assert.Equal(t, 7.0, m.At(1, 2))

	view.SetAll(3)
	assert.Equal(t, 0.0, m.At(0, 0))
	assert.Equal(t, 3.0, m.At(0, 1))
	assert.Equal(t, 3.0, m.At(1, 2))
	assert.Equal(t, 0.0, m.At(1, 3))
}

func TestResize(t *testing.T) {
	m := FromRows([][]float64{{1, 2}})
	m.Resize(1, 2)
	assert.Equal(t, 2.0, m.At(0, 1), "same shape keeps content")

	m.Resize(3, 1)
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 0.0, m.Sum())

	err := exceptions.TryCatch[error](func() { m.ColumnSlice(0, 1).Resize(2, 2) })
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	m := FromRows([][]float64{{1, 2}, {3, 4}})
	c := m.ColumnSlice(1, 1).Clone()
	c.Set(0, 0, 100)
	assert.Equal(t, 2.0, m.At(0, 1))
	assert.False(t, c.IsView())
}

func TestEmptyMatrix(t *testing.T) {
	m := New(0, 3)
	assert.True(t, m.IsEmpty())
	assert.Equal(t, 0.0, m.FrobeniusNorm())
	assert.Equal(t, 0.0, m.Sum())
	m.Scale(2)
}

func TestOutOfRangePanicsWithError(t *testing.T) {
	m := New(2, 2)
	err := exceptions.TryCatch[error](func() { m.At(2, 0) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestElementwise(t *testing.T) {
	a := FromRows([][]float64{{1, -2}, {0, 4}})
	b := FromRows([][]float64{{1, 1}, {2, 2}})

	d := New(0, 0)
	d.AssignDifference(a, b)
	assert.Equal(t, FromRows([][]float64{{0, -3}, {-2, 2}}).String(), d.String())

	s := New(0, 0)
	s.AssignSign(a)
	assert.Equal(t, FromRows([][]float64{{1, -1}, {0, 1}}).String(), s.String())

	q := New(0, 0)
	q.AssignElementDivision(a, b)
	assert.InDelta(t, 2.0, q.At(1, 1), 1e-12)

	a.AddScaled(2, b)
	assert.Equal(t, 3.0, a.At(0, 0))
	assert.Equal(t, 8.0, a.At(1, 1))

	assert.Equal(t, 1.0+0+2+8, FromRows([][]float64{{1, 0}, {-2, 8}}).SumAbs())
}

func TestNormsAndInnerProduct(t *testing.T) {
	m := FromRows([][]float64{{1, 2}, {3, 4}})
	assert.InDelta(t, math.Sqrt(30), m.FrobeniusNorm(), 1e-12)
	assert.InDelta(t, 30.0, InnerProduct(m, m), 1e-12)
	assert.InDelta(t, 10.0, m.Sum(), 1e-12)
}

func TestProducts(t *testing.T) {
	a := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}}) // 3x2
	b := FromRows([][]float64{{1, 0, 1}, {0, 1, 1}})   // 2x3

	p := New(0, 0)
	p.AssignProduct(a, false, b, false)
	require.Equal(t, 3, p.Rows())
	require.Equal(t, 3, p.Cols())
	assert.Equal(t, 3.0, p.At(0, 2))
	assert.Equal(t, 11.0, p.At(2, 2))

	// aᵀ * a
	g := New(0, 0)
	g.AssignProduct(a, true, a, false)
	assert.Equal(t, 35.0, g.At(0, 0))
	assert.Equal(t, 44.0, g.At(0, 1))

	g.AddProduct(-1, a, true, a, false)
	assert.InDelta(t, 0.0, g.FrobeniusNorm(), 1e-12)
}

func TestAddRowVector(t *testing.T) {
	m := New(2, 3)
	m.AddRowVector(FromRows([][]float64{{1, 2, 3}}))
	assert.Equal(t, 3.0, m.At(1, 2))

	err := exceptions.TryCatch[error](func() { m.AddRowVector(New(1, 2)) })
	assert.Error(t, err)
}
