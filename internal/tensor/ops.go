package tensor

import (
	"math"

	"github.com/gomlx/exceptions"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// AddScaled computes m += alpha * other.
func (m *Matrix) AddScaled(alpha float64, other *Matrix) {
	checkSameShape("AddScaled", m, other)
	for i := 0; i < m.rows; i++ {
		floats.AddScaled(m.rowSlice(i), alpha, other.rowSlice(i))
	}
}

// Scale multiplies every element by alpha.
func (m *Matrix) Scale(alpha float64) {
	for i := 0; i < m.rows; i++ {
		floats.Scale(alpha, m.rowSlice(i))
	}
}

// AssignDifference sets m = a - b, resizing m when it is not a view.
func (m *Matrix) AssignDifference(a, b *Matrix) {
	checkSameShape("AssignDifference", a, b)
	m.Resize(a.rows, a.cols)
	for i := 0; i < m.rows; i++ {
		floats.SubTo(m.rowSlice(i), a.rowSlice(i), b.rowSlice(i))
	}
}

// AssignElementDivision sets m = a ./ b.
func (m *Matrix) AssignElementDivision(a, b *Matrix) {
	checkSameShape("AssignElementDivision", a, b)
	m.Resize(a.rows, a.cols)
	for i := 0; i < m.rows; i++ {
		floats.DivTo(m.rowSlice(i), a.rowSlice(i), b.rowSlice(i))
	}
}

// AssignSign sets m = sign(src) elementwise, with sign(0) = 0.
func (m *Matrix) AssignSign(src *Matrix) {
	m.Resize(src.rows, src.cols)
	m.assignMap(src, func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
}

// AssignExp sets m = exp(src) elementwise.
func (m *Matrix) AssignExp(src *Matrix) {
	m.Resize(src.rows, src.cols)
	m.assignMap(src, math.Exp)
}

// Exp applies exp in place.
func (m *Matrix) Exp() { m.assignMap(m, math.Exp) }

// Log applies the natural logarithm in place.
func (m *Matrix) Log() { m.assignMap(m, math.Log) }

func (m *Matrix) assignMap(src *Matrix, fn func(float64) float64) {
	checkSameShape("map", m, src)
	for i := 0; i < m.rows; i++ {
		dst, s := m.rowSlice(i), src.rowSlice(i)
		for j, v := range s {
			dst[j] = fn(v)
		}
	}
}

// Sum returns the sum of all elements.
func (m *Matrix) Sum() float64 {
	var sum float64
	for i := 0; i < m.rows; i++ {
		sum += floats.Sum(m.rowSlice(i))
	}
	return sum
}

// SumAbs returns the elementwise L1 norm, sum |m_ij|.
func (m *Matrix) SumAbs() float64 {
	var sum float64
	for i := 0; i < m.rows; i++ {
		sum += floats.Norm(m.rowSlice(i), 1)
	}
	return sum
}

// FrobeniusNorm returns sqrt(sum m_ij^2).
func (m *Matrix) FrobeniusNorm() float64 {
	if m.IsEmpty() {
		return 0
	}
	return mat.Norm(m.data, 2)
}

// InnerProduct returns sum a_ij * b_ij.
func InnerProduct(a, b *Matrix) float64 {
	checkSameShape("InnerProduct", a, b)
	var sum float64
	for i := 0; i < a.rows; i++ {
		sum += floats.Dot(a.rowSlice(i), b.rowSlice(i))
	}
	return sum
}

// AssignProduct sets m = op(a) * op(b), where op transposes when the matching
// flag is set. m is resized unless it is a view of the right shape.
func (m *Matrix) AssignProduct(a *Matrix, transA bool, b *Matrix, transB bool) {
	ar, ac := dims(a, transA)
	br, bc := dims(b, transB)
	if ac != br {
		exceptions.Panicf("tensor: product inner dimensions differ: %dx%d * %dx%d", ar, ac, br, bc)
	}
	m.Resize(ar, bc)
	if m.IsEmpty() {
		return
	}
	if ac == 0 {
		m.SetAll(0)
		return
	}
	m.data.Mul(operand(a, transA), operand(b, transB))
}

// AddProduct computes m += alpha * op(a) * op(b).
func (m *Matrix) AddProduct(alpha float64, a *Matrix, transA bool, b *Matrix, transB bool) {
	ar, ac := dims(a, transA)
	br, bc := dims(b, transB)
	if ac != br || m.rows != ar || m.cols != bc {
		exceptions.Panicf("tensor: AddProduct shape mismatch: %dx%d += %dx%d * %dx%d", m.rows, m.cols, ar, ac, br, bc)
	}
	if m.IsEmpty() || ac == 0 {
		return
	}
	var prod mat.Dense
	prod.Mul(operand(a, transA), operand(b, transB))
	if alpha != 1 {
		prod.Scale(alpha, &prod)
	}
	m.data.Add(m.data, &prod)
}

// AddRowVector adds the 1 x cols vector v to every row of m.
func (m *Matrix) AddRowVector(v *Matrix) {
	if v.rows != 1 || v.cols != m.cols {
		exceptions.Panicf("tensor: AddRowVector needs a 1x%d vector, got %dx%d", m.cols, v.rows, v.cols)
	}
	vec := v.rowSlice(0)
	for i := 0; i < m.rows; i++ {
		floats.Add(m.rowSlice(i), vec)
	}
}

// HasNaN reports whether any element is NaN or infinite.
func (m *Matrix) HasNaN() bool {
	for i := 0; i < m.rows; i++ {
		for _, v := range m.rowSlice(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

func dims(m *Matrix, trans bool) (int, int) {
	if trans {
		return m.cols, m.rows
	}
	return m.rows, m.cols
}

func operand(m *Matrix, trans bool) mat.Matrix {
	if trans {
		return m.data.T()
	}
	return m.data
}
