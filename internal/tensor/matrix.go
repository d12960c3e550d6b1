package tensor

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense float64 matrix laid out the way minibatches are:
// rows index the feature (or label) dimension and columns index minibatch
// columns, column j holding (sequence s, timestep t) with j = t*numSeq + s.
//
// Storage is a gonum mat.Dense. Column slices are views that share storage
// with their parent. A zero-sized matrix carries no storage at all.
//
// Shape misuse (mismatched operands, out-of-range slices) panics with an
// error value; callers at an API boundary recover it with
// exceptions.TryCatch[error].
type Matrix struct {
	data       *mat.Dense
	rows, cols int
	view       bool

	device Device
	mirror Mirror
}

// New creates a zero-filled rows x cols matrix in host memory.
func New(rows, cols int) *Matrix {
	if rows < 0 || cols < 0 {
		exceptions.Panicf("tensor: invalid shape %dx%d", rows, cols)
	}
	m := &Matrix{rows: rows, cols: cols, device: CPU}
	if rows > 0 && cols > 0 {
		m.data = mat.NewDense(rows, cols, nil)
	}
	return m
}

// Scalar creates a 1x1 matrix holding v.
func Scalar(v float64) *Matrix {
	m := New(1, 1)
	m.data.Set(0, 0, v)
	return m
}

// FromColumns creates a matrix whose j-th column is columns[j].
// All columns must have the same length.
func FromColumns(columns [][]float64) *Matrix {
	if len(columns) == 0 {
		return New(0, 0)
	}
	rows := len(columns[0])
	m := New(rows, len(columns))
	for j, col := range columns {
		if len(col) != rows {
			exceptions.Panicf("tensor: column %d has %d rows, want %d", j, len(col), rows)
		}
		for i, v := range col {
			m.data.Set(i, j, v)
		}
	}
	return m
}

// FromRows creates a matrix whose i-th row is rowsData[i].
func FromRows(rowsData [][]float64) *Matrix {
	if len(rowsData) == 0 {
		return New(0, 0)
	}
	cols := len(rowsData[0])
	m := New(len(rowsData), cols)
	for i, row := range rowsData {
		if len(row) != cols {
			exceptions.Panicf("tensor: row %d has %d columns, want %d", i, len(row), cols)
		}
		copy(m.rowSlice(i), row)
	}
	return m
}

// FromSlice creates a rows x cols matrix from column-major data.
func FromSlice(rows, cols int, colMajor []float64) *Matrix {
	if len(colMajor) != rows*cols {
		exceptions.Panicf("tensor: shape %dx%d requires %d elements, got %d", rows, cols, rows*cols, len(colMajor))
	}
	m := New(rows, cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			m.data.Set(i, j, colMajor[j*rows+i])
		}
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// NumElements returns rows*cols.
func (m *Matrix) NumElements() int { return m.rows * m.cols }

// IsEmpty reports whether the matrix has no elements.
func (m *Matrix) IsEmpty() bool { return m.rows == 0 || m.cols == 0 }

// IsView reports whether m shares storage with a parent matrix.
func (m *Matrix) IsView() bool { return m.view }

// Device returns the device the matrix is placed on.
func (m *Matrix) Device() Device { return m.device }

// At returns element (i, j).
func (m *Matrix) At(i, j int) float64 {
	m.checkIndex(i, j)
	return m.data.At(i, j)
}

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	m.checkIndex(i, j)
	m.data.Set(i, j, v)
}

// Add adds v to element (i, j).
func (m *Matrix) Add(i, j int, v float64) {
	m.checkIndex(i, j)
	m.data.Set(i, j, m.data.At(i, j)+v)
}

// Get00 returns element (0, 0), the value of a scalar matrix.
func (m *Matrix) Get00() float64 {
	return m.At(0, 0)
}

// SetAll assigns v to every element.
func (m *Matrix) SetAll(v float64) {
	for i := 0; i < m.rows; i++ {
		row := m.rowSlice(i)
		for j := range row {
			row[j] = v
		}
	}
}

// Resize reshapes m to rows x cols. The content is zeroed whenever the shape
// changes; an unchanged shape keeps the content. Views cannot be resized.
func (m *Matrix) Resize(rows, cols int) {
	if m.rows == rows && m.cols == cols {
		return
	}
	if m.view {
		exceptions.Panicf("tensor: cannot resize a %dx%d view to %dx%d", m.rows, m.cols, rows, cols)
	}
	device := m.device
	m.releaseMirror()
	m.device = CPU
	fresh := New(rows, cols)
	m.data, m.rows, m.cols = fresh.data, rows, cols
	if device != CPU {
		if err := m.MoveTo(device); err != nil {
			exceptions.Panicf("tensor: resize on %s: %v", device, err)
		}
	}
}

// CopyFrom resizes m to src's shape and copies its content.
func (m *Matrix) CopyFrom(src *Matrix) {
	if m == src {
		return
	}
	m.Resize(src.rows, src.cols)
	if !m.IsEmpty() {
		m.data.Copy(src.data)
	}
}

// Clone returns a deep copy of m in host memory with the same placement tag.
// The clone never shares storage with m, even when m is a view.
func (m *Matrix) Clone() *Matrix {
	c := New(m.rows, m.cols)
	if !m.IsEmpty() {
		c.data.Copy(m.data)
	}
	if m.device != CPU {
		if err := c.MoveTo(m.device); err != nil {
			exceptions.Panicf("tensor: clone placement on %s: %v", m.device, err)
		}
	}
	return c
}

// ColumnSlice returns a view of columns [start, start+n).
func (m *Matrix) ColumnSlice(start, n int) *Matrix {
	if start < 0 || n < 0 || start+n > m.cols {
		exceptions.Panicf("tensor: column slice [%d, %d) out of range for %d columns", start, start+n, m.cols)
	}
	v := &Matrix{rows: m.rows, cols: n, view: true, device: m.device}
	if m.rows > 0 && n > 0 {
		v.data = m.data.Slice(0, m.rows, start, start+n).(*mat.Dense)
	}
	return v
}

// Column returns a copy of column j.
func (m *Matrix) Column(j int) []float64 {
	m.checkIndex(0, j)
	return mat.Col(nil, j, m.data)
}

// SetColumn overwrites column j with values.
func (m *Matrix) SetColumn(j int, values []float64) {
	if len(values) != m.rows {
		exceptions.Panicf("tensor: SetColumn got %d values for %d rows", len(values), m.rows)
	}
	m.checkIndex(0, j)
	m.data.SetCol(j, values)
}

// ZeroColumn sets every element of column j to zero.
func (m *Matrix) ZeroColumn(j int) {
	m.checkIndex(0, j)
	for i := 0; i < m.rows; i++ {
		m.data.Set(i, j, 0)
	}
}

// SameShape reports whether m and other have identical dimensions.
func (m *Matrix) SameShape(other *Matrix) bool {
	return m.rows == other.rows && m.cols == other.cols
}

// String renders the matrix row by row, for debugging and test failures.
func (m *Matrix) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Matrix(%dx%d, %s)", m.rows, m.cols, m.device)
	for i := 0; i < m.rows; i++ {
		sb.WriteString("\n  [")
		for j, v := range m.rowSlice(i) {
			if j > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%.6g", v)
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// MoveTo places m on device. Moving to the current device is a no-op.
// Moving to an accelerator requires a MirrorStore registered for it.
func (m *Matrix) MoveTo(device Device) error {
	if m.device == device {
		return nil
	}
	if m.view {
		return errors.Errorf("tensor: cannot move a view from %s to %s", m.device, device)
	}
	m.releaseMirror()
	if device == CPU {
		m.device = CPU
		return nil
	}
	store, err := storeFor(device)
	if err != nil {
		return err
	}
	mirror, err := store.Allocate(m.NumElements())
	if err != nil {
		return errors.Wrapf(err, "tensor: allocate %d elements on %s", m.NumElements(), device)
	}
	if err := mirror.Upload(m.hostData()); err != nil {
		mirror.Release()
		return errors.Wrapf(err, "tensor: upload to %s", device)
	}
	m.mirror = mirror
	m.device = device
	return nil
}

// Sync refreshes the device mirror from host memory. No-op on CPU.
func (m *Matrix) Sync() error {
	if m.mirror == nil {
		return nil
	}
	return m.mirror.Upload(m.hostData())
}

// MirrorData reads the device mirror back into a new row-major slice, or
// returns nil when m is in host memory.
func (m *Matrix) MirrorData() ([]float64, error) {
	if m.mirror == nil {
		return nil, nil
	}
	out := make([]float64, m.NumElements())
	if err := m.mirror.Download(out); err != nil {
		return nil, errors.Wrapf(err, "tensor: download from %s", m.device)
	}
	return out, nil
}

func (m *Matrix) releaseMirror() {
	if m.mirror != nil {
		m.mirror.Release()
		m.mirror = nil
	}
}

// hostData returns the contiguous row-major backing slice of a non-view matrix.
func (m *Matrix) hostData() []float64 {
	if m.data == nil {
		return nil
	}
	return m.data.RawMatrix().Data
}

// rowSlice returns row i of the storage, honoring the stride of views.
func (m *Matrix) rowSlice(i int) []float64 {
	if m.data == nil {
		return nil
	}
	raw := m.data.RawMatrix()
	return raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
}

func (m *Matrix) checkIndex(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		exceptions.Panicf("tensor: index (%d, %d) out of range for %dx%d matrix", i, j, m.rows, m.cols)
	}
}

func checkSameShape(op string, a, b *Matrix) {
	if !a.SameShape(b) {
		exceptions.Panicf("tensor: %s needs equal shapes, got %dx%d and %dx%d", op, a.rows, a.cols, b.rows, b.cols)
	}
}
