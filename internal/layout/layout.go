// Package layout describes how minibatch columns map to packed sequences.
//
// A minibatch holding numSeq parallel sequences of up to numTime steps is a
// matrix with numSeq*numTime columns; column j = t*numSeq + s holds timestep t
// of sequence s. Shorter sequences leave padding slots (gaps) that carry no
// data and never contribute to a loss.
package layout

import (
	"github.com/born-ml/criterion/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Flags marks the state of one (sequence, timestep) slot.
type Flags uint8

// Slot flags. NoInput marks a padding gap; NoLabel marks a real frame that
// has no loss-contributing label.
const (
	NoInput Flags = 1 << iota
	NoLabel
	SequenceStart
	SequenceEnd

	None Flags = 0
)

// String renders the set flags, e.g. "NoInput|SequenceEnd".
func (f Flags) String() string {
	if f == None {
		return "None"
	}
	names := []string{"NoInput", "NoLabel", "SequenceStart", "SequenceEnd"}
	out := ""
	for i, name := range names {
		if f&(1<<i) != 0 {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	return out
}

// MBLayout is the minibatch layout shared by the nodes of one evaluation.
// A nil *MBLayout stands for a single sequence with every column valid.
type MBLayout struct {
	numSeq  int
	numTime int
	flags   []Flags // indexed by column
}

// New creates a layout for numSeq parallel sequences of numTime steps with no
// flags set.
func New(numSeq, numTime int) *MBLayout {
	if numSeq <= 0 || numTime < 0 {
		exceptions.Panicf("layout: invalid dimensions %d sequences x %d steps", numSeq, numTime)
	}
	return &MBLayout{
		numSeq:  numSeq,
		numTime: numTime,
		flags:   make([]Flags, numSeq*numTime),
	}
}

// FromLengths packs sequences of the given lengths side by side. Slots past a
// sequence's end are NoInput gaps; first and last frames carry SequenceStart
// and SequenceEnd.
func FromLengths(lengths ...int) *MBLayout {
	numTime := 0
	for _, n := range lengths {
		numTime = max(numTime, n)
	}
	l := New(len(lengths), numTime)
	for s, n := range lengths {
		for t := n; t < numTime; t++ {
			l.Set(s, t, NoInput)
		}
		if n > 0 {
			l.Set(s, 0, SequenceStart)
			l.Set(s, n-1, SequenceEnd)
		}
	}
	return l
}

// NumParallelSequences returns the number of packed sequences; 1 for a nil layout.
func (l *MBLayout) NumParallelSequences() int {
	if l == nil {
		return 1
	}
	return l.numSeq
}

// NumTimeSteps returns the number of timesteps.
func (l *MBLayout) NumTimeSteps() int {
	if l == nil {
		return 0
	}
	return l.numTime
}

// NumCols returns the number of minibatch columns the layout describes.
func (l *MBLayout) NumCols() int {
	if l == nil {
		return 0
	}
	return l.numSeq * l.numTime
}

// Column returns the matrix column of (s, t).
func (l *MBLayout) Column(s, t int) int {
	return t*l.NumParallelSequences() + s
}

// Set adds flag to slot (s, t).
func (l *MBLayout) Set(s, t int, flag Flags) {
	l.flags[l.checkedColumn(s, t)] |= flag
}

// Clear removes flag from slot (s, t).
func (l *MBLayout) Clear(s, t int, flag Flags) {
	l.flags[l.checkedColumn(s, t)] &^= flag
}

// Is reports whether slot (s, t) carries flag.
func (l *MBLayout) Is(s, t int, flag Flags) bool {
	if l == nil {
		return false
	}
	return l.flags[l.checkedColumn(s, t)]&flag != 0
}

// IsGap reports whether (s, t) is a padding slot.
func (l *MBLayout) IsGap(s, t int) bool { return l.Is(s, t, NoInput) }

// IsNoLabel reports whether (s, t) has no loss-contributing label.
func (l *MBLayout) IsNoLabel(s, t int) bool { return l.Is(s, t, NoLabel) }

// Contributes reports whether (s, t) takes part in loss and gradient.
func (l *MBLayout) Contributes(s, t int) bool {
	return !l.Is(s, t, NoInput|NoLabel)
}

// ColumnContributes reports Contributes for minibatch column j.
func (l *MBLayout) ColumnContributes(j int) bool {
	if l == nil {
		return true
	}
	return l.flags[j]&(NoInput|NoLabel) == 0
}

// HasGaps reports whether any slot is excluded from the loss.
func (l *MBLayout) HasGaps() bool {
	if l == nil {
		return false
	}
	for _, f := range l.flags {
		if f&(NoInput|NoLabel) != 0 {
			return true
		}
	}
	return false
}

// ForEachColumn calls fn for every slot in the fixed order sequence-major,
// timestep-minor. Criteria that pack per-column state rely on this order
// being identical between their forward and backward passes.
func (l *MBLayout) ForEachColumn(numCols int, fn func(s, t, j int)) {
	if l == nil {
		for j := 0; j < numCols; j++ {
			fn(0, j, j)
		}
		return
	}
	for s := 0; s < l.numSeq; s++ {
		for t := 0; t < l.numTime; t++ {
			fn(s, t, l.Column(s, t))
		}
	}
}

// MaskColumns zeroes every column of m that does not contribute to the loss.
func (l *MBLayout) MaskColumns(m *tensor.Matrix) {
	if l == nil || !l.HasGaps() {
		return
	}
	for j := 0; j < m.Cols() && j < len(l.flags); j++ {
		if !l.ColumnContributes(j) {
			m.ZeroColumn(j)
		}
	}
}

// Check verifies that a matrix with numCols columns fits the layout.
func (l *MBLayout) Check(numCols int) error {
	if l == nil {
		return nil
	}
	if numCols != l.NumCols() {
		return errors.Errorf("layout: %d columns do not match %d sequences x %d steps", numCols, l.numSeq, l.numTime)
	}
	return nil
}

// Equal reports whether two layouts describe the same packing.
func (l *MBLayout) Equal(other *MBLayout) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.numSeq != other.numSeq || l.numTime != other.numTime {
		return false
	}
	for j, f := range l.flags {
		if f != other.flags[j] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (l *MBLayout) Clone() *MBLayout {
	if l == nil {
		return nil
	}
	c := &MBLayout{numSeq: l.numSeq, numTime: l.numTime, flags: make([]Flags, len(l.flags))}
	copy(c.flags, l.flags)
	return c
}

func (l *MBLayout) checkedColumn(s, t int) int {
	if s < 0 || s >= l.numSeq || t < 0 || t >= l.numTime {
		exceptions.Panicf("layout: slot (%d, %d) out of range for %d x %d", s, t, l.numSeq, l.numTime)
	}
	return l.Column(s, t)
}
