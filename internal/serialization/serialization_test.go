package serialization

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(-7)
	w.WriteFloat64(math.Pi)
	w.WriteBool(true)
	assert.Equal(t, 4+8+1, w.Len())

	r := NewReader(w.Bytes())
	i, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i)

	f, err := r.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, math.Pi, f)

	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	assert.Equal(t, 0, r.Remaining())

	_, err = r.ReadInt32()
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestReaderRewind(t *testing.T) {
	w := NewWriter()
	w.WriteInt32(5)
	r := NewReader(w.Bytes())

	_, err := r.ReadInt32()
	require.NoError(t, err)
	require.NoError(t, r.SetPosition(r.Position()-4))

	v, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)

	assert.Error(t, r.SetPosition(-1))
	assert.Error(t, r.SetPosition(5))
}

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	header := Header{OperationName: "CRF", NodeName: "crf", Metadata: map[string]string{"k": "v"}}
	require.NoError(t, WriteRecord(&buf, header, []byte{1, 2, 3}))

	got, payload, err := ReadRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, "CRF", got.OperationName)
	assert.Equal(t, "crf", got.NodeName)
	assert.Equal(t, FormatVersion, got.FormatVersion)
	assert.Equal(t, "v", got.Metadata["k"])
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, []byte{1, 2, 3}, payload)
}

func TestRecordEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, Header{OperationName: "SquareError", NodeName: "mse"}, nil))
	_, payload, err := ReadRecord(&buf)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestRecordCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, Header{OperationName: "CRF", NodeName: "crf"}, []byte{9, 9}))
	data := buf.Bytes()

	t.Run("checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-ChecksumSize-1] ^= 0xff
		_, _, err := ReadRecord(bytes.NewReader(bad))
		assert.True(t, errors.Is(err, ErrChecksumMismatch))
	})

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		copy(bad, "BORN")
		_, _, err := ReadRecord(bytes.NewReader(bad))
		assert.True(t, errors.Is(err, ErrInvalidMagic))
	})

	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[4] = 9
		_, _, err := ReadRecord(bytes.NewReader(bad))
		assert.True(t, errors.Is(err, ErrUnsupportedVersion))
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := ReadRecord(bytes.NewReader(data[:len(data)-1]))
		assert.True(t, errors.Is(err, ErrTruncated))
	})
}

func TestValidateNodeName(t *testing.T) {
	assert.NoError(t, ValidateNodeName("layer.0/ce"))
	assert.True(t, errors.Is(ValidateNodeName(""), ErrInvalidNodeName))
	assert.True(t, errors.Is(ValidateNodeName("a\x00b"), ErrInvalidNodeName))
	assert.True(t, errors.Is(ValidateNodeName(strings.Repeat("n", MaxNodeNameLen+1)), ErrInvalidNodeName))

	var buf bytes.Buffer
	assert.Error(t, WriteRecord(&buf, Header{OperationName: "CRF"}, nil))
}

func TestComputeChecksum(t *testing.T) {
	a := ComputeChecksum([]byte("test data"))
	assert.Equal(t, a, ComputeChecksum([]byte("test data")))
	assert.NotEqual(t, a, ComputeChecksum([]byte("different data")))
	assert.NoError(t, ValidateChecksum([]byte("test data"), a[:]))
	assert.ErrorIs(t, ValidateChecksum([]byte("test data"), a[:4]), ErrTruncated)
}
