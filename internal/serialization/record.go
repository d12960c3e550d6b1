package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
)

// WriteRecord writes one checkpoint record holding header and payload.
// FormatVersion and a zero CreatedAt are filled in.
func WriteRecord(w io.Writer, header Header, payload []byte) error {
	if err := ValidateNodeName(header.NodeName); err != nil {
		return err
	}
	if len(payload) > MaxPayloadSize {
		return errors.Wrapf(ErrPayloadTooLarge, "%d bytes", len(payload))
	}
	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	if len(headerJSON) > MaxHeaderSize {
		return errors.Wrapf(ErrHeaderTooLarge, "%d bytes", len(headerJSON))
	}

	var body bytes.Buffer
	body.WriteString(MagicBytes)
	body.Write(binary.LittleEndian.AppendUint32(nil, FormatVersion))
	body.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON))))
	body.Write(headerJSON)
	body.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(payload))))
	body.Write(payload)

	checksum := ComputeChecksum(body.Bytes())
	body.Write(checksum[:])

	if _, err := w.Write(body.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write record")
	}
	return nil
}

// ReadRecord reads one record written by WriteRecord and verifies its
// checksum before decoding it.
func ReadRecord(r io.Reader) (Header, []byte, error) {
	var header Header

	prefix := make([]byte, prefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return header, nil, errors.Wrap(ErrTruncated, "failed to read record prefix")
	}
	if string(prefix[:4]) != MagicBytes {
		return header, nil, errors.Wrapf(ErrInvalidMagic, "got %q, want %q", prefix[:4], MagicBytes)
	}
	if v := binary.LittleEndian.Uint32(prefix[4:8]); v != FormatVersion {
		return header, nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}
	headerSize := binary.LittleEndian.Uint64(prefix[8:16])
	if headerSize > MaxHeaderSize {
		return header, nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}

	headerJSON := make([]byte, headerSize+8)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return header, nil, errors.Wrap(ErrTruncated, "failed to read header")
	}
	payloadSize := binary.LittleEndian.Uint64(headerJSON[headerSize:])
	headerJSON = headerJSON[:headerSize]
	if payloadSize > MaxPayloadSize {
		return header, nil, errors.Wrapf(ErrPayloadTooLarge, "%d bytes", payloadSize)
	}

	rest := make([]byte, payloadSize+ChecksumSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return header, nil, errors.Wrap(ErrTruncated, "failed to read payload")
	}
	payload, stored := rest[:payloadSize], rest[payloadSize:]

	body := make([]byte, 0, prefixSize+int(headerSize)+8+int(payloadSize))
	body = append(body, prefix...)
	body = append(body, headerJSON...)
	body = binary.LittleEndian.AppendUint64(body, payloadSize)
	body = append(body, payload...)
	if err := ValidateChecksum(body, stored); err != nil {
		return header, nil, err
	}

	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return header, nil, errors.Wrap(err, "failed to parse header")
	}
	if err := ValidateHeader(&header); err != nil {
		return header, nil, err
	}
	return header, payload, nil
}
