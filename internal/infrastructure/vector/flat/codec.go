package flat

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

const (
	magic         = "AMDX"
	formatVersion = 1

	// magic + version + dim + count
	headerSize  = 4 + 4 + 4 + 8
	trailerSize = 4
)

// MarshalBinary encodes the index as a fixed header, row-major little-endian
// float32 data and a CRC-32 (IEEE) of everything before the trailer.
func (ix *Index) MarshalBinary() ([]byte, error) {
	if ix.Len() == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode index", fmt.Errorf("index is empty"))
	}
	buf := make([]byte, headerSize+len(ix.data)*4+trailerSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(ix.dim))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(ix.rows))

	off := headerSize
	for _, v := range ix.data {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf, nil
}

// Decode parses data produced by MarshalBinary. Any structural problem is
// reported as domain.ErrCorruptState.
func Decode(data []byte) (*Index, error) {
	corrupt := func(format string, args ...any) error {
		return domain.WrapError(domain.ErrCorruptState, "decode index", fmt.Errorf(format, args...))
	}

	if len(data) < headerSize+trailerSize {
		return nil, corrupt("payload of %d bytes is truncated", len(data))
	}
	if string(data[0:4]) != magic {
		return nil, corrupt("bad magic %q", data[0:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatVersion {
		return nil, corrupt("unsupported version %d", v)
	}
	dim := uint64(binary.LittleEndian.Uint32(data[8:12]))
	rows := binary.LittleEndian.Uint64(data[12:20])
	if dim == 0 || rows == 0 {
		return nil, corrupt("empty index header (dim=%d rows=%d)", dim, rows)
	}

	payload := uint64(len(data) - headerSize - trailerSize)
	if payload%4 != 0 || rows > payload/4/dim || rows*dim*4 != payload {
		return nil, corrupt("payload of %d bytes does not hold %d rows of dimension %d", payload, rows, dim)
	}

	body := data[:len(data)-trailerSize]
	want := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, corrupt("checksum mismatch")
	}

	values := make([]float32, rows*dim)
	off := headerSize
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
	}
	if !finite(values) {
		return nil, corrupt("payload holds non-finite values")
	}
	return &Index{dim: int(dim), rows: int(rows), data: values}, nil
}

// UnmarshalBinary replaces ix with the decoded index.
func (ix *Index) UnmarshalBinary(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*ix = *decoded
	return nil
}
