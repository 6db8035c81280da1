package molecule

import (
	"encoding/binary"

	"das.dev/verifier/core"
)

const (
	// HeaderSize is the width of a total-size or item-count word.
	HeaderSize = 4
	// OffsetSize is the width of one entry of an offset table.
	OffsetSize = 4
)

func readU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// ReadOffsetTable splits a table or dynvec into its items.
func ReadOffsetTable(b []byte) ([][]byte, error) {
	if len(b) < HeaderSize {
		return nil, core.Errorf(core.Encoding, "molecule: header too short (%d)", len(b))
	}
	total := int(readU32(b, 0))
	if total != len(b) {
		return nil, core.Errorf(core.Encoding, "molecule: total_size %d != %d", total, len(b))
	}
	if total == HeaderSize {
		return nil, nil
	}
	if total < HeaderSize+OffsetSize {
		return nil, core.Errorf(core.Encoding, "molecule: offset table truncated")
	}
	first := int(readU32(b, HeaderSize))
	if first%OffsetSize != 0 || first < HeaderSize+OffsetSize || first > total {
		return nil, core.Errorf(core.Encoding, "molecule: invalid first offset %d", first)
	}
	count := first/OffsetSize - 1
	offsets := make([]int, count+1)
	for i := 0; i < count; i++ {
		offsets[i] = int(readU32(b, HeaderSize+i*OffsetSize))
	}
	offsets[count] = total
	items := make([][]byte, count)
	for i := 0; i < count; i++ {
		if offsets[i] > offsets[i+1] {
			return nil, core.Errorf(core.Encoding, "molecule: offsets not ordered at %d", i)
		}
		items[i] = b[offsets[i]:offsets[i+1]]
	}
	return items, nil
}

// ReadTable decodes a table with fieldCount fields. In compatible mode extra
// trailing fields written by a newer schema are accepted and dropped.
func ReadTable(b []byte, fieldCount int, compatible bool) ([][]byte, error) {
	fields, err := ReadOffsetTable(b)
	if err != nil {
		return nil, err
	}
	if len(fields) < fieldCount || (!compatible && len(fields) != fieldCount) {
		return nil, core.Errorf(core.Encoding, "molecule: table has %d fields, want %d", len(fields), fieldCount)
	}
	return fields[:fieldCount], nil
}

func ReadDynVec(b []byte) ([][]byte, error) {
	return ReadOffsetTable(b)
}

// ReadBytes decodes a fixvec<byte>.
func ReadBytes(b []byte) ([]byte, error) {
	if len(b) < HeaderSize {
		return nil, core.Errorf(core.Encoding, "molecule: bytes header too short")
	}
	n := int(readU32(b, 0))
	if HeaderSize+n != len(b) {
		return nil, core.Errorf(core.Encoding, "molecule: bytes length %d != %d", n, len(b)-HeaderSize)
	}
	return b[HeaderSize:], nil
}

func ReadFixVec(b []byte, itemSize int) ([][]byte, error) {
	if len(b) < HeaderSize {
		return nil, core.Errorf(core.Encoding, "molecule: fixvec header too short")
	}
	n := int(readU32(b, 0))
	if HeaderSize+n*itemSize != len(b) {
		return nil, core.Errorf(core.Encoding, "molecule: fixvec of %d items has %d bytes", n, len(b)-HeaderSize)
	}
	items := make([][]byte, n)
	for i := range items {
		start := HeaderSize + i*itemSize
		items[i] = b[start : start+itemSize]
	}
	return items, nil
}

func ReadUint8(b []byte) (uint8, error) {
	if len(b) != 1 {
		return 0, core.Errorf(core.Encoding, "molecule: uint8 has %d bytes", len(b))
	}
	return b[0], nil
}

func ReadUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, core.Errorf(core.Encoding, "molecule: uint32 has %d bytes", len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, core.Errorf(core.Encoding, "molecule: uint64 has %d bytes", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

func ReadByte32(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, core.Errorf(core.Encoding, "molecule: byte32 has %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}
