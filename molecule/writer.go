package molecule

import "encoding/binary"

// TableSize is the encoded size of a table or dynvec whose items have the
// given encoded sizes.
func TableSize(itemSizes ...int) int {
	total := HeaderSize + OffsetSize*len(itemSizes)
	for _, n := range itemSizes {
		total += n
	}
	return total
}

// BytesSize is the encoded size of a fixvec<byte> of n bytes.
func BytesSize(n int) int {
	return HeaderSize + n
}

// Table encodes fields with the length+offset-table layout.
func Table(fields ...[]byte) []byte {
	sizes := make([]int, len(fields))
	for i, f := range fields {
		sizes[i] = len(f)
	}
	total := TableSize(sizes...)
	out := make([]byte, 0, total)
	out = binary.LittleEndian.AppendUint32(out, uint32(total))
	off := HeaderSize + OffsetSize*len(fields)
	for _, f := range fields {
		out = binary.LittleEndian.AppendUint32(out, uint32(off))
		off += len(f)
	}
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

func DynVec(items ...[]byte) []byte {
	return Table(items...)
}

func Bytes(b []byte) []byte {
	out := make([]byte, 0, BytesSize(len(b)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b)))
	return append(out, b...)
}

func FixVec(items ...[]byte) []byte {
	n := 0
	for _, it := range items {
		n += len(it)
	}
	out := make([]byte, 0, HeaderSize+n)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func Uint8(v uint8) []byte {
	return []byte{v}
}

func Uint32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func Uint64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}
