package witness

import (
	"bytes"
	"encoding/binary"

	"das.dev/verifier/core"
)

const headerLen = core.WitnessHeaderBytes + core.WitnessTypeBytes

// Index lists the positions of protocol witnesses by data type.
type Index struct {
	witnesses [][]byte
	byType    map[core.DataType][]int
	first     int
	last      int
}

func isTagged(w []byte) bool {
	return len(w) >= headerLen && bytes.Equal(w[:core.WitnessHeaderBytes], core.WitnessHeader)
}

// DataTypeOf returns the type tag of a protocol witness.
func DataTypeOf(w []byte) (core.DataType, bool) {
	if !isTagged(w) {
		return 0, false
	}
	return core.DataType(binary.LittleEndian.Uint32(w[core.WitnessHeaderBytes:headerLen])), true
}

// Scan walks witnesses by increasing index. Untagged witnesses before the
// first tagged one are skipped (they carry lock signatures); once tagged
// witnesses start they must not be interrupted by untagged ones.
func Scan(witnesses [][]byte) (*Index, error) {
	idx := &Index{witnesses: witnesses, byType: make(map[core.DataType][]int), first: -1, last: -1}
	gap := false
	for i, w := range witnesses {
		t, ok := DataTypeOf(w)
		if !ok {
			if idx.first >= 0 {
				gap = true
			}
			continue
		}
		if gap {
			return nil, core.Errorf(core.WitnessStructureError, "witnesses[%d] is tagged but follows an untagged witness at or after %d", i, idx.last+1)
		}
		if idx.first < 0 {
			idx.first = i
		}
		idx.last = i
		idx.byType[t] = append(idx.byType[t], i)
	}
	return idx, nil
}

func (x *Index) Of(t core.DataType) []int {
	return x.byType[t]
}

func (x *Index) Count(t core.DataType) int {
	return len(x.byType[t])
}

// Payload returns the bytes after the header of witnesses[i].
func (x *Index) Payload(i int) ([]byte, error) {
	if i < 0 || i >= len(x.witnesses) {
		return nil, core.Errorf(core.IndexOutOfBound, "witness %d out of %d", i, len(x.witnesses))
	}
	w := x.witnesses[i]
	if !isTagged(w) {
		return nil, core.Errorf(core.WitnessReadingError, "witnesses[%d] has no protocol header", i)
	}
	return w[headerLen:], nil
}

func (x *Index) Raw(i int) []byte {
	if i < 0 || i >= len(x.witnesses) {
		return nil
	}
	return x.witnesses[i]
}
