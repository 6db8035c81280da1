package witness

import (
	"encoding/binary"

	"das.dev/verifier/core"
)

// fieldReader walks a sequence of fields each prefixed with a LE u32 length.
type fieldReader struct {
	b   []byte
	off int
}

func newFieldReader(b []byte, off int) *fieldReader {
	return &fieldReader{b: b, off: off}
}

func (r *fieldReader) next(name string) ([]byte, error) {
	if r.off+core.WitnessLengthBytes > len(r.b) {
		return nil, core.Errorf(core.WitnessStructureError, "%s: expect 4 length bytes at %d", name, r.off)
	}
	n := int(binary.LittleEndian.Uint32(r.b[r.off : r.off+core.WitnessLengthBytes]))
	from := r.off + core.WitnessLengthBytes
	if n < 0 || from+n > len(r.b) {
		return nil, core.Errorf(core.WitnessStructureError, "%s: expect %d bytes at %d, have %d", name, n, from, len(r.b)-from)
	}
	r.off = from + n
	return r.b[from : from+n], nil
}

func (r *fieldReader) done() bool {
	return r.off >= len(r.b)
}

func (r *fieldReader) u32(name string) (uint32, error) {
	v, err := r.next(name)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, core.Errorf(core.WitnessStructureError, "%s should be 4 bytes, got %d", name, len(v))
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (r *fieldReader) u64(name string) (uint64, error) {
	v, err := r.next(name)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, core.Errorf(core.WitnessStructureError, "%s should be 8 bytes, got %d", name, len(v))
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (r *fieldReader) hash(name string) ([32]byte, error) {
	var out [32]byte
	v, err := r.next(name)
	if err != nil {
		return out, err
	}
	if len(v) != 32 {
		return out, core.Errorf(core.WitnessStructureError, "%s should be 32 bytes, got %d", name, len(v))
	}
	copy(out[:], v)
	return out, nil
}

// fieldWriter is the inverse of fieldReader.
type fieldWriter struct {
	b []byte
}

func newFieldWriter(dataType core.DataType) *fieldWriter {
	w := &fieldWriter{b: make([]byte, 0, 256)}
	w.b = append(w.b, core.WitnessHeader...)
	w.b = binary.LittleEndian.AppendUint32(w.b, uint32(dataType))
	return w
}

func (w *fieldWriter) put(v []byte) *fieldWriter {
	w.b = binary.LittleEndian.AppendUint32(w.b, uint32(len(v))) // #nosec G115 -- witness fields are far below 4 GiB.
	w.b = append(w.b, v...)
	return w
}

func (w *fieldWriter) putU32(v uint32) *fieldWriter {
	return w.put(binary.LittleEndian.AppendUint32(nil, v))
}

func (w *fieldWriter) putU64(v uint64) *fieldWriter {
	return w.put(binary.LittleEndian.AppendUint64(nil, v))
}

func (w *fieldWriter) bytes() []byte {
	return w.b
}
