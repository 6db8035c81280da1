package witness

import (
	"bytes"

	"das.dev/verifier/core"
	"das.dev/verifier/molecule"
)

// DataEntity is one side of an entity witness:
// table{version Uint32, index Uint32, entity Bytes}.
type DataEntity struct {
	Version uint32
	Index   uint32
	Entity  []byte
}

// EntityWitness is table{old DataEntityOpt, new DataEntityOpt, dep DataEntityOpt}
// where each option is empty or a DataEntity.
type EntityWitness struct {
	Old, New, Dep *DataEntity
}

func (w *EntityWitness) side(s core.Source) *DataEntity {
	switch s {
	case core.SourceInput:
		return w.Old
	case core.SourceOutput:
		return w.New
	case core.SourceCellDep:
		return w.Dep
	}
	return nil
}

func decodeEntityWitness(i int, payload []byte) (*EntityWitness, error) {
	fields, err := molecule.ReadTable(payload, 3, true)
	if err != nil {
		return nil, core.Errorf(core.WitnessDataDecodingError, "witnesses[%d]: %v", i, err)
	}
	var sides [3]*DataEntity
	for k, f := range fields {
		if len(f) == 0 {
			continue
		}
		de, err := molecule.ReadTable(f, 3, true)
		if err != nil {
			return nil, core.Errorf(core.WitnessEntityDecodingError, "witnesses[%d] entity %d: %v", i, k, err)
		}
		e := &DataEntity{}
		if e.Version, err = molecule.ReadUint32(de[0]); err != nil {
			return nil, core.Errorf(core.WitnessEntityDecodingError, "witnesses[%d] version: %v", i, err)
		}
		if e.Index, err = molecule.ReadUint32(de[1]); err != nil {
			return nil, core.Errorf(core.WitnessEntityDecodingError, "witnesses[%d] index: %v", i, err)
		}
		raw, err := molecule.ReadBytes(de[2])
		if err != nil {
			return nil, core.Errorf(core.WitnessEntityDecodingError, "witnesses[%d] entity: %v", i, err)
		}
		e.Entity = raw
		sides[k] = e
	}
	return &EntityWitness{Old: sides[0], New: sides[1], Dep: sides[2]}, nil
}

// Entity finds the entity of dataType describing the cell at (source,
// cellIndex) and checks that its blake2b hash is the first 32 bytes of
// cellData.
func (x *Index) Entity(dataType core.DataType, source core.Source, cellIndex int, cellData []byte) (*DataEntity, error) {
	for _, i := range x.Of(dataType) {
		payload, err := x.Payload(i)
		if err != nil {
			return nil, err
		}
		w, err := decodeEntityWitness(i, payload)
		if err != nil {
			return nil, err
		}
		e := w.side(source)
		if e == nil || int(e.Index) != cellIndex {
			continue
		}
		if len(cellData) < core.HashLength {
			return nil, core.Errorf(core.InvalidCellData, "%s[%d] data is shorter than a hash", source, cellIndex)
		}
		h := core.Blake2b256(e.Entity)
		if !bytes.Equal(h[:], cellData[:core.HashLength]) {
			return nil, core.Errorf(core.WitnessDataHashOrTypeMissMatch, "witnesses[%d] does not match %s[%d]", i, source, cellIndex)
		}
		return e, nil
	}
	return nil, core.Errorf(core.WitnessDataIndexMissMatch, "no %s witness for %s[%d]", dataType, source, cellIndex)
}

type EntityInput struct {
	Version uint32
	Index   uint32
	Entity  []byte
}

func encodeSide(e *EntityInput) []byte {
	if e == nil {
		return nil
	}
	return molecule.Table(molecule.Uint32(e.Version), molecule.Uint32(e.Index), molecule.Bytes(e.Entity))
}

// EncodeEntityWitness builds an entity witness; nil sides are left empty.
func EncodeEntityWitness(dataType core.DataType, old, next, dep *EntityInput) []byte {
	w := newFieldWriter(dataType)
	w.b = append(w.b, molecule.Table(encodeSide(old), encodeSide(next), encodeSide(dep))...)
	return w.bytes()
}
