package witness

import (
	"das.dev/verifier/core"
	"das.dev/verifier/molecule"
)

// ActionData is the declared intent of a transaction:
// molecule table{action Bytes, params Bytes}.
type ActionData struct {
	Action string
	Params []byte
}

// ParseActionData decodes the action witness. Exactly one is allowed.
func ParseActionData(witnesses [][]byte) (*ActionData, error) {
	idx, err := Scan(witnesses)
	if err != nil {
		return nil, err
	}
	return idx.ActionData()
}

func (x *Index) ActionData() (*ActionData, error) {
	at := x.Of(core.DataTypeActionData)
	switch len(at) {
	case 0:
		return nil, core.Errorf(core.WitnessEmpty, "no action witness")
	case 1:
	default:
		return nil, core.Errorf(core.WitnessStructureError, "%d action witnesses", len(at))
	}
	payload, err := x.Payload(at[0])
	if err != nil {
		return nil, err
	}
	fields, err := molecule.ReadTable(payload, 2, true)
	if err != nil {
		return nil, core.Errorf(core.WitnessActionDecodingError, "witnesses[%d]: %v", at[0], err)
	}
	action, err := molecule.ReadBytes(fields[0])
	if err != nil {
		return nil, core.Errorf(core.WitnessActionDecodingError, "witnesses[%d] action: %v", at[0], err)
	}
	params, err := molecule.ReadBytes(fields[1])
	if err != nil {
		return nil, core.Errorf(core.WitnessActionDecodingError, "witnesses[%d] params: %v", at[0], err)
	}
	return &ActionData{Action: string(action), Params: append([]byte(nil), params...)}, nil
}

// EncodeActionData builds the action witness.
func EncodeActionData(action string, params []byte) []byte {
	w := newFieldWriter(core.DataTypeActionData)
	w.b = append(w.b, molecule.Table(molecule.Bytes([]byte(action)), molecule.Bytes(params))...)
	return w.bytes()
}
