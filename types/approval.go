package types

import (
	"das.dev/verifier/molecule"
)

const ApprovalActionTransfer = "transfer"

// AccountApproval is an optional pending action on an account. The zero value
// means no approval.
type AccountApproval struct {
	Action []byte
	Params []byte
}

func (a AccountApproval) IsEmpty() bool {
	return len(a.Action) == 0 && len(a.Params) == 0
}

func (a AccountApproval) Encode() []byte {
	return molecule.Table(molecule.Bytes(a.Action), molecule.Bytes(a.Params))
}

func DecodeAccountApproval(b []byte) (AccountApproval, error) {
	fields, err := molecule.ReadTable(b, 2, true)
	if err != nil {
		return AccountApproval{}, err
	}
	action, err := molecule.ReadBytes(fields[0])
	if err != nil {
		return AccountApproval{}, err
	}
	params, err := molecule.ReadBytes(fields[1])
	if err != nil {
		return AccountApproval{}, err
	}
	return AccountApproval{Action: append([]byte(nil), action...), Params: append([]byte(nil), params...)}, nil
}

// Transfer decodes Params for the "transfer" action.
func (a AccountApproval) Transfer() (AccountApprovalTransfer, error) {
	return DecodeAccountApprovalTransfer(a.Params)
}

type AccountApprovalTransfer struct {
	PlatformLock     Script
	ProtectedUntil   uint64
	SealedUntil      uint64
	DelayCountRemain uint8
	ToLock           Script
}

func (t AccountApprovalTransfer) Encode() []byte {
	return molecule.Table(
		t.PlatformLock.Encode(),
		molecule.Uint64(t.ProtectedUntil),
		molecule.Uint64(t.SealedUntil),
		molecule.Uint8(t.DelayCountRemain),
		t.ToLock.Encode(),
	)
}

// Approval wraps the transfer params into an AccountApproval.
func (t AccountApprovalTransfer) Approval() AccountApproval {
	return AccountApproval{Action: []byte(ApprovalActionTransfer), Params: t.Encode()}
}

func DecodeAccountApprovalTransfer(b []byte) (AccountApprovalTransfer, error) {
	var t AccountApprovalTransfer
	fields, err := molecule.ReadTable(b, 5, true)
	if err != nil {
		return t, err
	}
	if t.PlatformLock, err = DecodeScript(fields[0]); err != nil {
		return t, err
	}
	if t.ProtectedUntil, err = molecule.ReadUint64(fields[1]); err != nil {
		return t, err
	}
	if t.SealedUntil, err = molecule.ReadUint64(fields[2]); err != nil {
		return t, err
	}
	if t.DelayCountRemain, err = molecule.ReadUint8(fields[3]); err != nil {
		return t, err
	}
	if t.ToLock, err = DecodeScript(fields[4]); err != nil {
		return t, err
	}
	return t, nil
}
