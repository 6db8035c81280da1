package types

import (
	"encoding/binary"

	"das.dev/verifier/core"
	"das.dev/verifier/molecule"
)

// Offsets into the raw data of a parent account cell.
const (
	accountCellIDStart      = 32
	accountCellNextStart    = accountCellIDStart + core.AccountIDLength
	accountCellExpiresStart = accountCellNextStart + core.AccountIDLength
	accountCellAccountStart = accountCellExpiresStart + 8
)

// AccountCellData is the fixed-layout part of a parent account cell:
// entity_hash[0:32] id[32:52] next[52:72] expired_at[72:80] account[80:].
type AccountCellData struct {
	EntityHash [32]byte
	ID         [core.AccountIDLength]byte
	Next       [core.AccountIDLength]byte
	ExpiredAt  uint64
	Account    string
}

func ParseAccountCellData(b []byte) (*AccountCellData, error) {
	if len(b) < accountCellAccountStart {
		return nil, core.Errorf(core.InvalidCellData, "account cell data has %d bytes, want at least %d", len(b), accountCellAccountStart)
	}
	d := &AccountCellData{
		ExpiredAt: binary.LittleEndian.Uint64(b[accountCellExpiresStart:accountCellAccountStart]),
		Account:   string(b[accountCellAccountStart:]),
	}
	copy(d.EntityHash[:], b[:accountCellIDStart])
	copy(d.ID[:], b[accountCellIDStart:accountCellNextStart])
	copy(d.Next[:], b[accountCellNextStart:accountCellExpiresStart])
	return d, nil
}

func (d *AccountCellData) Bytes() []byte {
	out := make([]byte, 0, accountCellAccountStart+len(d.Account))
	out = append(out, d.EntityHash[:]...)
	out = append(out, d.ID[:]...)
	out = append(out, d.Next[:]...)
	out = binary.LittleEndian.AppendUint64(out, d.ExpiredAt)
	return append(out, d.Account...)
}

// AccountCell is the witness entity of a parent account.
type AccountCell struct {
	ID                    [core.AccountIDLength]byte
	Account               AccountChars
	RegisteredAt          uint64
	LastTransferAccountAt uint64
	LastEditManagerAt     uint64
	LastEditRecordsAt     uint64
	Status                core.AccountStatus
	Records               Records
	EnableSubAccount      uint8
	RenewSubAccountPrice  uint64
	Approval              AccountApproval
}

const accountCellFieldCount = 10

func (a *AccountCell) Encode() []byte {
	return molecule.Table(
		a.ID[:],
		a.Account.Encode(),
		molecule.Uint64(a.RegisteredAt),
		molecule.Uint64(a.LastTransferAccountAt),
		molecule.Uint64(a.LastEditManagerAt),
		molecule.Uint64(a.LastEditRecordsAt),
		molecule.Uint8(uint8(a.Status)),
		a.Records.Encode(),
		molecule.Uint8(a.EnableSubAccount),
		molecule.Uint64(a.RenewSubAccountPrice),
		a.Approval.Encode(),
	)
}

// DecodeAccountCell accepts entities written before the approval field was
// added.
func DecodeAccountCell(b []byte) (*AccountCell, error) {
	fields, err := molecule.ReadOffsetTable(b)
	if err != nil {
		return nil, err
	}
	if len(fields) < accountCellFieldCount {
		return nil, core.Errorf(core.Encoding, "account cell: %d fields", len(fields))
	}
	a := &AccountCell{}
	if len(fields[0]) != core.AccountIDLength {
		return nil, core.Errorf(core.Encoding, "account cell: id has %d bytes", len(fields[0]))
	}
	copy(a.ID[:], fields[0])
	if a.Account, err = DecodeAccountChars(fields[1]); err != nil {
		return nil, err
	}
	for i, dst := range []*uint64{&a.RegisteredAt, &a.LastTransferAccountAt, &a.LastEditManagerAt, &a.LastEditRecordsAt} {
		if *dst, err = molecule.ReadUint64(fields[2+i]); err != nil {
			return nil, err
		}
	}
	status, err := molecule.ReadUint8(fields[6])
	if err != nil {
		return nil, err
	}
	a.Status = core.AccountStatus(status)
	if a.Records, err = DecodeRecords(fields[7]); err != nil {
		return nil, err
	}
	if a.EnableSubAccount, err = molecule.ReadUint8(fields[8]); err != nil {
		return nil, err
	}
	if a.RenewSubAccountPrice, err = molecule.ReadUint64(fields[9]); err != nil {
		return nil, err
	}
	if len(fields) > accountCellFieldCount {
		if a.Approval, err = DecodeAccountApproval(fields[10]); err != nil {
			return nil, err
		}
	}
	return a, nil
}
