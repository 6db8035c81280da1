package witness

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

const (
	RecordVersion1 uint32 = 1
	RecordVersion2 uint32 = 2

	channelLen = 20 + 8
)

// Edit keys understood by the sub-account script.
const (
	EditKeyManual       = "manual"
	EditKeyCustomScript = "custom_script"
	EditKeyCustomRule   = "custom_rule"
	EditKeyExpiredAt    = "expired_at"
	EditKeyOwner        = "owner"
	EditKeyManager      = "manager"
	EditKeyRecords      = "records"
	EditKeyApproval     = "approval"
)

type EditValueKind uint8

const (
	EditNone EditValueKind = iota
	EditOwner
	EditManager
	EditRecords
	EditProof
	EditChannel
	EditExpiredAt
	EditApproval
)

func (k EditValueKind) String() string {
	switch k {
	case EditNone:
		return "none"
	case EditOwner:
		return "owner"
	case EditManager:
		return "manager"
	case EditRecords:
		return "records"
	case EditProof:
		return "proof"
	case EditChannel:
		return "channel"
	case EditExpiredAt:
		return "expired_at"
	case EditApproval:
		return "approval"
	default:
		return fmt.Sprintf("EditValueKind(%d)", uint8(k))
	}
}

// EditValue is edit_value typed by the record's sub-action and edit_key. Only
// the fields that belong to Kind are set.
type EditValue struct {
	Kind      EditValueKind
	LockArgs  []byte
	Records   types.Records
	ChannelID []byte
	Price     uint64
	ExpiredAt uint64
	Approval  types.AccountApproval
}

// Record is one decoded sub-account witness.
type Record struct {
	Index   int
	Version uint32
	Action  core.SubAccountAction

	Signature     []byte
	HasSignRole   bool
	SignRole      core.LockRole
	SignType      core.DasLockType
	SignArgs      []byte
	SignExpiredAt uint64

	PrevRoot    [32]byte
	CurrentRoot [32]byte
	Proof       []byte

	SubAccount     *types.SubAccount
	EditKey        []byte
	EditValue      EditValue
	EditValueBytes []byte
}

// DecodeRecord parses witness i as a sub-account record. flag is the config
// flag of the sub-account cell, it gates the custom edit keys.
func DecodeRecord(i int, raw []byte, flag core.SubAccountConfigFlag) (*Record, error) {
	t, ok := DataTypeOf(raw)
	if !ok || t != core.DataTypeSubAccount {
		return nil, core.Errorf(core.WitnessDataTypeDecodingError, "witnesses[%d] is not a sub-account record", i)
	}
	r := newFieldReader(raw, headerLen)
	rec := &Record{Index: i}

	signature, err := r.next("signature")
	if err != nil {
		return nil, err
	}
	signRole, err := r.next("sign_role")
	if err != nil {
		return nil, err
	}
	if rec.PrevRoot, err = r.hash("prev_root"); err != nil {
		return nil, err
	}
	if rec.CurrentRoot, err = r.hash("current_root"); err != nil {
		return nil, err
	}
	proof, err := r.next("proof")
	if err != nil {
		return nil, err
	}
	if rec.Version, err = r.u32("version"); err != nil {
		return nil, err
	}
	entity, err := r.next("sub_account")
	if err != nil {
		return nil, err
	}
	editKey, err := r.next("edit_key")
	if err != nil {
		return nil, err
	}
	editValue, err := r.next("edit_value")
	if err != nil {
		return nil, err
	}

	var signExpiredAt []byte
	switch rec.Version {
	case RecordVersion1:
		if len(editKey) == 0 {
			rec.Action = core.SubActionCreate
		} else {
			rec.Action = core.SubActionEdit
		}
	case RecordVersion2:
		action, err := r.next("action")
		if err != nil {
			return nil, err
		}
		a, ok := core.ParseSubAccountAction(string(action))
		if !ok {
			return nil, core.Errorf(core.WitnessStructureError, "witnesses[%d] unknown action %q", i, action)
		}
		rec.Action = a
		if signExpiredAt, err = r.next("sign_expired_at"); err != nil {
			return nil, err
		}
	default:
		return nil, core.Errorf(core.WitnessVersionOrTypeInvalid, "witnesses[%d] record version %d", i, rec.Version)
	}

	rec.Signature = append([]byte(nil), signature...)
	rec.Proof = append([]byte(nil), proof...)
	rec.EditKey = append([]byte(nil), editKey...)
	rec.EditValueBytes = append([]byte(nil), editValue...)

	sa, err := types.DecodeSubAccount(entity)
	if err != nil {
		return nil, core.Errorf(core.WitnessStructureError, "witnesses[%d] sub_account: %v", i, err)
	}
	rec.SubAccount = sa

	if err := rec.parseSignInfo(signRole, signExpiredAt); err != nil {
		return nil, err
	}
	if rec.EditValue, err = parseEditValue(rec.Action, editKey, editValue, flag); err != nil {
		return nil, err
	}
	return rec, nil
}

func (rec *Record) parseSignInfo(signRole, signExpiredAt []byte) error {
	var lockArgs []byte
	canBeEmpty := false
	switch rec.Action {
	case core.SubActionEdit, core.SubActionCreateApproval, core.SubActionDelayApproval:
		lockArgs = rec.SubAccount.Lock.Args
	case core.SubActionRevokeApproval:
		if string(rec.SubAccount.Approval.Action) != types.ApprovalActionTransfer {
			return core.Errorf(core.ApprovalActionUndefined, "witnesses[%d] approval action %q", rec.Index, rec.SubAccount.Approval.Action)
		}
		tr, err := rec.SubAccount.Approval.Transfer()
		if err != nil {
			return core.Errorf(core.WitnessParsingError, "witnesses[%d] approval params: %v", rec.Index, err)
		}
		lockArgs = tr.PlatformLock.Args
	case core.SubActionFulfillApproval:
		lockArgs = rec.SubAccount.Lock.Args
		canBeEmpty = true
	default:
		return nil
	}

	if rec.Version >= RecordVersion2 {
		if len(signExpiredAt) != 8 {
			return core.Errorf(core.WitnessStructureError, "witnesses[%d] sign_expired_at should be 8 bytes", rec.Index)
		}
		rec.SignExpiredAt = binary.LittleEndian.Uint64(signExpiredAt)
	}

	if len(signRole) != 1 {
		if canBeEmpty && len(signRole) == 0 {
			return nil
		}
		return core.Errorf(core.Encoding, "witnesses[%d] sign_role should be 1 byte, got %d", rec.Index, len(signRole))
	}
	la, err := types.ParseLockArgs(lockArgs)
	if err != nil {
		return err
	}
	rec.HasSignRole = true
	rec.SignRole = core.LockRoleManager
	if signRole[0] == byte(core.LockRoleOwner) {
		rec.SignRole = core.LockRoleOwner
	}
	t, args := la.Role(rec.SignRole)
	rec.SignType = t
	rec.SignArgs = append([]byte(nil), args...)
	return nil
}

func parseEditValue(action core.SubAccountAction, key, value []byte, flag core.SubAccountConfigFlag) (EditValue, error) {
	var ev EditValue
	switch action {
	case core.SubActionCreate:
		switch string(key) {
		case EditKeyManual:
			if len(value) == 0 {
				return ev, core.Errorf(core.WitnessEditValueError, "manual edit_value should not be empty")
			}
			ev.Kind = EditProof
		case EditKeyCustomScript:
			if flag != core.FlagCustomScript {
				return ev, core.Errorf(core.WitnessEditKeyInvalid, "flag is %s, custom_script is not allowed", flag)
			}
			if len(value) != 0 {
				return ev, core.Errorf(core.WitnessEditValueError, "custom_script edit_value should be empty")
			}
		case EditKeyCustomRule:
			if flag != core.FlagCustomRule {
				return ev, core.Errorf(core.WitnessEditKeyInvalid, "flag is %s, custom_rule is not allowed", flag)
			}
			if len(value) != channelLen {
				return ev, core.Errorf(core.WitnessEditValueError, "custom_rule edit_value should be %d bytes, got %d", channelLen, len(value))
			}
			ev.Kind = EditChannel
			ev.ChannelID = append([]byte(nil), value[:20]...)
			ev.Price = binary.LittleEndian.Uint64(value[20:])
		}
	case core.SubActionRenew:
		if len(value) < 8 {
			return ev, core.Errorf(core.NewExpiredAtIsRequired, "renew edit_value should start with expired_at")
		}
		ev.Kind = EditExpiredAt
		ev.ExpiredAt = binary.LittleEndian.Uint64(value[:8])
		switch string(key) {
		case EditKeyCustomScript:
			if flag != core.FlagCustomScript {
				return ev, core.Errorf(core.WitnessEditKeyInvalid, "flag is %s, custom_script is not allowed", flag)
			}
		case EditKeyCustomRule:
			if flag != core.FlagCustomRule {
				return ev, core.Errorf(core.WitnessEditKeyInvalid, "flag is %s, custom_rule is not allowed", flag)
			}
			if len(value) != 8+channelLen {
				return ev, core.Errorf(core.WitnessEditValueError, "custom_rule renew edit_value should be %d bytes, got %d", 8+channelLen, len(value))
			}
			ev.ChannelID = append([]byte(nil), value[8:28]...)
			ev.Price = binary.LittleEndian.Uint64(value[28:])
		}
	case core.SubActionEdit:
		switch string(key) {
		case EditKeyOwner:
			ev.Kind = EditOwner
			ev.LockArgs = append([]byte(nil), value...)
		case EditKeyManager:
			ev.Kind = EditManager
			ev.LockArgs = append([]byte(nil), value...)
		case EditKeyRecords:
			rs, err := types.DecodeRecords(value)
			if err != nil {
				return ev, core.Errorf(core.WitnessStructureError, "records edit_value: %v", err)
			}
			ev.Kind = EditRecords
			ev.Records = rs
		case EditKeyExpiredAt:
			if len(value) != 8 {
				return ev, core.Errorf(core.WitnessStructureError, "expired_at edit_value should be 8 bytes")
			}
			ev.Kind = EditExpiredAt
			ev.ExpiredAt = binary.LittleEndian.Uint64(value)
		case EditKeyApproval:
			a, err := types.DecodeAccountApproval(value)
			if err != nil {
				return ev, core.Errorf(core.WitnessStructureError, "approval edit_value: %v", err)
			}
			ev.Kind = EditApproval
			ev.Approval = a
		}
	case core.SubActionCreateApproval, core.SubActionDelayApproval:
		if string(key) != EditKeyApproval {
			return ev, core.Errorf(core.WitnessEditKeyInvalid, "edit_key should be approval, got %q", key)
		}
		a, err := types.DecodeAccountApproval(value)
		if err != nil {
			return ev, core.Errorf(core.WitnessStructureError, "approval edit_value: %v", err)
		}
		ev.Kind = EditApproval
		ev.Approval = a
	case core.SubActionRecycle, core.SubActionRevokeApproval, core.SubActionFulfillApproval:
		if len(key) != 0 || len(value) != 0 {
			return ev, core.Errorf(core.WitnessEditKeyInvalid, "edit_key and edit_value should be empty")
		}
	}
	return ev, nil
}

// Equal reports whether two decoded records carry the same content.
func (rec *Record) Equal(o *Record) bool {
	if rec == nil || o == nil {
		return rec == o
	}
	return rec.Index == o.Index &&
		rec.Version == o.Version &&
		rec.Action == o.Action &&
		rec.SignRole == o.SignRole &&
		rec.HasSignRole == o.HasSignRole &&
		rec.SignExpiredAt == o.SignExpiredAt &&
		rec.PrevRoot == o.PrevRoot &&
		rec.CurrentRoot == o.CurrentRoot &&
		bytes.Equal(rec.Signature, o.Signature) &&
		bytes.Equal(rec.Proof, o.Proof) &&
		bytes.Equal(rec.EditKey, o.EditKey) &&
		bytes.Equal(rec.EditValueBytes, o.EditValueBytes) &&
		types.EqualEncoded(rec.SubAccount, o.SubAccount)
}

// RecordInput is what a transaction builder fills in to produce a record
// witness.
type RecordInput struct {
	Version       uint32
	Action        core.SubAccountAction
	Signature     []byte
	SignRole      []byte
	PrevRoot      [32]byte
	CurrentRoot   [32]byte
	Proof         []byte
	SubAccount    *types.SubAccount
	EditKey       []byte
	EditValue     []byte
	SignExpiredAt uint64
}

func EncodeRecord(in RecordInput) []byte {
	version := in.Version
	if version == 0 {
		version = RecordVersion2
	}
	w := newFieldWriter(core.DataTypeSubAccount).
		put(in.Signature).
		put(in.SignRole).
		put(in.PrevRoot[:]).
		put(in.CurrentRoot[:]).
		put(in.Proof).
		putU32(version).
		put(in.SubAccount.Encode()).
		put(in.EditKey).
		put(in.EditValue)
	if version >= RecordVersion2 {
		w.put([]byte(in.Action)).putU64(in.SignExpiredAt)
	}
	return w.bytes()
}
