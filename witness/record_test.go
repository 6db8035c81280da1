package witness

import (
	"bytes"
	"encoding/binary"
	"testing"

	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

func testArgs() []byte {
	return types.LockArgs{
		OwnerType:   core.DasLockTypeETH,
		OwnerArgs:   bytes.Repeat([]byte{0x01}, 20),
		ManagerType: core.DasLockTypeETH,
		ManagerArgs: bytes.Repeat([]byte{0x02}, 20),
	}.Bytes()
}

func testSubAccount() *types.SubAccount {
	return &types.SubAccount{
		Lock:         types.Script{CodeHash: [32]byte{0x11}, HashType: types.HashTypeType, Args: testArgs()},
		ID:           core.AccountID([]byte("alice.parent.bit")),
		Account:      types.SplitAccountChars("alice", types.DefaultCharSet),
		Suffix:       ".parent.bit",
		RegisteredAt: 100,
		ExpiredAt:    200,
		Version:      2,
	}
}

func testRecord(action core.SubAccountAction, key string, value []byte) RecordInput {
	return RecordInput{
		Version:       RecordVersion2,
		Action:        action,
		Signature:     []byte{0xaa, 0xbb},
		SignRole:      []byte{byte(core.LockRoleOwner)},
		PrevRoot:      [32]byte{0x01},
		CurrentRoot:   [32]byte{0x02},
		Proof:         []byte{0x4c, 0x00},
		SubAccount:    testSubAccount(),
		EditKey:       []byte(key),
		EditValue:     value,
		SignExpiredAt: 300,
	}
}

func mustCode(t *testing.T, err error, code core.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !core.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func u64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func TestDecodeRecordV2(t *testing.T) {
	in := testRecord(core.SubActionEdit, EditKeyExpiredAt, u64(500))
	rec, err := DecodeRecord(4, EncodeRecord(in), core.FlagManual)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Index != 4 || rec.Version != RecordVersion2 || rec.Action != core.SubActionEdit {
		t.Fatalf("header mismatch: %+v", rec)
	}
	if rec.PrevRoot != in.PrevRoot || rec.CurrentRoot != in.CurrentRoot {
		t.Fatalf("roots mismatch")
	}
	if !bytes.Equal(rec.Signature, in.Signature) || !bytes.Equal(rec.Proof, in.Proof) {
		t.Fatalf("signature or proof mismatch")
	}
	if rec.SignExpiredAt != 300 {
		t.Fatalf("sign_expired_at = %d", rec.SignExpiredAt)
	}
	if !rec.HasSignRole || rec.SignRole != core.LockRoleOwner || rec.SignType != core.DasLockTypeETH {
		t.Fatalf("sign info mismatch: %+v", rec)
	}
	if !bytes.Equal(rec.SignArgs, bytes.Repeat([]byte{0x01}, 20)) {
		t.Fatalf("owner sign args = %x", rec.SignArgs)
	}
	if rec.EditValue.Kind != EditExpiredAt || rec.EditValue.ExpiredAt != 500 {
		t.Fatalf("edit value = %+v", rec.EditValue)
	}
	if !types.EqualEncoded(rec.SubAccount, in.SubAccount) {
		t.Fatalf("entity mismatch")
	}
}

func TestDecodeRecordV1InfersAction(t *testing.T) {
	create := testRecord("", "", nil)
	create.Version = RecordVersion1
	rec, err := DecodeRecord(0, EncodeRecord(create), core.FlagManual)
	if err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if rec.Action != core.SubActionCreate {
		t.Fatalf("empty edit_key: action %s, want create", rec.Action)
	}

	edit := testRecord("", EditKeyOwner, testArgs())
	edit.Version = RecordVersion1
	rec, err = DecodeRecord(0, EncodeRecord(edit), core.FlagManual)
	if err != nil {
		t.Fatalf("decode edit: %v", err)
	}
	if rec.Action != core.SubActionEdit || rec.EditValue.Kind != EditOwner {
		t.Fatalf("owner edit: action %s kind %s", rec.Action, rec.EditValue.Kind)
	}
	if rec.SignExpiredAt != 0 {
		t.Fatalf("v1 record has sign_expired_at %d", rec.SignExpiredAt)
	}
}

func TestDecodeRecordVersion(t *testing.T) {
	in := testRecord(core.SubActionEdit, EditKeyOwner, testArgs())
	in.Version = 3
	_, err := DecodeRecord(0, EncodeRecord(in), core.FlagManual)
	mustCode(t, err, core.WitnessVersionOrTypeInvalid)

	// A version field that is not 4 bytes wide.
	raw := newFieldWriter(core.DataTypeSubAccount).
		put(nil).put(nil).put(make([]byte, 32)).put(make([]byte, 32)).put(nil).
		putU64(2).
		bytes()
	_, err = DecodeRecord(0, raw, core.FlagManual)
	mustCode(t, err, core.WitnessStructureError)
}

func TestDecodeRecordTruncated(t *testing.T) {
	raw := EncodeRecord(testRecord(core.SubActionEdit, EditKeyExpiredAt, u64(500)))
	for n := headerLen; n < len(raw); n++ {
		_, err := DecodeRecord(0, raw[:n], core.FlagManual)
		if !core.IsCode(err, core.WitnessStructureError) {
			t.Fatalf("truncated to %d of %d bytes: got %v", n, len(raw), err)
		}
	}
	_, err := DecodeRecord(0, raw[:headerLen-1], core.FlagManual)
	mustCode(t, err, core.WitnessDataTypeDecodingError)
}

func TestDecodeRecordUnknownAction(t *testing.T) {
	_, err := DecodeRecord(0, EncodeRecord(testRecord("burn", "", nil)), core.FlagManual)
	mustCode(t, err, core.WitnessStructureError)
}

func TestEditValueTyping(t *testing.T) {
	records := types.Records{{Type: "address", Key: "eth", Value: "0x01", TTL: 300}}
	channel := append(bytes.Repeat([]byte{0x07}, 20), u64(9)...)
	cases := []struct {
		name   string
		action core.SubAccountAction
		key    string
		value  []byte
		flag   core.SubAccountConfigFlag
		kind   EditValueKind
		code   core.ErrorCode
	}{
		{"owner", core.SubActionEdit, EditKeyOwner, testArgs(), core.FlagManual, EditOwner, ""},
		{"manager", core.SubActionEdit, EditKeyManager, testArgs(), core.FlagManual, EditManager, ""},
		{"records", core.SubActionEdit, EditKeyRecords, records.Encode(), core.FlagManual, EditRecords, ""},
		{"unknown key", core.SubActionEdit, "nickname", []byte("bob"), core.FlagManual, EditNone, ""},
		{"short expired_at", core.SubActionEdit, EditKeyExpiredAt, []byte{1}, core.FlagManual, 0, core.WitnessStructureError},
		{"broken records", core.SubActionEdit, EditKeyRecords, []byte{1, 2}, core.FlagManual, 0, core.WitnessStructureError},
		{"manual proof", core.SubActionCreate, EditKeyManual, []byte{0x4c}, core.FlagManual, EditProof, ""},
		{"manual without proof", core.SubActionCreate, EditKeyManual, nil, core.FlagManual, 0, core.WitnessEditValueError},
		{"channel", core.SubActionCreate, EditKeyCustomRule, channel, core.FlagCustomRule, EditChannel, ""},
		{"channel on manual cell", core.SubActionCreate, EditKeyCustomRule, channel, core.FlagManual, 0, core.WitnessEditKeyInvalid},
		{"short channel", core.SubActionCreate, EditKeyCustomRule, channel[:27], core.FlagCustomRule, 0, core.WitnessEditValueError},
		{"renew", core.SubActionRenew, EditKeyManual, u64(1), core.FlagManual, EditExpiredAt, ""},
		{"renew without expiry", core.SubActionRenew, EditKeyManual, []byte{1, 2}, core.FlagManual, 0, core.NewExpiredAtIsRequired},
		{"recycle with key", core.SubActionRecycle, EditKeyOwner, nil, core.FlagManual, 0, core.WitnessEditKeyInvalid},
		{"approval wrong key", core.SubActionCreateApproval, EditKeyOwner, nil, core.FlagManual, 0, core.WitnessEditKeyInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := parseEditValue(tc.action, []byte(tc.key), tc.value, tc.flag)
			if tc.code != "" {
				mustCode(t, err, tc.code)
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if ev.Kind != tc.kind {
				t.Fatalf("kind %s, want %s", ev.Kind, tc.kind)
			}
		})
	}

	ev, err := parseEditValue(core.SubActionCreate, []byte(EditKeyCustomRule), channel, core.FlagCustomRule)
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	if ev.Price != 9 || !bytes.Equal(ev.ChannelID, channel[:20]) {
		t.Fatalf("channel = %x price %d", ev.ChannelID, ev.Price)
	}
}

func TestSignRole(t *testing.T) {
	manager := testRecord(core.SubActionEdit, EditKeyOwner, testArgs())
	manager.SignRole = []byte{byte(core.LockRoleManager)}
	rec, err := DecodeRecord(0, EncodeRecord(manager), core.FlagManual)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.SignRole != core.LockRoleManager || !bytes.Equal(rec.SignArgs, bytes.Repeat([]byte{0x02}, 20)) {
		t.Fatalf("manager sign args = %x", rec.SignArgs)
	}

	wide := testRecord(core.SubActionEdit, EditKeyOwner, testArgs())
	wide.SignRole = []byte{0, 0}
	_, err = DecodeRecord(0, EncodeRecord(wide), core.FlagManual)
	mustCode(t, err, core.Encoding)

	unsigned := testRecord(core.SubActionFulfillApproval, "", nil)
	unsigned.SignRole = nil
	rec, err = DecodeRecord(0, EncodeRecord(unsigned), core.FlagManual)
	if err != nil {
		t.Fatalf("unsigned fulfill: %v", err)
	}
	if rec.HasSignRole {
		t.Fatalf("unsigned fulfill reports a sign role")
	}

	create := testRecord(core.SubActionCreate, EditKeyManual, []byte{0x4c})
	create.SignRole = nil
	if _, err := DecodeRecord(0, EncodeRecord(create), core.FlagManual); err != nil {
		t.Fatalf("create needs no sign role: %v", err)
	}
}

func TestParserScan(t *testing.T) {
	action := EncodeActionData(core.ActionUpdateSubAccount, nil)
	rec := EncodeRecord(testRecord(core.SubActionEdit, EditKeyOwner, testArgs()))
	lockSig := []byte{0x55, 0x00, 0x00, 0x00}

	p, err := NewParser([][]byte{lockSig, action, rec, rec}, core.FlagManual)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	if p.Len() != 2 || p.WitnessIndex(0) != 2 || p.WitnessIndex(1) != 3 {
		t.Fatalf("records at %d,%d of %d", p.WitnessIndex(0), p.WitnessIndex(1), p.Len())
	}


	mint := EncodeSignWitness(SignWitnessInput{ExpiredAt: 1})
	_, err = NewParser([][]byte{action, rec, mint, rec}, core.FlagManual)
	mustCode(t, err, core.WitnessStructureError)

	_, err = NewParser([][]byte{action, lockSig, rec}, core.FlagManual)
	mustCode(t, err, core.WitnessStructureError)

	if _, err := p.Record(2); !core.IsCode(err, core.IndexOutOfBound) {
		t.Fatalf("record 2: %v", err)
	}
}

func TestParserNeedsRecords(t *testing.T) {
	action := EncodeActionData(core.ActionUpdateSubAccount, nil)
	mint := EncodeSignWitness(SignWitnessInput{DataType: core.DataTypeSubAccountMintSign, ExpiredAt: 1})
	renew := EncodeSignWitness(SignWitnessInput{DataType: core.DataTypeSubAccountRenewSign, ExpiredAt: 1})
	rules := EncodeRulesWitness(core.DataTypeSubAccountPriceRule, nil)
	preserved := EncodeRulesWitness(core.DataTypeSubAccountPreservedRule, nil)

	for name, ws := range map[string][][]byte{
		"action only":    {action},
		"mint sign":      {action, mint},
		"renew sign":     {action, renew},
		"rule sets":      {action, rules, preserved},
		"all companions": {action, mint, renew, rules, preserved},
	} {
		_, err := NewParser(ws, core.FlagCustomRule)
		if !core.IsCode(err, core.WitnessEmpty) {
			t.Fatalf("%s: expected WitnessEmpty, got %v", name, err)
		}
	}

	p, err := NewRulesParser([][]byte{action, mint, rules}, core.FlagCustomRule)
	if err != nil {
		t.Fatalf("rules parser: %v", err)
	}
	if p.Len() != 0 || p.MintSignIndex != 1 {
		t.Fatalf("rules parser: %d records, mint sign at %d", p.Len(), p.MintSignIndex)
	}
}

func TestParserDecodesOnce(t *testing.T) {
	raw := EncodeRecord(testRecord(core.SubActionEdit, EditKeyOwner, testArgs()))
	p, err := NewParser([][]byte{raw}, core.FlagManual)
	if err != nil {
		t.Fatalf("parser: %v", err)
	}
	first, err := p.Record(0)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := p.Record(0)
	if err != nil {
		t.Fatalf("record again: %v", err)
	}
	if first != second {
		t.Fatalf("second access decoded again")
	}
	fresh, err := DecodeRecord(0, raw, core.FlagManual)
	if err != nil {
		t.Fatalf("fresh decode: %v", err)
	}
	if !first.Equal(fresh) {
		t.Fatalf("memoized record differs from a fresh decode")
	}

	found, err := p.Contains(core.SubActionEdit)
	if err != nil || !found {
		t.Fatalf("contains edit: %v %v", found, err)
	}
	only, err := p.OnlyRecycle()
	if err != nil || only {
		t.Fatalf("only recycle: %v %v", only, err)
	}
}
