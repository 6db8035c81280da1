package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"

	"das.dev/verifier/core"
)

func sampleSubAccount() *SubAccount {
	account := SplitAccountChars("alice", DefaultCharSet)
	full := account.String() + ".parent.bit"
	return &SubAccount{
		Lock: Script{
			CodeHash: [32]byte{1, 2, 3},
			HashType: HashTypeType,
			Args:     LockArgs{OwnerType: core.DasLockTypeETH, OwnerArgs: bytes.Repeat([]byte{0x11}, 20), ManagerType: core.DasLockTypeETH, ManagerArgs: bytes.Repeat([]byte{0x22}, 20)}.Bytes(),
		},
		ID:           core.AccountID([]byte(full)),
		Account:      account,
		Suffix:       ".parent.bit",
		RegisteredAt: 1_700_000_000,
		ExpiredAt:    1_700_000_000 + core.Year,
		Records:      Records{{Type: "address", Key: "60", Label: "", Value: "0xabc", TTL: 300}},
	}
}

func TestSubAccountEncodeDecode(t *testing.T) {
	s := sampleSubAccount()
	s.Approval = AccountApprovalTransfer{
		PlatformLock:     Script{CodeHash: [32]byte{9}, HashType: HashTypeType},
		ProtectedUntil:   10,
		SealedUntil:      20,
		DelayCountRemain: 1,
		ToLock:           Script{CodeHash: [32]byte{9}, HashType: HashTypeType, Args: []byte{1}},
	}.Approval()

	raw := s.Encode()
	got, err := DecodeSubAccount(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version=%d, want 2", got.Version)
	}
	if !bytes.Equal(got.Encode(), raw) {
		t.Fatalf("re-encoding differs")
	}
	if got.FullAccount() != "alice.parent.bit" {
		t.Fatalf("full account=%q", got.FullAccount())
	}
	tr, err := got.Approval.Transfer()
	if err != nil {
		t.Fatalf("transfer params: %v", err)
	}
	if tr.SealedUntil != 20 || tr.DelayCountRemain != 1 || !tr.ToLock.Equal(Script{CodeHash: [32]byte{9}, HashType: HashTypeType, Args: []byte{1}}) {
		t.Fatalf("unexpected transfer params: %+v", tr)
	}
}

func TestSubAccountV1Layout(t *testing.T) {
	s := sampleSubAccount()
	s.Version = 1
	raw := s.Encode()
	got, err := DecodeSubAccount(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != 1 || !got.Approval.IsEmpty() {
		t.Fatalf("v1 decode: version=%d approval=%+v", got.Version, got.Approval)
	}
	if !bytes.Equal(got.Encode(), raw) {
		t.Fatalf("v1 re-encoding differs")
	}
	if s.Hash() == sampleSubAccount().Hash() {
		t.Fatalf("v1 and v2 layouts must hash differently")
	}
}

func TestDecodeSubAccountRejectsTruncated(t *testing.T) {
	raw := sampleSubAccount().Encode()
	if _, err := DecodeSubAccount(raw[:len(raw)-1]); !core.IsCode(err, core.Encoding) {
		t.Fatalf("expected Encoding error, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := sampleSubAccount()
	c := s.Clone()
	c.Lock.Args[0] = 0xff
	c.Records[0].Key = "61"
	if s.Lock.Args[0] == 0xff || s.Records[0].Key == "61" {
		t.Fatalf("clone shares memory with original")
	}
}

func TestParseLockArgs(t *testing.T) {
	owner := bytes.Repeat([]byte{0xaa}, 20)
	manager := bytes.Repeat([]byte{0xbb}, 20)
	raw := append(append(append([]byte{byte(core.DasLockTypeETH)}, owner...), byte(core.DasLockTypeTRON)), manager...)
	la, err := ParseLockArgs(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if la.OwnerType != core.DasLockTypeETH || !bytes.Equal(la.OwnerArgs, owner) {
		t.Fatalf("owner half: %+v", la)
	}
	typ, args := la.Role(core.LockRoleManager)
	if typ != core.DasLockTypeTRON || !bytes.Equal(args, manager) {
		t.Fatalf("manager half: %v %x", typ, args)
	}
	if !bytes.Equal(la.Bytes(), raw) {
		t.Fatalf("Bytes() does not round-trip")
	}

	multi := append(append([]byte{byte(core.DasLockTypeCKBMulti)}, bytes.Repeat([]byte{1}, 28)...), byte(core.DasLockTypeCKBSingle))
	multi = append(multi, bytes.Repeat([]byte{2}, 20)...)
	la, err = ParseLockArgs(multi)
	if err != nil || len(la.OwnerArgs) != 28 {
		t.Fatalf("multisig owner: %+v err=%v", la, err)
	}

	if _, err := ParseLockArgs(raw[:25]); !core.IsCode(err, core.DasLockArgsInvalid) {
		t.Fatalf("expected DasLockArgsInvalid, got %v", err)
	}
}

func TestFormatAddress(t *testing.T) {
	eth, _ := hex.DecodeString("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if got := FormatAddress(core.DasLockTypeETH, eth); got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("eth address=%s", got)
	}

	tron := bytes.Repeat([]byte{0x01}, 20)
	decoded, err := base58.Decode(FormatAddress(core.DasLockTypeTRON, tron))
	if err != nil {
		t.Fatalf("base58 decode: %v", err)
	}
	if len(decoded) != 25 || decoded[0] != 0x41 || !bytes.Equal(decoded[1:21], tron) {
		t.Fatalf("tron payload=%x", decoded)
	}
	first := sha256.Sum256(decoded[:21])
	second := sha256.Sum256(first[:])
	if !bytes.Equal(decoded[21:], second[:4]) {
		t.Fatalf("tron checksum mismatch")
	}

	if got := FormatAddress(core.DasLockTypeCKBSingle, []byte{0xab}); got != "0xab" {
		t.Fatalf("ckb address=%s", got)
	}
}

func TestCharSetNames(t *testing.T) {
	cs, ok := ParseCharSetType("emoji")
	if !ok || cs != CharSetEmoji {
		t.Fatalf("parse emoji: %v %v", cs, ok)
	}
	if CharSetType(11).Defined() {
		t.Fatalf("charset 11 must be undefined")
	}
	chars := SplitAccountChars("a1🎉", DefaultCharSet)
	if chars.Len() != 3 || chars[1].CharSet != CharSetDigit || chars[2].CharSet != CharSetEmoji {
		t.Fatalf("unexpected chars: %+v", chars)
	}
}
