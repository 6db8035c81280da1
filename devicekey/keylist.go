// Package devicekey implements the device-key-list cell script. A key-list
// cell records the WebAuthn-style device keys allowed to act for one das-lock
// owner, and every update adds or removes exactly one key.
package devicekey

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"das.dev/verifier/core"
	"das.dev/verifier/molecule"
	"das.dev/verifier/types"
)

const (
	// KeySize is the molecule size of struct DeviceKey.
	KeySize = 22
	// LockArgsSize is the das-lock args length of a key-list cell: the key
	// bytes as owner and again as manager.
	LockArgsSize = 2 * KeySize

	MinKeys = 1
	MaxKeys = 10

	// BasicCapacity is the smallest capacity a new key-list cell may hold.
	BasicCapacity = 161 * core.OneCKB
	// MaxFee is the exclusive bound on what a key-list cell may pay to miners
	// in one update.
	MaxFee uint64 = 10_000
)

// DeviceKey is struct{main_alg_id byte, sub_alg_id byte, cid Byte10,
// pubkey Byte10}. Cid and Pubkey are truncated hashes computed off-chain.
type DeviceKey struct {
	MainAlgID uint8
	SubAlgID  uint8
	CID       [10]byte
	Pubkey    [10]byte
}

func (k DeviceKey) Bytes() []byte {
	out := make([]byte, 0, KeySize)
	out = append(out, k.MainAlgID, k.SubAlgID)
	out = append(out, k.CID[:]...)
	return append(out, k.Pubkey[:]...)
}

// LockArgs is the das-lock args a cell holding k as its first key must carry.
func (k DeviceKey) LockArgs() []byte {
	b := k.Bytes()
	return append(b, b...)
}

func (k DeviceKey) String() string {
	return fmt.Sprintf("%d/%d:%s:%s", k.MainAlgID, k.SubAlgID, hex.EncodeToString(k.CID[:]), hex.EncodeToString(k.Pubkey[:]))
}

func decodeKey(b []byte) DeviceKey {
	var k DeviceKey
	k.MainAlgID, k.SubAlgID = b[0], b[1]
	copy(k.CID[:], b[2:12])
	copy(k.Pubkey[:], b[12:22])
	return k
}

// CellData is the entity of a key-list cell:
// table{keys fixvec<DeviceKey>, refund_lock Script}.
type CellData struct {
	Keys       []DeviceKey
	RefundLock types.Script
}

func (d *CellData) Encode() []byte {
	keys := make([][]byte, len(d.Keys))
	for i, k := range d.Keys {
		keys[i] = k.Bytes()
	}
	return molecule.Table(molecule.FixVec(keys...), d.RefundLock.Encode())
}

// DecodeCellData fails with KeyListParseError.
func DecodeCellData(b []byte) (*CellData, error) {
	fields, err := molecule.ReadTable(b, 2, true)
	if err != nil {
		return nil, core.Errorf(core.KeyListParseError, "device key list: %v", err)
	}
	items, err := molecule.ReadFixVec(fields[0], KeySize)
	if err != nil {
		return nil, core.Errorf(core.KeyListParseError, "device keys: %v", err)
	}
	refund, err := types.DecodeScript(fields[1])
	if err != nil {
		return nil, core.Errorf(core.KeyListParseError, "refund lock: %v", err)
	}
	d := &CellData{Keys: make([]DeviceKey, len(items)), RefundLock: refund}
	for i, it := range items {
		d.Keys[i] = decodeKey(it)
	}
	return d, nil
}

// Validate checks the key count bounds and that no key appears twice.
func (d *CellData) Validate() error {
	if n := len(d.Keys); n < MinKeys || n > MaxKeys {
		return core.Errorf(core.KeyListNumberIncorrect, "a key list holds %d to %d keys, found %d", MinKeys, MaxKeys, n)
	}
	seen := make(map[DeviceKey]struct{}, len(d.Keys))
	for i, k := range d.Keys {
		if _, ok := seen[k]; ok {
			return core.Errorf(core.DuplicatedKeys, "keys[%d] %s appears twice", i, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// VerifyEdit checks that next differs from prev by exactly one key: either
// one key appended at the tail, or one key removed with the rest kept.
func VerifyEdit(prev, next []DeviceKey) error {
	switch len(next) - len(prev) {
	case 1:
		for i, k := range prev {
			if next[i] != k {
				return core.Errorf(core.UpdateParamsInvalid, "keys[%d] changed from %s to %s, new keys are appended only", i, k, next[i])
			}
		}
		added := next[len(prev)]
		for _, k := range prev {
			if k == added {
				return core.Errorf(core.DuplicatedKeys, "key %s is already in the list", added)
			}
		}
		return nil
	case -1:
		left := make(map[DeviceKey]int, len(prev))
		for _, k := range prev {
			left[k]++
		}
		for i, k := range next {
			if left[k] == 0 {
				return core.Errorf(core.UpdateParamsInvalid, "keys[%d] %s is not in the previous list", i, k)
			}
			left[k]--
		}
		return nil
	default:
		return core.Errorf(core.KeyListNumberIncorrect, "an update adds or removes exactly 1 key, %d -> %d", len(prev), len(next))
	}
}

// VerifyLockArgs checks that args bind the lock to key k.
func VerifyLockArgs(args []byte, k DeviceKey) error {
	if len(args) != LockArgsSize {
		return core.Errorf(core.LockArgLengthIncorrect, "lock args of a key list are %d bytes, found %d", LockArgsSize, len(args))
	}
	if !bytes.Equal(args[:KeySize], k.Bytes()) {
		return core.Errorf(core.InvalidLock, "lock args 0x%x do not start with key %s", args[:KeySize], k)
	}
	if !bytes.Equal(args[:KeySize], args[KeySize:]) {
		return core.Errorf(core.InvalidLock, "owner and manager halves of the lock args differ")
	}
	return nil
}
