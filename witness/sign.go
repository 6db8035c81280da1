package witness

import (
	"encoding/binary"

	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

// SignWitness authorizes a batch of creations (mint) or renewals on behalf of
// the parent account. The signed payload is the account list root and the
// expiry.
type SignWitness struct {
	Index           int
	Version         uint32
	Signature       []byte
	SignRole        core.LockRole
	SignType        core.DasLockType
	SignArgs        []byte
	ExpiredAt       uint64
	AccountListRoot [32]byte
}

func DecodeSignWitness(i int, raw []byte, lockArgs []byte) (*SignWitness, error) {
	t, ok := DataTypeOf(raw)
	if !ok || (t != core.DataTypeSubAccountMintSign && t != core.DataTypeSubAccountRenewSign) {
		return nil, core.Errorf(core.WitnessDataTypeDecodingError, "witnesses[%d] is not a mint/renew sign witness", i)
	}
	r := newFieldReader(raw, headerLen)
	w := &SignWitness{Index: i}
	var err error
	if w.Version, err = r.u32("version"); err != nil {
		return nil, err
	}
	sig, err := r.next("signature")
	if err != nil {
		return nil, err
	}
	role, err := r.next("sign_role")
	if err != nil {
		return nil, err
	}
	if w.ExpiredAt, err = r.u64("expired_at"); err != nil {
		return nil, err
	}
	if w.AccountListRoot, err = r.hash("account_list_smt_root"); err != nil {
		return nil, err
	}
	if len(role) != 1 {
		return nil, core.Errorf(core.Encoding, "witnesses[%d] sign_role should be 1 byte, got %d", i, len(role))
	}
	la, err := types.ParseLockArgs(lockArgs)
	if err != nil {
		return nil, err
	}
	w.SignRole = core.LockRoleManager
	if role[0] == byte(core.LockRoleOwner) {
		w.SignRole = core.LockRoleOwner
	}
	typ, args := la.Role(w.SignRole)
	w.SignType = typ
	w.SignArgs = append([]byte(nil), args...)
	w.Signature = append([]byte(nil), sig...)
	return w, nil
}

// SignMessage is the digest the parent signs: blake2b(expired_at || root).
func (w *SignWitness) SignMessage() [32]byte {
	return core.Blake2b256Concat(binary.LittleEndian.AppendUint64(nil, w.ExpiredAt), w.AccountListRoot[:])
}

type SignWitnessInput struct {
	DataType        core.DataType
	Signature       []byte
	SignRole        core.LockRole
	ExpiredAt       uint64
	AccountListRoot [32]byte
}

func EncodeSignWitness(in SignWitnessInput) []byte {
	dt := in.DataType
	if dt == 0 {
		dt = core.DataTypeSubAccountMintSign
	}
	return newFieldWriter(dt).
		putU32(1).
		put(in.Signature).
		put([]byte{byte(in.SignRole)}).
		putU64(in.ExpiredAt).
		put(in.AccountListRoot[:]).
		bytes()
}
