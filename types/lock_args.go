package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"

	"das.dev/verifier/core"
)

const (
	lockArgsSingleLen = 20
	lockArgsMultiLen  = 28
)

// LockArgs are the args of a das-lock: an owner half followed by a manager
// half, each prefixed with its algorithm id.
type LockArgs struct {
	OwnerType   core.DasLockType
	OwnerArgs   []byte
	ManagerType core.DasLockType
	ManagerArgs []byte
}

func argsLen(t core.DasLockType) int {
	if t == core.DasLockTypeCKBMulti {
		return lockArgsMultiLen
	}
	return lockArgsSingleLen
}

func ParseLockArgs(b []byte) (LockArgs, error) {
	var la LockArgs
	if len(b) < 1 {
		return la, core.Errorf(core.DasLockArgsInvalid, "das-lock args empty")
	}
	la.OwnerType = core.DasLockType(b[0])
	ownerEnd := 1 + argsLen(la.OwnerType)
	if len(b) < ownerEnd+1 {
		return la, core.Errorf(core.DasLockArgsInvalid, "das-lock args too short for owner (%d)", len(b))
	}
	la.OwnerArgs = append([]byte(nil), b[1:ownerEnd]...)
	la.ManagerType = core.DasLockType(b[ownerEnd])
	rest := b[ownerEnd+1:]
	if len(rest) < argsLen(la.ManagerType) {
		return la, core.Errorf(core.DasLockArgsInvalid, "das-lock args too short for manager (%d)", len(b))
	}
	la.ManagerArgs = append([]byte(nil), rest...)
	return la, nil
}

func (la LockArgs) Bytes() []byte {
	out := make([]byte, 0, 2+len(la.OwnerArgs)+len(la.ManagerArgs))
	out = append(out, byte(la.OwnerType))
	out = append(out, la.OwnerArgs...)
	out = append(out, byte(la.ManagerType))
	return append(out, la.ManagerArgs...)
}

// Role returns the algorithm and args of one half.
func (la LockArgs) Role(role core.LockRole) (core.DasLockType, []byte) {
	if role == core.LockRoleOwner {
		return la.OwnerType, la.OwnerArgs
	}
	return la.ManagerType, la.ManagerArgs
}

func (la LockArgs) SameOwner(o LockArgs) bool {
	return la.OwnerType == o.OwnerType && bytes.Equal(la.OwnerArgs, o.OwnerArgs)
}

func (la LockArgs) SameManager(o LockArgs) bool {
	return la.ManagerType == o.ManagerType && bytes.Equal(la.ManagerArgs, o.ManagerArgs)
}

// Address renders the human-facing address of one half of the args.
func (la LockArgs) Address(role core.LockRole) string {
	t, args := la.Role(role)
	return FormatAddress(t, args)
}

func FormatAddress(t core.DasLockType, args []byte) string {
	switch t {
	case core.DasLockTypeETH, core.DasLockTypeETHTypedData:
		if len(args) == common.AddressLength {
			return common.BytesToAddress(args).Hex()
		}
	case core.DasLockTypeTRON:
		if len(args) == lockArgsSingleLen {
			return base58Check(0x41, args)
		}
	case core.DasLockTypeDoge:
		if len(args) == lockArgsSingleLen {
			return base58Check(0x1e, args)
		}
	}
	return "0x" + hex.EncodeToString(args)
}

func base58Check(version byte, payload []byte) string {
	b := make([]byte, 0, 1+len(payload)+4)
	b = append(b, version)
	b = append(b, payload...)
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	b = append(b, second[:4]...)
	return base58.Encode(b)
}
