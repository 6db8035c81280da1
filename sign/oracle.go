// Package sign verifies the signatures carried by sub-account witnesses.
package sign

import (
	"das.dev/verifier/core"
)

// Oracle checks that signature over digest was produced by the key that
// args identify under lockType. A nil error means the signature is valid.
type Oracle interface {
	Verify(lockType core.DasLockType, digest [32]byte, signature, args []byte) error
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(lockType core.DasLockType, digest [32]byte, signature, args []byte) error

func (f OracleFunc) Verify(lockType core.DasLockType, digest [32]byte, signature, args []byte) error {
	return f(lockType, digest, signature, args)
}

// Multi routes by lock type.
type Multi map[core.DasLockType]Oracle

func (m Multi) Verify(lockType core.DasLockType, digest [32]byte, signature, args []byte) error {
	o, ok := m[lockType]
	if !ok {
		return core.Errorf(core.SignMethodUnsupported, "no verifier for %s", lockType)
	}
	return o.Verify(lockType, digest, signature, args)
}

// Default supports the single-key lock types.
func Default() Multi {
	eth := ETH{}
	return Multi{
		core.DasLockTypeCKBSingle:    CKBSingle{},
		core.DasLockTypeETH:          eth,
		core.DasLockTypeETHTypedData: eth,
		core.DasLockTypeTRON:         TRON{},
	}
}

// Dev accepts every signature. It backs the dev_skip_signature setting.
type Dev struct{}

func (Dev) Verify(core.DasLockType, [32]byte, []byte, []byte) error { return nil }

func sigError(lockType core.DasLockType, format string, args ...any) error {
	return core.Errorf(core.SubAccountSigVerifyError, "%s: "+format, append([]any{lockType}, args...)...)
}
