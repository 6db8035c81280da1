package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"das.dev/verifier/core"
	"das.dev/verifier/molecule"
)

type ScriptHashType uint8

const (
	HashTypeData  ScriptHashType = 0
	HashTypeType  ScriptHashType = 1
	HashTypeData1 ScriptHashType = 2
)

// Script is a lock or type script of a cell.
type Script struct {
	CodeHash [32]byte
	HashType ScriptHashType
	Args     []byte
}

func (s Script) Encode() []byte {
	return molecule.Table(s.CodeHash[:], molecule.Uint8(uint8(s.HashType)), molecule.Bytes(s.Args))
}

func DecodeScript(b []byte) (Script, error) {
	fields, err := molecule.ReadTable(b, 3, false)
	if err != nil {
		return Script{}, err
	}
	codeHash, err := molecule.ReadByte32(fields[0])
	if err != nil {
		return Script{}, err
	}
	hashType, err := molecule.ReadUint8(fields[1])
	if err != nil {
		return Script{}, err
	}
	args, err := molecule.ReadBytes(fields[2])
	if err != nil {
		return Script{}, err
	}
	return Script{CodeHash: codeHash, HashType: ScriptHashType(hashType), Args: append([]byte(nil), args...)}, nil
}

func (s Script) Hash() [32]byte {
	return core.Blake2b256(s.Encode())
}

func (s Script) Equal(o Script) bool {
	return s.SameCode(o) && bytes.Equal(s.Args, o.Args)
}

// SameCode reports whether both scripts run the same code, ignoring args.
func (s Script) SameCode(o Script) bool {
	return s.CodeHash == o.CodeHash && s.HashType == o.HashType
}

func (s Script) IsZero() bool {
	return s.CodeHash == [32]byte{} && s.HashType == 0 && len(s.Args) == 0
}

func (s Script) String() string {
	return fmt.Sprintf("Script{code_hash: 0x%s, hash_type: %d, args: 0x%s}",
		hex.EncodeToString(s.CodeHash[:]), s.HashType, hex.EncodeToString(s.Args))
}

// ParseCodeHash decodes a 0x-prefixed or bare 32-byte hex string.
func ParseCodeHash(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("code hash must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
