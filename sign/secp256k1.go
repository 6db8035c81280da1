package sign

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"das.dev/verifier/core"
)

const signatureLen = 65

// recoverPub returns the uncompressed public key that signed digest. The
// recovery id may be 0/1 or 27/28.
func recoverPub(digest []byte, signature []byte) ([]byte, error) {
	if len(signature) != signatureLen {
		return nil, fmt.Errorf("signature has %d bytes, want %d", len(signature), signatureLen)
	}
	sig := append([]byte(nil), signature...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return nil, err
	}
	return crypto.CompressPubkey(pub), nil
}

// CKBSingle verifies a secp256k1 signature over the digest itself; args are
// blake160 of the compressed public key.
type CKBSingle struct{}

func (CKBSingle) Verify(lockType core.DasLockType, digest [32]byte, signature, args []byte) error {
	pub, err := recoverPub(digest[:], signature)
	if err != nil {
		return sigError(lockType, "%v", err)
	}
	h := core.Blake160(pub)
	if !bytes.Equal(h[:], args) {
		return sigError(lockType, "recovered key 0x%x does not match args", h)
	}
	return nil
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return h.Sum(nil)
}

// ETH verifies a personal_sign signature of the 32-byte digest; args are the
// 20-byte address.
type ETH struct{}

func (ETH) Verify(lockType core.DasLockType, digest [32]byte, signature, args []byte) error {
	return verifyPrefixed(lockType, "\x19Ethereum Signed Message:\n32", digest, signature, args)
}

// TRON is ETH with TRON's message prefix.
type TRON struct{}

func (TRON) Verify(lockType core.DasLockType, digest [32]byte, signature, args []byte) error {
	return verifyPrefixed(lockType, "\x19TRON Signed Message:\n32", digest, signature, args)
}

func verifyPrefixed(lockType core.DasLockType, prefix string, digest [32]byte, signature, args []byte) error {
	msg := keccak([]byte(prefix), digest[:])
	pub, err := recoverPub(msg, signature)
	if err != nil {
		return sigError(lockType, "%v", err)
	}
	key, err := crypto.DecompressPubkey(pub)
	if err != nil {
		return sigError(lockType, "%v", err)
	}
	addr := crypto.PubkeyToAddress(*key)
	if !bytes.Equal(addr[:], args) {
		return sigError(lockType, "recovered %s does not match args 0x%x", addr.Hex(), args)
	}
	return nil
}
