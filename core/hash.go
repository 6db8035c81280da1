package core

import "golang.org/x/crypto/blake2b"

const (
	HashLength      = 32
	AccountIDLength = 20
)

func Blake2b256(b []byte) [32]byte {
	return blake2b.Sum256(b)
}

// Blake2b256Concat hashes the concatenation of parts without allocating the
// joined buffer.
func Blake2b256Concat(parts ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func Blake160(b []byte) [20]byte {
	sum := Blake2b256(b)
	var out [20]byte
	copy(out[:], sum[:20])
	return out
}

// AccountID derives the 20-byte id of a full account name such as
// "alice.parent.bit".
func AccountID(account []byte) [AccountIDLength]byte {
	return Blake160(account)
}
