package smt

import (
	"das.dev/verifier/core"
)

// H256 is a 32-byte key, value or node hash.
type H256 = [32]byte

const Height = 256

var Zero H256

// KeyFromAccountID pads a 20-byte account id with zeros to a tree key.
func KeyFromAccountID(id [core.AccountIDLength]byte) H256 {
	var k H256
	copy(k[:], id[:])
	return k
}

// keyBit returns bit d of key counting from the most significant bit, which is
// the branch taken at depth d below the root.
func keyBit(key H256, d int) byte {
	return (key[d/8] >> (7 - uint(d%8))) & 1
}

func leafHash(key, value H256) H256 {
	if value == Zero {
		return Zero
	}
	var pre [1 + 32 + 32]byte
	pre[0] = 0x00
	copy(pre[1:33], key[:])
	copy(pre[33:], value[:])
	return core.Blake2b256(pre[:])
}

func nodeHash(left, right H256) H256 {
	if left == Zero && right == Zero {
		return Zero
	}
	var pre [1 + 32 + 32]byte
	pre[0] = 0x01
	copy(pre[1:33], left[:])
	copy(pre[33:], right[:])
	return core.Blake2b256(pre[:])
}

// parent combines the node on the path with its sibling at height h.
func parent(key H256, h int, cur, sibling H256) H256 {
	if keyBit(key, Height-1-h) == 0 {
		return nodeHash(cur, sibling)
	}
	return nodeHash(sibling, cur)
}
