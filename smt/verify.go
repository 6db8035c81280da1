package smt

import (
	"encoding/hex"

	"das.dev/verifier/core"
)

// ComputeRoot folds value at key up the path described by p.
func ComputeRoot(key, value H256, p *Proof) H256 {
	cur := leafHash(key, value)
	next := 0
	for h := 0; h < Height; h++ {
		var sib H256
		if p.has(h) {
			sib = p.Siblings[next]
			next++
		}
		cur = parent(key, h, cur, sib)
	}
	return cur
}

func VerifyMembership(root, key, value H256, proof []byte) error {
	p, err := DecodeProof(proof)
	if err != nil {
		return err
	}
	if got := ComputeRoot(key, value, p); got != root {
		return core.Errorf(core.SMTProofVerifyFailed, "key 0x%s: computed root 0x%s != 0x%s",
			hex.EncodeToString(key[:]), hex.EncodeToString(got[:]), hex.EncodeToString(root[:]))
	}
	return nil
}

// VerifyTransition checks that one proof authenticates prevValue at key under
// prevRoot and newValue at key under currentRoot. Both roots are folded in the
// same walk over the siblings.
func VerifyTransition(prevRoot, currentRoot, key, prevValue, newValue H256, proof []byte) error {
	p, err := DecodeProof(proof)
	if err != nil {
		return err
	}
	before := leafHash(key, prevValue)
	after := leafHash(key, newValue)
	next := 0
	for h := 0; h < Height; h++ {
		var sib H256
		if p.has(h) {
			sib = p.Siblings[next]
			next++
		}
		before = parent(key, h, before, sib)
		after = parent(key, h, after, sib)
	}
	if before != prevRoot {
		return core.Errorf(core.SMTProofVerifyFailed, "key 0x%s: prev root 0x%s != 0x%s",
			hex.EncodeToString(key[:]), hex.EncodeToString(before[:]), hex.EncodeToString(prevRoot[:]))
	}
	if after != currentRoot {
		return core.Errorf(core.SMTProofVerifyFailed, "key 0x%s: current root 0x%s != 0x%s",
			hex.EncodeToString(key[:]), hex.EncodeToString(after[:]), hex.EncodeToString(currentRoot[:]))
	}
	return nil
}

// Transition is one leaf update carried by a witness record.
type Transition struct {
	PrevRoot    H256
	CurrentRoot H256
	Key         H256
	PrevValue   H256
	NewValue    H256
	Proof       []byte
}

// VerifyChain checks every transition and that roots thread from initial to
// final. Nothing is accepted unless the whole chain verifies.
func VerifyChain(initial, final H256, ts []Transition) error {
	root := initial
	for i, t := range ts {
		if t.PrevRoot != root {
			return core.Errorf(core.SMTNewRootMismatch, "transition %d: prev_root does not follow the previous current_root", i)
		}
		if err := VerifyTransition(t.PrevRoot, t.CurrentRoot, t.Key, t.PrevValue, t.NewValue, t.Proof); err != nil {
			return err
		}
		root = t.CurrentRoot
	}
	if root != final {
		return core.Errorf(core.SubAccountWitnessMismatched, "last current_root 0x%s != 0x%s",
			hex.EncodeToString(root[:]), hex.EncodeToString(final[:]))
	}
	return nil
}
