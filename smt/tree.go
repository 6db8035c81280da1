package smt

import (
	"fmt"
)

// NodeStore persists branch nodes by hash and the current leaf values.
type NodeStore interface {
	GetBranch(hash H256) (left, right H256, ok bool, err error)
	PutBranch(hash, left, right H256) error
	GetLeaf(key H256) (H256, error)
	PutLeaf(key, value H256) error
	Root() (H256, error)
	SetRoot(root H256) error
}

// Batcher is implemented by stores that can group the writes of one update.
type Batcher interface {
	Batch(fn func(NodeStore) error) error
}

// Tree builds roots and proofs off-chain over a NodeStore. It is what a
// transaction builder uses to produce the witness fields the verifier checks.
type Tree struct {
	store NodeStore
}

func NewTree(store NodeStore) *Tree {
	return &Tree{store: store}
}

func (t *Tree) Root() (H256, error) {
	return t.store.Root()
}

func (t *Tree) Get(key H256) (H256, error) {
	return t.store.GetLeaf(key)
}

// Prove returns the proof for key against the current root.
func (t *Tree) Prove(key H256) (*Proof, error) {
	path, err := siblings(t.store, key)
	if err != nil {
		return nil, err
	}
	return proofFromPath(path), nil
}

// Update sets key to value and returns the proof valid for both the old and
// the new root together with the new root.
func (t *Tree) Update(key, value H256) (*Proof, H256, error) {
	var (
		proof *Proof
		root  H256
	)
	apply := func(s NodeStore) error {
		path, err := siblings(s, key)
		if err != nil {
			return err
		}
		cur := leafHash(key, value)
		for h := 0; h < Height; h++ {
			var l, r H256
			if keyBit(key, Height-1-h) == 0 {
				l, r = cur, path[h]
			} else {
				l, r = path[h], cur
			}
			cur = nodeHash(l, r)
			if cur != Zero {
				if err := s.PutBranch(cur, l, r); err != nil {
					return err
				}
			}
		}
		if err := s.PutLeaf(key, value); err != nil {
			return err
		}
		if err := s.SetRoot(cur); err != nil {
			return err
		}
		proof, root = proofFromPath(path), cur
		return nil
	}
	var err error
	if b, ok := t.store.(Batcher); ok {
		err = b.Batch(apply)
	} else {
		err = apply(t.store)
	}
	if err != nil {
		return nil, Zero, err
	}
	return proof, root, nil
}

// siblings walks from the root to the leaf of key and returns the sibling at
// every height, indexed from the leaf upward.
func siblings(s NodeStore, key H256) (*[Height]H256, error) {
	root, err := s.Root()
	if err != nil {
		return nil, err
	}
	var path [Height]H256
	cur := root
	for d := 0; d < Height; d++ {
		if cur == Zero {
			break
		}
		l, r, ok, err := s.GetBranch(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("smt: missing branch %x at depth %d", cur[:], d)
		}
		if keyBit(key, d) == 0 {
			path[Height-1-d], cur = r, l
		} else {
			path[Height-1-d], cur = l, r
		}
	}
	return &path, nil
}
