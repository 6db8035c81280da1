package smt

import (
	"math/bits"

	"das.dev/verifier/core"
)

const bitmapSize = Height / 8

// Proof is a compiled merkle path: a bitmap of non-zero siblings and the
// non-zero siblings themselves ordered from the leaf upward.
type Proof struct {
	Bitmap   [bitmapSize]byte
	Siblings []H256
}

func (p *Proof) has(h int) bool {
	return p.Bitmap[h/8]&(1<<uint(h%8)) != 0
}

func (p *Proof) set(h int) {
	p.Bitmap[h/8] |= 1 << uint(h%8)
}

func (p *Proof) Encode() []byte {
	out := make([]byte, 0, bitmapSize+32*len(p.Siblings))
	out = append(out, p.Bitmap[:]...)
	for _, s := range p.Siblings {
		out = append(out, s[:]...)
	}
	return out
}

func DecodeProof(b []byte) (*Proof, error) {
	if len(b) < bitmapSize {
		return nil, core.Errorf(core.SMTProofVerifyFailed, "proof shorter than bitmap (%d)", len(b))
	}
	p := &Proof{}
	copy(p.Bitmap[:], b[:bitmapSize])
	n := 0
	for _, v := range p.Bitmap {
		n += bits.OnesCount8(v)
	}
	if len(b) != bitmapSize+32*n {
		return nil, core.Errorf(core.SMTProofVerifyFailed, "proof has %d bytes for %d siblings", len(b), n)
	}
	p.Siblings = make([]H256, n)
	for i := range p.Siblings {
		copy(p.Siblings[i][:], b[bitmapSize+32*i:])
	}
	return p, nil
}

func proofFromPath(path *[Height]H256) *Proof {
	p := &Proof{}
	for h := 0; h < Height; h++ {
		if path[h] != Zero {
			p.set(h)
			p.Siblings = append(p.Siblings, path[h])
		}
	}
	return p
}
