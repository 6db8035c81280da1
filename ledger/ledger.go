// Package ledger is the read-only view of a candidate transaction that the
// scripts validate.
package ledger

import (
	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

type Cell struct {
	Capacity uint64
	Lock     types.Script
	Type     *types.Script
	Data     []byte

	// CommittedAt is the timestamp in seconds of the block that created the
	// cell. Only inputs carry it.
	CommittedAt uint64
}

// HasType reports whether the cell's type script runs the code of s.
func (c *Cell) HasType(s types.Script) bool {
	return c.Type != nil && c.Type.SameCode(s)
}

// Ledger is what the host exposes to a running script.
type Ledger interface {
	Cells(source core.Source) []Cell
	Witnesses() [][]byte
	// Now is the block timestamp in seconds.
	Now() uint64
}

// Transaction is an in-memory Ledger.
type Transaction struct {
	Inputs    []Cell
	Outputs   []Cell
	CellDeps  []Cell
	Witness   [][]byte
	Timestamp uint64
}

func (tx *Transaction) Cells(source core.Source) []Cell {
	switch source {
	case core.SourceInput:
		return tx.Inputs
	case core.SourceOutput:
		return tx.Outputs
	case core.SourceCellDep:
		return tx.CellDeps
	}
	return nil
}

func (tx *Transaction) Witnesses() [][]byte { return tx.Witness }

func (tx *Transaction) Now() uint64 { return tx.Timestamp }

// FindByType returns the indexes of cells in source whose type script runs
// the code of s.
func FindByType(l Ledger, source core.Source, s types.Script) []int {
	var out []int
	cells := l.Cells(source)
	for i := range cells {
		if cells[i].HasType(s) {
			out = append(out, i)
		}
	}
	return out
}

// FindByLock returns the indexes of cells in source locked by exactly s.
func FindByLock(l Ledger, source core.Source, s types.Script) []int {
	var out []int
	for i, c := range l.Cells(source) {
		if c.Lock.Equal(s) {
			out = append(out, i)
		}
	}
	return out
}

// Load returns one cell, failing with IndexOutOfBound.
func Load(l Ledger, source core.Source, i int) (*Cell, error) {
	cells := l.Cells(source)
	if i < 0 || i >= len(cells) {
		return nil, core.Errorf(core.IndexOutOfBound, "%s[%d] out of %d", source, i, len(cells))
	}
	return &cells[i], nil
}

// Capacity sums the capacity of the given cells.
func Capacity(l Ledger, source core.Source, idx []int) uint64 {
	var total uint64
	cells := l.Cells(source)
	for _, i := range idx {
		total += cells[i].Capacity
	}
	return total
}
