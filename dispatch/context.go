package dispatch

import (
	"go.uber.org/zap"

	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/ledger"
	"das.dev/verifier/sign"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

// Env is what the host supplies besides the transaction itself.
type Env struct {
	Config config.Config
	Oracle sign.Oracle
	Log    *zap.Logger
}

// CellRef is a cell together with where it was loaded from.
type CellRef struct {
	Index  int
	Source core.Source
	*ledger.Cell
}

// Context is built once per invocation and discarded afterwards. Inner cells
// carry the running script as their type, outer cells are everything else.
type Context struct {
	Env

	Ledger    ledger.Ledger
	Script    types.Script
	Witnesses *witness.Index
	Action    *witness.ActionData
	Now       uint64

	InputInner  []CellRef
	InputOuter  []CellRef
	OutputInner []CellRef
	OutputOuter []CellRef
}

// NewContext scans the witnesses of l, decodes the action witness and
// partitions the inputs and outputs by script. A transaction without an
// action witness fails with ActionNotSupported.
func NewContext(l ledger.Ledger, script types.Script, env Env) (*Context, error) {
	if env.Log == nil {
		env.Log = zap.NewNop()
	}
	if env.Oracle == nil {
		env.Oracle = sign.Default()
	}
	idx, err := witness.Scan(l.Witnesses())
	if err != nil {
		return nil, err
	}
	action, err := idx.ActionData()
	if core.IsCode(err, core.WitnessEmpty) {
		return nil, core.Errorf(core.ActionNotSupported, "transaction declares no action")
	}
	if err != nil {
		return nil, err
	}
	ctx := &Context{
		Env:       env,
		Ledger:    l,
		Script:    script,
		Witnesses: idx,
		Action:    action,
		Now:       l.Now(),
	}
	ctx.InputInner, ctx.InputOuter = partition(l, core.SourceInput, script)
	ctx.OutputInner, ctx.OutputOuter = partition(l, core.SourceOutput, script)
	return ctx, nil
}

func partition(l ledger.Ledger, source core.Source, script types.Script) (inner, outer []CellRef) {
	cells := l.Cells(source)
	for i := range cells {
		ref := CellRef{Index: i, Source: source, Cell: &cells[i]}
		if cells[i].HasType(script) {
			inner = append(inner, ref)
		} else {
			outer = append(outer, ref)
		}
	}
	return inner, outer
}

// Entity returns the entity witness of dataType bound to ref's data.
func (ctx *Context) Entity(dataType core.DataType, ref CellRef) ([]byte, error) {
	e, err := ctx.Witnesses.Entity(dataType, ref.Source, ref.Index, ref.Data)
	if err != nil {
		return nil, err
	}
	return e.Entity, nil
}

// FindByType returns the cells in source whose type runs the code of s.
func (ctx *Context) FindByType(source core.Source, s types.Script) []CellRef {
	cells := ctx.Ledger.Cells(source)
	var out []CellRef
	for _, i := range ledger.FindByType(ctx.Ledger, source, s) {
		out = append(out, CellRef{Index: i, Source: source, Cell: &cells[i]})
	}
	return out
}

// RequireInner checks the number and positions of this script's cells.
func (ctx *Context) RequireInner(inputs, outputs []int) error {
	if err := positions(ctx.InputInner, inputs); err != nil {
		return err
	}
	return positions(ctx.OutputInner, outputs)
}

func positions(refs []CellRef, want []int) error {
	if len(refs) != len(want) {
		return core.Errorf(core.InvalidTransactionStructure, "expected %d cells of this script, found %d", len(want), len(refs))
	}
	for i, r := range refs {
		if r.Index != want[i] {
			return core.Errorf(core.InvalidTransactionStructure, "%s[%d] should be at %s[%d]", r.Source, r.Index, r.Source, want[i])
		}
	}
	return nil
}
