package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"das.dev/verifier/types"
)

// Fixture is the JSON form of a Transaction used by the CLI and tests.
type Fixture struct {
	Inputs    []FixtureCell   `json:"inputs"`
	Outputs   []FixtureCell   `json:"outputs"`
	CellDeps  []FixtureCell   `json:"cell_deps"`
	Witnesses []hexutil.Bytes `json:"witnesses"`
	Timestamp uint64          `json:"timestamp"`
}

type FixtureCell struct {
	Capacity    uint64         `json:"capacity"`
	Lock        FixtureScript  `json:"lock"`
	Type        *FixtureScript `json:"type,omitempty"`
	Data        hexutil.Bytes  `json:"data"`
	CommittedAt uint64         `json:"committed_at,omitempty"`
}

type FixtureScript struct {
	CodeHash common.Hash   `json:"code_hash"`
	HashType string        `json:"hash_type"`
	Args     hexutil.Bytes `json:"args"`
}

var hashTypeNames = map[string]types.ScriptHashType{
	"data":  types.HashTypeData,
	"type":  types.HashTypeType,
	"data1": types.HashTypeData1,
}

func (s FixtureScript) script() (types.Script, error) {
	ht, ok := hashTypeNames[s.HashType]
	if !ok {
		return types.Script{}, fmt.Errorf("unknown hash_type %q", s.HashType)
	}
	return types.Script{CodeHash: s.CodeHash, HashType: ht, Args: s.Args}, nil
}

func fixtureScript(s types.Script) FixtureScript {
	name := "data"
	for n, ht := range hashTypeNames {
		if ht == s.HashType {
			name = n
		}
	}
	return FixtureScript{CodeHash: common.Hash(s.CodeHash), HashType: name, Args: s.Args}
}

func cellsFromFixture(in []FixtureCell) ([]Cell, error) {
	out := make([]Cell, len(in))
	for i, fc := range in {
		lock, err := fc.Lock.script()
		if err != nil {
			return nil, fmt.Errorf("cell %d lock: %w", i, err)
		}
		out[i] = Cell{Capacity: fc.Capacity, Lock: lock, Data: fc.Data, CommittedAt: fc.CommittedAt}
		if fc.Type != nil {
			t, err := fc.Type.script()
			if err != nil {
				return nil, fmt.Errorf("cell %d type: %w", i, err)
			}
			out[i].Type = &t
		}
	}
	return out, nil
}

func cellsToFixture(in []Cell) []FixtureCell {
	out := make([]FixtureCell, len(in))
	for i, c := range in {
		out[i] = FixtureCell{Capacity: c.Capacity, Lock: fixtureScript(c.Lock), Data: c.Data, CommittedAt: c.CommittedAt}
		if c.Type != nil {
			t := fixtureScript(*c.Type)
			out[i].Type = &t
		}
	}
	return out
}

func (f *Fixture) Transaction() (*Transaction, error) {
	tx := &Transaction{Timestamp: f.Timestamp}
	var err error
	if tx.Inputs, err = cellsFromFixture(f.Inputs); err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	if tx.Outputs, err = cellsFromFixture(f.Outputs); err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	if tx.CellDeps, err = cellsFromFixture(f.CellDeps); err != nil {
		return nil, fmt.Errorf("cell_deps: %w", err)
	}
	tx.Witness = make([][]byte, len(f.Witnesses))
	for i, w := range f.Witnesses {
		tx.Witness[i] = w
	}
	return tx, nil
}

// FixtureOf renders tx back to its JSON form.
func FixtureOf(tx *Transaction) *Fixture {
	f := &Fixture{
		Inputs:    cellsToFixture(tx.Inputs),
		Outputs:   cellsToFixture(tx.Outputs),
		CellDeps:  cellsToFixture(tx.CellDeps),
		Timestamp: tx.Timestamp,
	}
	f.Witnesses = make([]hexutil.Bytes, len(tx.Witness))
	for i, w := range tx.Witness {
		f.Witnesses[i] = w
	}
	return f
}

func ParseFixture(b []byte) (*Transaction, error) {
	var f Fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return f.Transaction()
}
