package witness

import (
	"das.dev/verifier/core"
)

type memoEntry struct {
	done bool
	rec  *Record
	err  error
}

// Parser gives access to the sub-account witnesses of one transaction. It is
// built once per validation and must not be shared between validations.
// Records decode on first access; the memo table is written only by the
// goroutine running the validation.
type Parser struct {
	index *Index
	flag  core.SubAccountConfigFlag

	records []int
	memo    []memoEntry

	MintSignIndex  int
	RenewSignIndex int
}

// NewParser scans witnesses for sub-account records and their companion
// witnesses. It fails with WitnessEmpty when there is no record.
func NewParser(witnesses [][]byte, flag core.SubAccountConfigFlag) (*Parser, error) {
	p, err := newParser(witnesses, flag)
	if err != nil {
		return nil, err
	}
	if len(p.records) == 0 {
		return nil, core.Errorf(core.WitnessEmpty, "no sub-account record in transaction")
	}
	return p, nil
}

// NewRulesParser is NewParser for transactions that carry rule-set or sign
// witnesses but no records, such as config_sub_account.
func NewRulesParser(witnesses [][]byte, flag core.SubAccountConfigFlag) (*Parser, error) {
	return newParser(witnesses, flag)
}

func newParser(witnesses [][]byte, flag core.SubAccountConfigFlag) (*Parser, error) {
	idx, err := Scan(witnesses)
	if err != nil {
		return nil, err
	}
	p := &Parser{
		index:          idx,
		flag:           flag,
		records:        idx.Of(core.DataTypeSubAccount),
		MintSignIndex:  -1,
		RenewSignIndex: -1,
	}
	if s := idx.Of(core.DataTypeSubAccountMintSign); len(s) > 0 {
		p.MintSignIndex = s[len(s)-1]
	}
	if s := idx.Of(core.DataTypeSubAccountRenewSign); len(s) > 0 {
		p.RenewSignIndex = s[len(s)-1]
	}
	for k := 1; k < len(p.records); k++ {
		if p.records[k] != p.records[k-1]+1 {
			return nil, core.Errorf(core.WitnessStructureError, "sub-account witnesses are not contiguous: %d then %d", p.records[k-1], p.records[k])
		}
	}
	p.memo = make([]memoEntry, len(p.records))
	return p, nil
}

func (p *Parser) Flag() core.SubAccountConfigFlag { return p.flag }

func (p *Parser) Index() *Index { return p.index }

// Len is the number of sub-account records.
func (p *Parser) Len() int { return len(p.records) }

// WitnessIndex maps a record position to its witness index.
func (p *Parser) WitnessIndex(k int) int { return p.records[k] }

// Record returns the k-th sub-account record, decoding it on first use.
func (p *Parser) Record(k int) (*Record, error) {
	if k < 0 || k >= len(p.records) {
		return nil, core.Errorf(core.IndexOutOfBound, "record %d out of %d", k, len(p.records))
	}
	e := &p.memo[k]
	if !e.done {
		i := p.records[k]
		e.rec, e.err = DecodeRecord(i, p.index.Raw(i), p.flag)
		e.done = true
	}
	return e.rec, e.err
}

// Each decodes every record in witness order and stops at the first error,
// either from decoding or from fn.
func (p *Parser) Each(fn func(*Record) error) error {
	for k := range p.records {
		rec, err := p.Record(k)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether any record carries one of actions.
func (p *Parser) Contains(actions ...core.SubAccountAction) (bool, error) {
	found := false
	err := p.Each(func(r *Record) error {
		for _, a := range actions {
			if r.Action == a {
				found = true
			}
		}
		return nil
	})
	return found, err
}

// OnlyRecycle reports whether every record is a recycle.
func (p *Parser) OnlyRecycle() (bool, error) {
	if p.Len() == 0 {
		return false, nil
	}
	only := true
	err := p.Each(func(r *Record) error {
		if r.Action != core.SubActionRecycle {
			only = false
		}
		return nil
	})
	return only, err
}

// MintSign returns the mint-sign witness, signed by the parent lock args.
func (p *Parser) MintSign(lockArgs []byte) (*SignWitness, bool, error) {
	if p.MintSignIndex < 0 {
		return nil, false, nil
	}
	w, err := DecodeSignWitness(p.MintSignIndex, p.index.Raw(p.MintSignIndex), lockArgs)
	return w, err == nil, err
}

func (p *Parser) RenewSign(lockArgs []byte) (*SignWitness, bool, error) {
	if p.RenewSignIndex < 0 {
		return nil, false, nil
	}
	w, err := DecodeSignWitness(p.RenewSignIndex, p.index.Raw(p.RenewSignIndex), lockArgs)
	return w, err == nil, err
}
