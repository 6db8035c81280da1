// Package subaccount is the type script of the sub-account cell: the cell
// that commits every child of one parent account under a single SMT root.
package subaccount

import (
	"bytes"
	"encoding/binary"

	"das.dev/verifier/core"
	"das.dev/verifier/witness"
)

// Offsets into the sub-account cell data.
const (
	rootEnd          = 32
	dasProfitEnd     = rootEnd + 8
	ownerProfitEnd   = dasProfitEnd + 8
	flagEnd          = ownerProfitEnd + 1
	statusEnd        = flagEnd + 1
	priceHashEnd     = statusEnd + witness.RulesHashLength
	preservedHashEnd = priceHashEnd + witness.RulesHashLength
)

// Field names accepted by VerifyConsistent.
const (
	FieldSMTRoot            = "smt_root"
	FieldDasProfit          = "das_profit"
	FieldOwnerProfit        = "owner_profit"
	FieldFlag               = "flag"
	FieldStatusFlag         = "status_flag"
	FieldPriceRulesHash     = "price_rules_hash"
	FieldPreservedRulesHash = "preserved_rules_hash"
)

// CellData is the decoded data of a sub-account cell. The status flag and the
// rule hashes exist only when Flag is FlagCustomRule.
type CellData struct {
	SMTRoot            [32]byte
	DasProfit          uint64
	OwnerProfit        uint64
	Flag               core.SubAccountConfigFlag
	Status             core.CustomRuleStatus
	PriceRulesHash     [witness.RulesHashLength]byte
	PreservedRulesHash [witness.RulesHashLength]byte
}

// ParseCellData accepts every historical length of the data. Missing profit
// fields read as zero and a missing flag reads as FlagManual.
func ParseCellData(b []byte) (*CellData, error) {
	if len(b) < rootEnd {
		return nil, core.Errorf(core.InvalidCellData, "sub-account cell data has %d bytes, want at least %d", len(b), rootEnd)
	}
	d := &CellData{}
	copy(d.SMTRoot[:], b[:rootEnd])
	if len(b) >= dasProfitEnd {
		d.DasProfit = binary.LittleEndian.Uint64(b[rootEnd:dasProfitEnd])
	}
	if len(b) >= ownerProfitEnd {
		d.OwnerProfit = binary.LittleEndian.Uint64(b[dasProfitEnd:ownerProfitEnd])
	}
	if len(b) >= flagEnd {
		d.Flag = core.SubAccountConfigFlag(b[ownerProfitEnd])
	}
	if d.Flag == core.FlagCustomRule {
		if len(b) >= statusEnd {
			d.Status = core.CustomRuleStatus(b[flagEnd])
		}
		if len(b) >= priceHashEnd {
			copy(d.PriceRulesHash[:], b[statusEnd:priceHashEnd])
		}
		if len(b) >= preservedHashEnd {
			copy(d.PreservedRulesHash[:], b[priceHashEnd:preservedHashEnd])
		}
	}
	return d, nil
}

func (d *CellData) Bytes() []byte {
	out := make([]byte, 0, preservedHashEnd)
	out = append(out, d.SMTRoot[:]...)
	out = binary.LittleEndian.AppendUint64(out, d.DasProfit)
	out = binary.LittleEndian.AppendUint64(out, d.OwnerProfit)
	out = append(out, byte(d.Flag))
	if d.Flag == core.FlagCustomRule {
		out = append(out, byte(d.Status))
		out = append(out, d.PriceRulesHash[:]...)
		out = append(out, d.PreservedRulesHash[:]...)
	}
	return out
}

// VerifyConsistent fails with SubAccountCellConsistencyError when any field
// outside except differs between in and out.
func VerifyConsistent(in, out *CellData, except ...string) error {
	skip := make(map[string]bool, len(except))
	for _, f := range except {
		skip[f] = true
	}
	checks := []struct {
		name  string
		equal bool
	}{
		{FieldSMTRoot, in.SMTRoot == out.SMTRoot},
		{FieldDasProfit, in.DasProfit == out.DasProfit},
		{FieldOwnerProfit, in.OwnerProfit == out.OwnerProfit},
		{FieldFlag, in.Flag == out.Flag},
		{FieldStatusFlag, in.Status == out.Status},
		{FieldPriceRulesHash, bytes.Equal(in.PriceRulesHash[:], out.PriceRulesHash[:])},
		{FieldPreservedRulesHash, bytes.Equal(in.PreservedRulesHash[:], out.PreservedRulesHash[:])},
	}
	for _, c := range checks {
		if !skip[c.name] && !c.equal {
			return core.Errorf(core.SubAccountCellConsistencyError, "sub-account cell field %s can not be modified", c.name)
		}
	}
	return nil
}
