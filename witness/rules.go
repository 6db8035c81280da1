package witness

import (
	"bytes"
	"fmt"

	"das.dev/verifier/ast"
	"das.dev/verifier/core"
)

const (
	RulesWitnessVersion = 1
	RulesHashLength     = 10
)

// Rules collects the rule fragments of dataType (price or preserved rules),
// checks them against expectedHash (the first 10 bytes stored in the
// sub-account cell) and decodes them. found is false when the transaction
// carries no fragment and the cell expects none.
func (p *Parser) Rules(dataType core.DataType, expectedHash []byte) (rules []ast.Rule, found bool, err error) {
	if dataType != core.DataTypeSubAccountPriceRule && dataType != core.DataTypeSubAccountPreservedRule {
		return nil, false, core.Errorf(core.HardCodedError, "%s is not a rule witness type", dataType)
	}
	idx := p.index.Of(dataType)
	if len(idx) == 0 {
		if len(expectedHash) == 0 || isZero(expectedHash) {
			return nil, false, nil
		}
		return nil, false, core.Errorf(core.WitnessEmpty, "cell expects %s witnesses but none found", dataType)
	}

	digests := make([][]byte, 0, len(idx))
	for _, i := range idx {
		raw, err := p.ruleFragment(i)
		if err != nil {
			return nil, false, err
		}
		h := core.Blake2b256(raw)
		digests = append(digests, h[:])

		key := fmt.Sprintf("witnesses[%d].rules", i)
		frag, err := ast.DecodeRules(key, raw)
		if err != nil {
			return nil, false, core.Errorf(core.ConfigRulesHasSyntaxError, "%v", err)
		}
		if err := ast.VerifyRulesSize(key, frag, raw); err != nil {
			return nil, false, core.Errorf(core.ConfigRulesHasSyntaxError, "%v", err)
		}
		for _, r := range frag {
			if r.Index != uint32(len(rules)) {
				return nil, false, core.Errorf(core.WitnessParsingError, "%s: rule index %d, expected %d", key, r.Index, len(rules))
			}
			rules = append(rules, r)
		}
	}

	sum := core.Blake2b256Concat(digests...)
	if !bytes.Equal(sum[:RulesHashLength], expectedHash) {
		return nil, false, core.Errorf(core.ConfigRulesHashMismatch, "%s hash 0x%x, cell stores 0x%x", dataType, sum[:RulesHashLength], expectedHash)
	}
	return rules, true, nil
}

func (p *Parser) ruleFragment(i int) ([]byte, error) {
	r := newFieldReader(p.index.Raw(i), headerLen)
	version, err := r.u32("version")
	if err != nil {
		return nil, err
	}
	if version != RulesWitnessVersion {
		return nil, core.Errorf(core.WitnessVersionOrTypeInvalid, "witnesses[%d] rules version %d", i, version)
	}
	return r.next("rules")
}

// RulesHash is the value a sub-account cell stores for a list of encoded
// rule fragments.
func RulesHash(fragments ...[]byte) [RulesHashLength]byte {
	digests := make([][]byte, len(fragments))
	for i, f := range fragments {
		h := core.Blake2b256(f)
		digests[i] = h[:]
	}
	sum := core.Blake2b256Concat(digests...)
	var out [RulesHashLength]byte
	copy(out[:], sum[:])
	return out
}

// EncodeRulesWitness wraps one encoded SubAccountRules fragment.
func EncodeRulesWitness(dataType core.DataType, fragment []byte) []byte {
	return newFieldWriter(dataType).putU32(RulesWitnessVersion).put(fragment).bytes()
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
