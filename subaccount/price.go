package subaccount

import (
	"fmt"
	"math/bits"

	"das.dev/verifier/ast"
	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

// YearlyCapacity converts a yearly price in USD micro-units into shannons
// at quote (micro-USD per CKB). Prices below quote are scaled before the
// division.
func YearlyCapacity(price, quote uint64) (uint64, error) {
	if quote == 0 {
		return 0, nil
	}
	if price < quote {
		hi, lo := bits.Mul64(price, core.OneCKB)
		q, _ := bits.Div64(hi, lo, quote)
		return q, nil
	}
	return mulU64(price/quote, core.OneCKB)
}

// DasShare is the part of total owed to DAS under rate, never below minimal.
// rate is capped at config.RateBase.
func DasShare(total, minimal, rate uint64) uint64 {
	rate = min(rate, config.RateBase)
	hi, lo := bits.Mul64(total, rate)
	share, _ := bits.Div64(hi, lo, config.RateBase)
	if share < minimal {
		return minimal
	}
	return share
}

func mulU64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, core.Errorf(core.OverflowError, "%d * %d overflows u64", a, b)
	}
	return lo, nil
}

func addU64(a uint64, bs ...uint64) (uint64, error) {
	sum := a
	for _, b := range bs {
		var carry uint64
		if sum, carry = bits.Add64(sum, b, 0); carry != 0 {
			return 0, core.Errorf(core.OverflowError, "sum overflows u64 at %d", b)
		}
	}
	return sum, nil
}

// RuleSet is the decoded price and preserved rules of a custom-rule cell.
type RuleSet struct {
	Price     []ast.Rule
	Preserved []ast.Rule
}

func ruleEnv(sa *types.SubAccount) *ast.Env {
	return &ast.Env{Account: sa.FullAccount(), Chars: sa.Account}
}

// PriceOf checks sa against the preserved rules and returns the yearly price
// of the first matching price rule.
func (rs *RuleSet) PriceOf(index int, sa *types.SubAccount) (*ast.Rule, error) {
	env := ruleEnv(sa)
	if len(rs.Preserved) > 0 {
		r, err := ast.Match(rs.Preserved, env)
		if err != nil {
			return nil, core.Errorf(core.ConfigRulesHasSyntaxError, "witnesses[%d] preserved rules: %v", index, err)
		}
		if r != nil {
			return nil, core.Errorf(core.AccountIsPreserved, "witnesses[%d] %s is preserved by rule %d", index, env.Account, r.Index)
		}
	}
	if len(rs.Price) == 0 {
		return nil, core.Errorf(core.AccountHasNoPrice, "witnesses[%d] %s: no price rules", index, env.Account)
	}
	r, err := ast.Match(rs.Price, env)
	if err != nil {
		return nil, core.Errorf(core.ConfigRulesHasSyntaxError, "witnesses[%d] price rules: %v", index, err)
	}
	if r == nil {
		return nil, core.Errorf(core.AccountHasNoPrice, "witnesses[%d] %s matches no price rule", index, env.Account)
	}
	return r, nil
}

func (rs *RuleSet) String() string {
	return fmt.Sprintf("price=%d preserved=%d", len(rs.Price), len(rs.Preserved))
}
