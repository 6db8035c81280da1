package subaccount

import (
	"bytes"

	"das.dev/verifier/ast"
	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/dispatch"
	"das.dev/verifier/ledger"
	"das.dev/verifier/smt"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

// Registry binds the transaction actions the sub-account cell takes part in.
func Registry() *dispatch.Registry {
	return dispatch.NewRegistry().
		Register(core.ActionEnableSubAccount, enableSubAccount).
		Register(core.ActionUpdateSubAccount, updateSubAccount).
		Register(core.ActionCollectSubAccountProfit, collectSubAccountProfit).
		Register(core.ActionConfigSubAccount, configSubAccount)
}

// Verify runs the sub-account cell script over l.
func Verify(l ledger.Ledger, env dispatch.Env) error {
	ctx, err := dispatch.NewContext(l, config.Script(env.Config.Scripts.SubAccountCell), env)
	if err != nil {
		return err
	}
	return Registry().Run(ctx)
}

func enableSubAccount() *dispatch.Action {
	var ref dispatch.CellRef
	return dispatch.NewAction(core.ActionEnableSubAccount).
		Add("new sub-account cell", func(ctx *dispatch.Context) error {
			if len(ctx.InputInner) != 0 || len(ctx.OutputInner) != 1 {
				return core.Errorf(core.InvalidTransactionStructure, "enable_sub_account creates exactly 1 sub-account cell, found %d in inputs and %d in outputs", len(ctx.InputInner), len(ctx.OutputInner))
			}
			ref = ctx.OutputInner[0]
			d, err := ParseCellData(ref.Data)
			if err != nil {
				return err
			}
			if d.SMTRoot != smt.Zero || d.DasProfit != 0 || d.OwnerProfit != 0 || d.Flag != core.FlagManual {
				return core.Errorf(core.SubAccountInitialValueError, "a new sub-account cell starts with an empty root, no profit and the manual flag")
			}
			if ref.Capacity < ctx.Config.SubAccount.BasicCapacity {
				return core.Errorf(core.SubAccountCellCapacityError, "outputs[%d] capacity %d is below basic capacity %d", ref.Index, ref.Capacity, ctx.Config.SubAccount.BasicCapacity)
			}
			return nil
		}).
		Add("parent switch", func(ctx *dispatch.Context) error {
			script := config.Script(ctx.Config.Scripts.AccountCellType)
			ins, outs := ctx.FindByType(core.SourceInput, script), ctx.FindByType(core.SourceOutput, script)
			if len(ins) != 1 || len(outs) != 1 {
				return core.Errorf(core.InvalidTransactionStructure, "expected 1 parent account cell in inputs and outputs, found %d and %d", len(ins), len(outs))
			}
			before, err := accountEntity(ctx, ins[0])
			if err != nil {
				return err
			}
			after, err := accountEntity(ctx, outs[0])
			if err != nil {
				return err
			}
			if before.EnableSubAccount != 0 {
				return core.Errorf(core.InvalidTransactionStructure, "parent %s has already enabled sub-accounts", before.Account)
			}
			if after.EnableSubAccount != 1 {
				return core.Errorf(core.SubAccountFeatureNotEnabled, "parent %s does not switch sub-accounts on", after.Account)
			}
			if !bytes.Equal(ref.Type.Args, after.ID[:]) {
				return core.Errorf(core.SubAccountCellAccountIdError, "sub-account cell type args 0x%x do not name parent 0x%x", ref.Type.Args, after.ID)
			}
			return nil
		})
}

func accountEntity(ctx *dispatch.Context, ref dispatch.CellRef) (*types.AccountCell, error) {
	raw, err := ctx.Entity(core.DataTypeAccountCell, ref)
	if err != nil {
		return nil, err
	}
	a, err := types.DecodeAccountCell(raw)
	if err != nil {
		return nil, core.Errorf(core.WitnessEntityDecodingError, "%s[%d] account cell: %v", ref.Source, ref.Index, err)
	}
	return a, nil
}

func collectSubAccountProfit() *dispatch.Action {
	var (
		in, out         dispatch.CellRef
		inData, outData *CellData
	)
	return dispatch.NewAction(core.ActionCollectSubAccountProfit).
		Add("sub-account cells", func(ctx *dispatch.Context) error {
			var err error
			in, out, inData, outData, err = loadCells(ctx)
			return err
		}).
		Add("consistency", func(*dispatch.Context) error {
			return VerifyConsistent(inData, outData, FieldDasProfit, FieldOwnerProfit)
		}).
		Add("parent account", func(ctx *dispatch.Context) error {
			_, err := loadParent(ctx, in)
			return err
		}).
		Add("collected profit", func(ctx *dispatch.Context) error {
			if inData.DasProfit == 0 && inData.OwnerProfit == 0 {
				return core.Errorf(core.InvalidTransactionStructure, "there is no profit to collect")
			}
			need, err := addU64(inData.DasProfit, inData.OwnerProfit)
			if err != nil {
				return err
			}
			if in.Capacity < need {
				return core.Errorf(core.SubAccountCellCapacityError, "inputs[%d] capacity %d is below its profits %d", in.Index, in.Capacity, need)
			}
			expected := in.Capacity
			collected := false
			for _, p := range []struct {
				name   string
				before uint64
				after  uint64
			}{
				{FieldDasProfit, inData.DasProfit, outData.DasProfit},
				{FieldOwnerProfit, inData.OwnerProfit, outData.OwnerProfit},
			} {
				switch {
				case p.before > 0 && p.after == 0:
					expected -= p.before
					collected = true
				case p.before != p.after:
					return core.Errorf(core.SubAccountCollectProfitError, "%s must be collected in full: %d -> %d", p.name, p.before, p.after)
				}
			}
			if !collected {
				return core.Errorf(core.SubAccountCollectProfitError, "no profit is collected")
			}
			fee := ctx.Config.SubAccount.CommonFee
			if out.Capacity < expected && expected-out.Capacity > fee {
				return core.Errorf(core.SubAccountCollectProfitError, "outputs[%d] capacity %d, at least %d expected", out.Index, out.Capacity, expected-fee)
			}
			if need, err = addU64(outData.DasProfit, outData.OwnerProfit, ctx.Config.SubAccount.BasicCapacity); err != nil {
				return err
			}
			if out.Capacity < need {
				return core.Errorf(core.SubAccountCellCapacityError, "outputs[%d] capacity %d is below %d", out.Index, out.Capacity, need)
			}
			return nil
		})
}

func configSubAccount() *dispatch.Action {
	var (
		in, out         dispatch.CellRef
		inData, outData *CellData
	)
	return dispatch.NewAction(core.ActionConfigSubAccount).
		Add("sub-account cells", func(ctx *dispatch.Context) error {
			var err error
			in, out, inData, outData, err = loadCells(ctx)
			return err
		}).
		Add("parent account", func(ctx *dispatch.Context) error {
			_, err := loadParent(ctx, in)
			return err
		}).
		Add("consistency", func(ctx *dispatch.Context) error {
			if err := VerifyConsistent(inData, outData, FieldFlag, FieldStatusFlag, FieldPriceRulesHash, FieldPreservedRulesHash); err != nil {
				return err
			}
			if fee := ctx.Config.SubAccount.CommonFee; out.Capacity+fee < in.Capacity {
				return core.Errorf(core.TxFeeSpentError, "sub-account cell pays %d shannon of fee, at most %d allowed", in.Capacity-out.Capacity, fee)
			}
			return nil
		}).
		Add("new config", func(ctx *dispatch.Context) error {
			switch outData.Flag {
			case core.FlagManual:
				if len(out.Data) > flagEnd {
					return core.Errorf(core.ConfigManualInvalid, "manual config carries %d bytes of custom rule fields", len(out.Data)-flagEnd)
				}
				return nil
			case core.FlagCustomRule:
				return verifyRulesConfig(ctx, outData)
			default:
				return core.Errorf(core.ConfigFlagInvalid, "flag %s is not supported", outData.Flag)
			}
		})
}

// verifyRulesConfig decodes the rule witnesses a custom-rule config points
// at. Rules that are switched on must be able to price something.
func verifyRulesConfig(ctx *dispatch.Context, d *CellData) error {
	if len(ctx.OutputInner[0].Data) < preservedHashEnd {
		return core.Errorf(core.ConfigCustomRuleInvalid, "custom rule config needs %d bytes of cell data", preservedHashEnd)
	}
	empty := [witness.RulesHashLength]byte{}
	var rs RuleSet
	if d.PriceRulesHash != empty || d.PreservedRulesHash != empty {
		p, err := witness.NewRulesParser(ctx.Ledger.Witnesses(), core.FlagCustomRule)
		if err != nil {
			return err
		}
		if rs.Price, _, err = p.Rules(core.DataTypeSubAccountPriceRule, d.PriceRulesHash[:]); err != nil {
			return err
		}
		if rs.Preserved, _, err = p.Rules(core.DataTypeSubAccountPreservedRule, d.PreservedRulesHash[:]); err != nil {
			return err
		}
	}
	if d.Status == core.CustomRuleOn && !ast.HasEnabled(rs.Price) {
		return core.Errorf(core.ConfigCustomRuleInvalid, "custom rules are on but no price rule is enabled")
	}
	for _, r := range rs.Price {
		if r.Price == 0 {
			return core.Errorf(core.ConfigRulesPriceError, "price rule %d (%s) has no price", r.Index, r.Name)
		}
	}
	return nil
}
