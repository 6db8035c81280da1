package subaccount

import (
	"bytes"

	"go.uber.org/zap"

	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/dispatch"
	"das.dev/verifier/ledger"
	"das.dev/verifier/sign"
	"das.dev/verifier/smt"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

// parent is the account whose children the sub-account cell commits. It is
// read from cell_deps.
type parent struct {
	ref     dispatch.CellRef
	data    *types.AccountCellData
	entity  *types.AccountCell
	account string
}

// update carries the state of one update_sub_account invocation. The rules
// of the action run in order and fill it in as they go.
type update struct {
	cfg     config.Config
	dasLock types.Script
	oracle  sign.Oracle

	in, out         dispatch.CellRef
	inData, outData *CellData
	lastUpdatedAt   uint64

	parent *parent
	parser *witness.Parser
	rules  RuleSet

	hasCreate bool
	mintSign  *witness.SignWitness
	renewSign *witness.SignWitness

	// minCreatedExpiredAt bounds the mint signature expiry.
	minCreatedExpiredAt uint64
	transitions         []smt.Transition

	// manualProfit is owed to DAS in full; customProfit is shared with the
	// parent owner, DAS taking at least customMinimal of it.
	manualProfit  uint64
	customProfit  uint64
	customMinimal uint64
}

func (u *update) init(ctx *dispatch.Context) {
	u.cfg = ctx.Config
	u.dasLock = config.Script(ctx.Config.Scripts.DasLock)
	u.oracle = oracleOf(ctx)
}

func oracleOf(ctx *dispatch.Context) sign.Oracle {
	if ctx.Config.SubAccount.DevSkipSignature {
		return sign.Dev{}
	}
	return ctx.Oracle
}

func (u *update) sa() config.SubAccountConfig { return u.cfg.SubAccount }

func loadCells(ctx *dispatch.Context) (in, out dispatch.CellRef, inData, outData *CellData, err error) {
	if err = ctx.RequireInner([]int{0}, []int{0}); err != nil {
		return
	}
	in, out = ctx.InputInner[0], ctx.OutputInner[0]
	if !in.Lock.Equal(out.Lock) {
		err = core.Errorf(core.CellLockCanNotBeModified, "sub-account cell lock can not be modified")
		return
	}
	if !in.Type.Equal(*out.Type) {
		err = core.Errorf(core.CellTypeCanNotBeModified, "sub-account cell type can not be modified")
		return
	}
	if inData, err = ParseCellData(in.Data); err != nil {
		return
	}
	outData, err = ParseCellData(out.Data)
	return
}

func (u *update) loadCells(ctx *dispatch.Context) error {
	u.init(ctx)
	var err error
	u.in, u.out, u.inData, u.outData, err = loadCells(ctx)
	if err != nil {
		return err
	}
	u.lastUpdatedAt = u.in.CommittedAt
	return nil
}

// loadParent finds the parent account cell in cell_deps and binds the
// sub-account cell to it through its type args.
func loadParent(ctx *dispatch.Context, subAccountCell dispatch.CellRef) (*parent, error) {
	deps := ctx.FindByType(core.SourceCellDep, config.Script(ctx.Config.Scripts.AccountCellType))
	if len(deps) != 1 {
		return nil, core.Errorf(core.InvalidTransactionStructure, "expected 1 parent account cell in cell_deps, found %d", len(deps))
	}
	ref := deps[0]
	data, err := types.ParseAccountCellData(ref.Data)
	if err != nil {
		return nil, err
	}
	raw, err := ctx.Entity(core.DataTypeAccountCell, ref)
	if err != nil {
		return nil, err
	}
	entity, err := types.DecodeAccountCell(raw)
	if err != nil {
		return nil, core.Errorf(core.WitnessEntityDecodingError, "parent account cell: %v", err)
	}
	if entity.ID != data.ID {
		return nil, core.Errorf(core.AccountIdIsInvalid, "parent entity id 0x%x does not match cell data 0x%x", entity.ID, data.ID)
	}
	if !bytes.Equal(subAccountCell.Type.Args, data.ID[:]) {
		return nil, core.Errorf(core.SubAccountCellAccountIdError, "sub-account cell type args 0x%x do not name parent 0x%x", subAccountCell.Type.Args, data.ID)
	}
	if entity.EnableSubAccount != 1 {
		return nil, core.Errorf(core.SubAccountFeatureNotEnabled, "parent %s has not enabled sub-accounts", entity.Account)
	}
	if ctx.Now > data.ExpiredAt {
		return nil, core.Errorf(core.AccountHasExpired, "parent %s expired at %d", entity.Account, data.ExpiredAt)
	}
	return &parent{ref: ref, data: data, entity: entity, account: entity.Account.String() + core.AccountSuffix}, nil
}

func (u *update) loadParent(ctx *dispatch.Context) error {
	p, err := loadParent(ctx, u.in)
	if err != nil {
		return err
	}
	u.parent = p
	return nil
}

func (u *update) loadWitnesses(ctx *dispatch.Context) error {
	switch u.inData.Flag {
	case core.FlagManual, core.FlagCustomRule:
	default:
		return core.Errorf(core.ConfigFlagInvalid, "sub-account cell flag %s is not supported", u.inData.Flag)
	}
	p, err := witness.NewParser(ctx.Ledger.Witnesses(), u.inData.Flag)
	if err != nil {
		return err
	}
	u.parser = p
	if u.hasCreate, err = p.Contains(core.SubActionCreate); err != nil {
		return err
	}
	ctx.Log.Debug("sub-account witnesses", zap.Int("records", p.Len()), zap.Bool("create", u.hasCreate))
	return nil
}

// verifyCapacity checks that both cells hold their profits plus the basic
// capacity, and that fees paid from the cell stay within the common fee.
func (u *update) verifyCapacity(*dispatch.Context) error {
	return verifyCapacity(u.in, u.out, u.inData, u.outData, u.sa().BasicCapacity, u.sa().CommonFee)
}

func verifyCapacity(in, out dispatch.CellRef, inData, outData *CellData, basic, fee uint64) error {
	for _, c := range []struct {
		ref  dispatch.CellRef
		data *CellData
	}{{in, inData}, {out, outData}} {
		need, err := addU64(c.data.DasProfit, c.data.OwnerProfit, basic)
		if err != nil {
			return err
		}
		if c.ref.Capacity < need {
			return core.Errorf(core.SubAccountCellCapacityError, "%s[%d] capacity %d is below profits plus basic capacity %d", c.ref.Source, c.ref.Index, c.ref.Capacity, need)
		}
	}
	inRemain := in.Capacity - inData.DasProfit - inData.OwnerProfit - basic
	outRemain := out.Capacity - outData.DasProfit - outData.OwnerProfit - basic
	if inRemain > outRemain && inRemain-outRemain > fee {
		return core.Errorf(core.TxFeeSpentError, "sub-account cell pays %d shannon of fee, at most %d allowed", inRemain-outRemain, fee)
	}
	return nil
}

func (u *update) verifyConsistency(ctx *dispatch.Context) error {
	profitable, err := u.parser.Contains(core.SubActionCreate, core.SubActionRenew)
	if err != nil {
		return err
	}
	if !profitable {
		return VerifyConsistent(u.inData, u.outData, FieldSMTRoot)
	}
	if u.hasCreate && u.parent.entity.Status != core.AccountStatusNormal {
		return core.Errorf(core.AccountStatusError, "parent %s status %d, expected normal", u.parent.account, u.parent.entity.Status)
	}
	if u.inData.Flag != core.FlagCustomRule {
		return VerifyConsistent(u.inData, u.outData, FieldSMTRoot, FieldDasProfit)
	}
	if err := VerifyConsistent(u.inData, u.outData, FieldSMTRoot, FieldDasProfit, FieldOwnerProfit); err != nil {
		return err
	}
	if u.rules.Price, _, err = u.parser.Rules(core.DataTypeSubAccountPriceRule, u.inData.PriceRulesHash[:]); err != nil {
		return err
	}
	if u.rules.Preserved, _, err = u.parser.Rules(core.DataTypeSubAccountPreservedRule, u.inData.PreservedRulesHash[:]); err != nil {
		return err
	}
	ctx.Log.Debug("custom rules", zap.Stringer("rules", &u.rules))
	return nil
}

func (u *update) loadSignWitnesses(*dispatch.Context) error {
	var err error
	args := u.parent.ref.Lock.Args
	if u.mintSign, _, err = u.parser.MintSign(args); err != nil {
		return err
	}
	u.renewSign, _, err = u.parser.RenewSign(args)
	return err
}

func (u *update) verifyRecords(ctx *dispatch.Context) error {
	u.minCreatedExpiredAt = u.parent.data.ExpiredAt
	return u.parser.Each(func(rec *witness.Record) error {
		ctx.Log.Debug("record",
			zap.Int("witness_index", rec.Index),
			zap.String("sub_action", string(rec.Action)),
			zap.String("account", rec.SubAccount.FullAccount()),
			zap.Int("signature_len", len(rec.Signature)),
		)
		if err := verifySuffix(rec, u.parent.account); err != nil {
			return err
		}
		next, err := u.apply(ctx, rec)
		if err != nil {
			return err
		}
		prev := rec.SubAccount.Hash()
		if rec.Action == core.SubActionCreate {
			prev = smt.Zero
		}
		newValue := smt.Zero
		if next != nil {
			newValue = next.Hash()
		}
		u.transitions = append(u.transitions, smt.Transition{
			PrevRoot:    rec.PrevRoot,
			CurrentRoot: rec.CurrentRoot,
			Key:         smt.KeyFromAccountID(rec.SubAccount.ID),
			PrevValue:   prev,
			NewValue:    newValue,
			Proof:       rec.Proof,
		})
		return nil
	})
}

// apply runs the sub-action of rec and returns the entity that must be stored
// under its key afterwards, nil for a removed leaf.
func (u *update) apply(ctx *dispatch.Context, rec *witness.Record) (*types.SubAccount, error) {
	switch rec.Action {
	case core.SubActionCreate:
		return rec.SubAccount, u.create(ctx, rec)
	case core.SubActionEdit:
		return u.edit(ctx, rec)
	case core.SubActionRenew:
		return u.renew(ctx, rec)
	case core.SubActionRecycle:
		return nil, u.recycle(ctx, rec)
	case core.SubActionCreateApproval:
		if err := u.authorize(rec, true); err != nil {
			return nil, err
		}
		if err := verifyStatus(rec, core.AccountStatusNormal); err != nil {
			return nil, err
		}
		return CreateApproval(rec, ctx.Now, u.dasLock)
	case core.SubActionDelayApproval:
		if err := u.authorize(rec, true); err != nil {
			return nil, err
		}
		return DelayApproval(rec)
	case core.SubActionRevokeApproval:
		if err := u.authorize(rec, false); err != nil {
			return nil, err
		}
		return RevokeApproval(rec, ctx.Now)
	case core.SubActionFulfillApproval:
		if rec.HasSignRole {
			if err := u.authorize(rec, false); err != nil {
				return nil, err
			}
		}
		return FulfillApproval(rec, ctx.Now)
	}
	return nil, core.Errorf(core.ActionNotSupported, "witnesses[%d] sub-action %q", rec.Index, rec.Action)
}

// authorize checks the role, the sign expiry and the signature of rec.
func (u *update) authorize(rec *witness.Record, checkRole bool) error {
	if checkRole {
		if err := verifyUnlockRole(rec); err != nil {
			return err
		}
	}
	if err := verifySignExpiry(rec, u.parent.data.ExpiredAt, u.lastUpdatedAt); err != nil {
		return err
	}
	return verifyEditSign(rec, u.oracle)
}

func registeredYears(from, to uint64) uint64 {
	if to <= from {
		return 0
	}
	return (to - from) / core.Year
}

func accountListValue(sa *types.SubAccount) smt.H256 {
	return core.Blake2b256(sa.Lock.Args)
}

func (u *update) create(ctx *dispatch.Context, rec *witness.Record) error {
	sa := rec.SubAccount
	if err := verifyAccountChars(rec.Index, sa.Account, u.sa().MinAccountLength, u.sa().MaxAccountLength); err != nil {
		return err
	}
	if err := verifyInitialProperties(rec, ctx.Now, u.dasLock); err != nil {
		return err
	}
	years := registeredYears(sa.RegisteredAt, sa.ExpiredAt)
	u.minCreatedExpiredAt = min(u.minCreatedExpiredAt, sa.ExpiredAt)
	minimal, err := mulU64(u.sa().NewSubAccountPrice, years)
	if err != nil {
		return err
	}

	key := string(rec.EditKey)
	switch {
	case key == witness.EditKeyManual || (key == "" && u.inData.Flag == core.FlagManual):
		if u.mintSign == nil {
			return core.Errorf(core.SubAccountSignMintSignatureRequired, "witnesses[%d] manual mint without a mint signature", rec.Index)
		}
		if err := smt.VerifyMembership(u.mintSign.AccountListRoot, smt.KeyFromAccountID(sa.ID), accountListValue(sa), rec.EditValueBytes); err != nil {
			return err
		}
		return u.addManual(minimal)
	case u.inData.Flag == core.FlagCustomRule:
		if rec.EditValue.Kind != witness.EditChannel {
			return core.Errorf(core.WitnessEditValueError, "witnesses[%d] custom rule mint needs channel info", rec.Index)
		}
		profit, err := u.rulePrice(rec, years, minimal)
		if err != nil {
			return err
		}
		return u.addCustom(profit, minimal)
	default:
		return core.Errorf(core.CanNotMint, "witnesses[%d] %s is neither manually minted nor priced by rules", rec.Index, sa.FullAccount())
	}
}

// rulePrice prices rec by the custom rules over years; the result must
// reach minimal.
func (u *update) rulePrice(rec *witness.Record, years, minimal uint64) (uint64, error) {
	if u.inData.Status != core.CustomRuleOn {
		return 0, core.Errorf(core.CustomRuleIsOff, "witnesses[%d] custom rules are off", rec.Index)
	}
	rule, err := u.rules.PriceOf(rec.Index, rec.SubAccount)
	if err != nil {
		return 0, err
	}
	yearly, err := YearlyCapacity(rule.Price, u.cfg.Quote)
	if err != nil {
		return 0, err
	}
	profit, err := mulU64(yearly, years)
	if err != nil {
		return 0, err
	}
	if profit < minimal {
		return 0, core.Errorf(core.MinimalProfitToDASNotReached, "witnesses[%d] rule %d yields %d shannon, at least %d required", rec.Index, rule.Index, profit, minimal)
	}
	return profit, nil
}

func (u *update) edit(ctx *dispatch.Context, rec *witness.Record) (*types.SubAccount, error) {
	if err := verifyEditable(rec); err != nil {
		return nil, err
	}
	next, err := ApplyEdit(rec.SubAccount, rec.EditValue)
	if err != nil {
		return nil, err
	}
	if err := u.authorize(rec, true); err != nil {
		return nil, err
	}
	if err := verifyExpiration(rec.Index, rec.SubAccount, ctx.Now, u.sa().ExpirationGracePeriod); err != nil {
		return nil, err
	}
	if err := verifyStatus(rec, core.AccountStatusNormal); err != nil {
		return nil, err
	}
	if rec.EditValue.Kind != witness.EditRecords {
		if err := verifyLockEdit(rec); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (u *update) renew(ctx *dispatch.Context, rec *witness.Record) (*types.SubAccount, error) {
	sa := rec.SubAccount
	if err := verifyExpiration(rec.Index, sa, ctx.Now, u.sa().ExpirationGracePeriod); err != nil && !core.IsCode(err, core.AccountHasInGracePeriod) {
		return nil, err
	}
	newExpiredAt := rec.EditValue.ExpiredAt
	years := registeredYears(sa.ExpiredAt, newExpiredAt)
	if years == 0 {
		return nil, core.Errorf(core.ExpirationYearsTooShort, "witnesses[%d] renew from %d to %d is less than a year", rec.Index, sa.ExpiredAt, newExpiredAt)
	}
	minimal, err := mulU64(u.sa().RenewSubAccountPrice, years)
	if err != nil {
		return nil, err
	}

	switch string(rec.EditKey) {
	case witness.EditKeyManual:
		if u.renewSign == nil {
			return nil, core.Errorf(core.SubAccountSignMintSignatureRequired, "witnesses[%d] manual renew without a renew signature", rec.Index)
		}
		if err := smt.VerifyMembership(u.renewSign.AccountListRoot, smt.KeyFromAccountID(sa.ID), accountListValue(sa), rec.EditValueBytes[8:]); err != nil {
			return nil, err
		}
		err = u.addManual(minimal)
	case witness.EditKeyCustomRule:
		var profit uint64
		if profit, err = u.rulePrice(rec, years, minimal); err == nil {
			err = u.addCustom(profit, minimal)
		}
	default:
		err = u.addManual(minimal)
	}
	if err != nil {
		return nil, err
	}

	next := sa.Clone()
	next.ExpiredAt = newExpiredAt
	return next, nil
}

func (u *update) recycle(ctx *dispatch.Context, rec *witness.Record) error {
	err := verifyExpiration(rec.Index, rec.SubAccount, ctx.Now, u.sa().ExpirationGracePeriod)
	switch {
	case core.IsCode(err, core.AccountHasExpired):
		return nil
	case err == nil, core.IsCode(err, core.AccountHasInGracePeriod):
		return core.Errorf(core.AccountStillCanNotBeRecycled, "witnesses[%d] %s can not be recycled before its grace period ends", rec.Index, rec.SubAccount.FullAccount())
	default:
		return err
	}
}

func (u *update) verifyRoots(*dispatch.Context) error {
	return smt.VerifyChain(u.inData.SMTRoot, u.outData.SMTRoot, u.transitions)
}

func (u *update) verifySignWitnesses(*dispatch.Context) error {
	if u.mintSign != nil {
		if err := verifyMintSign(u.mintSign, u.oracle, u.minCreatedExpiredAt, u.lastUpdatedAt); err != nil {
			return err
		}
	}
	if u.renewSign != nil {
		if err := verifyMintSign(u.renewSign, u.oracle, u.parent.data.ExpiredAt, u.lastUpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (u *update) addManual(minimal uint64) (err error) {
	u.manualProfit, err = addU64(u.manualProfit, minimal)
	return err
}

func (u *update) addCustom(profit, minimal uint64) (err error) {
	if u.customProfit, err = addU64(u.customProfit, profit); err != nil {
		return err
	}
	u.customMinimal, err = addU64(u.customMinimal, minimal)
	return err
}

// dasProfit is what DAS is owed for this update.
func (u *update) dasProfit() (uint64, error) {
	custom := uint64(0)
	if u.customProfit > 0 {
		custom = DasShare(u.customProfit, u.customMinimal, u.sa().DasProfitRate)
	}
	return addU64(u.manualProfit, custom)
}

func (u *update) verifyProfit(ctx *dispatch.Context) error {
	if u.outData.DasProfit < u.inData.DasProfit || u.outData.OwnerProfit < u.inData.OwnerProfit {
		return core.Errorf(core.SubAccountProfitError, "profits can not decrease in update_sub_account")
	}
	das, err := u.dasProfit()
	if err != nil {
		return err
	}
	if das-u.manualProfit > u.customProfit {
		return core.Errorf(core.SubAccountProfitError, "das share %d exceeds custom profit %d", das-u.manualProfit, u.customProfit)
	}
	owner := u.customProfit - (das - u.manualProfit)
	if got := u.outData.DasProfit - u.inData.DasProfit; got != das {
		return core.Errorf(core.SubAccountProfitError, "das_profit grows by %d, expected %d", got, das)
	}
	if got := u.outData.OwnerProfit - u.inData.OwnerProfit; got != owner {
		return core.Errorf(core.SubAccountProfitError, "owner_profit grows by %d, expected %d", got, owner)
	}
	ctx.Log.Debug("profit", zap.Uint64("das", das), zap.Uint64("owner", owner))
	return nil
}

// verifyParentOwnerSpend limits what the parent owner's cells may lose to
// the registration fees plus the transaction fee.
func (u *update) verifyParentOwnerSpend(ctx *dispatch.Context) error {
	lock := u.parent.ref.Lock
	spent := ledger.Capacity(ctx.Ledger, core.SourceInput, ledger.FindByLock(ctx.Ledger, core.SourceInput, lock))
	back := ledger.Capacity(ctx.Ledger, core.SourceOutput, ledger.FindByLock(ctx.Ledger, core.SourceOutput, lock))
	if spent <= back {
		return nil
	}
	profit, err := u.dasProfit()
	if err != nil {
		return err
	}
	limit, err := addU64(profit, u.sa().CommonFee)
	if err != nil {
		return err
	}
	if spent-back > limit {
		return core.Errorf(core.SubAccountBalanceManagerError, "parent owner spends %d shannon, at most %d allowed", spent-back, limit)
	}
	return nil
}

func updateSubAccount() *dispatch.Action {
	u := &update{}
	return dispatch.NewAction(core.ActionUpdateSubAccount).
		Add("sub-account cells", func(ctx *dispatch.Context) error { return u.loadCells(ctx) }).
		Add("parent account", func(ctx *dispatch.Context) error { return u.loadParent(ctx) }).
		Add("witnesses", func(ctx *dispatch.Context) error { return u.loadWitnesses(ctx) }).
		Add("capacity", func(ctx *dispatch.Context) error { return u.verifyCapacity(ctx) }).
		Add("consistency", func(ctx *dispatch.Context) error { return u.verifyConsistency(ctx) }).
		Add("sign witnesses", func(ctx *dispatch.Context) error { return u.loadSignWitnesses(ctx) }).
		Add("records", func(ctx *dispatch.Context) error { return u.verifyRecords(ctx) }).
		Add("root chain", func(ctx *dispatch.Context) error { return u.verifyRoots(ctx) }).
		Add("mint and renew signatures", func(ctx *dispatch.Context) error { return u.verifySignWitnesses(ctx) }).
		Add("profit", func(ctx *dispatch.Context) error { return u.verifyProfit(ctx) }).
		Add("parent owner spend", func(ctx *dispatch.Context) error { return u.verifyParentOwnerSpend(ctx) })
}
