package subaccount

import (
	"bytes"

	"das.dev/verifier/core"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

const (
	approvalMinLifetime = 30 * core.Day
	approvalWindowLimit = 10 * core.Day
)

func transferParams(index int, a types.AccountApproval) (types.AccountApprovalTransfer, error) {
	if string(a.Action) != types.ApprovalActionTransfer {
		return types.AccountApprovalTransfer{}, core.Errorf(core.ApprovalActionUndefined, "witnesses[%d] approval action %q", index, a.Action)
	}
	t, err := a.Transfer()
	if err != nil {
		return t, core.Errorf(core.WitnessParsingError, "witnesses[%d] approval params: %v", index, err)
	}
	return t, nil
}

// CreateApproval checks a None -> Pending transition and returns the entity
// carrying the new approval.
func CreateApproval(rec *witness.Record, now uint64, dasLock types.Script) (*types.SubAccount, error) {
	sa := rec.SubAccount
	if !sa.Approval.IsEmpty() {
		return nil, core.Errorf(core.ApprovalExist, "witnesses[%d] %s already has an approval", rec.Index, sa.FullAccount())
	}
	if now+approvalMinLifetime >= sa.ExpiredAt {
		return nil, core.Errorf(core.AccountHasNearGracePeriod, "witnesses[%d] %s expires within 30 days", rec.Index, sa.FullAccount())
	}
	p, err := transferParams(rec.Index, rec.EditValue.Approval)
	if err != nil {
		return nil, err
	}
	if !p.PlatformLock.SameCode(dasLock) {
		return nil, core.Errorf(core.ApprovalParamsPlatformLockInvalid, "witnesses[%d] platform_lock should be das-lock", rec.Index)
	}
	if p.ProtectedUntil > now+approvalWindowLimit {
		return nil, core.Errorf(core.ApprovalParamsProtectedUntilInvalid, "witnesses[%d] protected_until %d is more than 10 days away", rec.Index, p.ProtectedUntil)
	}
	if p.SealedUntil > p.ProtectedUntil+approvalWindowLimit {
		return nil, core.Errorf(core.ApprovalParamsSealedUntilInvalid, "witnesses[%d] sealed_until %d is more than 10 days after protected_until", rec.Index, p.SealedUntil)
	}
	if p.DelayCountRemain != 1 {
		return nil, core.Errorf(core.ApprovalParamsDelayCountRemainInvalid, "witnesses[%d] delay_count_remain %d, expected 1", rec.Index, p.DelayCountRemain)
	}
	if !p.ToLock.SameCode(dasLock) {
		return nil, core.Errorf(core.ApprovalParamsToLockInvalid, "witnesses[%d] to_lock should be das-lock", rec.Index)
	}
	if _, err := types.ParseLockArgs(p.ToLock.Args); err != nil {
		return nil, core.Errorf(core.ApprovalParamsToLockInvalid, "witnesses[%d] to_lock args: %v", rec.Index, err)
	}

	next := sa.Clone()
	next.Version = 2
	next.Approval = rec.EditValue.Approval
	next.Status = core.AccountStatusApprovedTransfer
	next.Nonce = sa.Nonce + 1
	return next, nil
}

func pendingApproval(rec *witness.Record) (types.AccountApprovalTransfer, error) {
	sa := rec.SubAccount
	if sa.Approval.IsEmpty() {
		return types.AccountApprovalTransfer{}, core.Errorf(core.ApprovalActionUndefined, "witnesses[%d] %s has no approval", rec.Index, sa.FullAccount())
	}
	if err := verifyStatus(rec, core.AccountStatusApprovedTransfer); err != nil {
		return types.AccountApprovalTransfer{}, err
	}
	return transferParams(rec.Index, sa.Approval)
}

// DelayApproval checks a Pending -> Pending transition that moves
// sealed_until forward and spends one delay.
func DelayApproval(rec *witness.Record) (*types.SubAccount, error) {
	prev, err := pendingApproval(rec)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(rec.SubAccount.Approval.Action, rec.EditValue.Approval.Action) {
		return nil, core.Errorf(core.ApprovalParamsCanNotBeChanged, "witnesses[%d] approval action can not be changed", rec.Index)
	}
	cur, err := transferParams(rec.Index, rec.EditValue.Approval)
	if err != nil {
		return nil, err
	}
	unchanged := []struct {
		name  string
		equal bool
	}{
		{"platform_lock", prev.PlatformLock.Equal(cur.PlatformLock)},
		{"protected_until", prev.ProtectedUntil == cur.ProtectedUntil},
		{"to_lock", prev.ToLock.Equal(cur.ToLock)},
	}
	for _, f := range unchanged {
		if !f.equal {
			return nil, core.Errorf(core.ApprovalParamsCanNotBeChanged, "witnesses[%d] approval %s can not be changed", rec.Index, f.name)
		}
	}
	if prev.DelayCountRemain == 0 {
		return nil, core.Errorf(core.ApprovalParamsDelayCountNotEnough, "witnesses[%d] no delay left", rec.Index)
	}
	if cur.DelayCountRemain != prev.DelayCountRemain-1 {
		return nil, core.Errorf(core.ApprovalParamsDelayCountDecrementError, "witnesses[%d] delay_count_remain %d -> %d, expected a decrement of 1", rec.Index, prev.DelayCountRemain, cur.DelayCountRemain)
	}
	if cur.SealedUntil <= prev.SealedUntil {
		return nil, core.Errorf(core.ApprovalParamsSealedUntilIncrementError, "witnesses[%d] sealed_until %d -> %d should increase", rec.Index, prev.SealedUntil, cur.SealedUntil)
	}
	if cur.SealedUntil > cur.ProtectedUntil+approvalWindowLimit {
		return nil, core.Errorf(core.ApprovalParamsSealedUntilInvalid, "witnesses[%d] sealed_until %d is more than 10 days after protected_until", rec.Index, cur.SealedUntil)
	}

	next := rec.SubAccount.Clone()
	next.Approval = rec.EditValue.Approval
	next.Nonce = rec.SubAccount.Nonce + 1
	return next, nil
}

// RevokeApproval checks a Pending -> None transition signed by the platform.
func RevokeApproval(rec *witness.Record, now uint64) (*types.SubAccount, error) {
	p, err := pendingApproval(rec)
	if err != nil {
		return nil, err
	}
	if now <= p.ProtectedUntil {
		return nil, core.Errorf(core.ApprovalInProtectionPeriod, "witnesses[%d] approval is protected until %d", rec.Index, p.ProtectedUntil)
	}
	next := rec.SubAccount.Clone()
	next.Approval = types.AccountApproval{}
	next.Status = core.AccountStatusNormal
	next.Nonce = rec.SubAccount.Nonce + 1
	return next, nil
}

// FulfillApproval checks a Pending -> None transition that hands the account
// to to_lock. The owner may fulfill once the protection period is over;
// anyone may once the approval is sealed.
func FulfillApproval(rec *witness.Record, now uint64) (*types.SubAccount, error) {
	p, err := pendingApproval(rec)
	if err != nil {
		return nil, err
	}
	if now <= p.ProtectedUntil {
		return nil, core.Errorf(core.ApprovalInProtectionPeriod, "witnesses[%d] approval is protected until %d", rec.Index, p.ProtectedUntil)
	}
	if rec.HasSignRole {
		if rec.SignRole != core.LockRoleOwner {
			return nil, core.Errorf(core.AccountCellPermissionDenied, "witnesses[%d] fulfill must be signed by the owner", rec.Index)
		}
	} else if now < p.SealedUntil {
		return nil, core.Errorf(core.ApprovalFulfillError, "witnesses[%d] unsigned fulfill before sealed_until %d", rec.Index, p.SealedUntil)
	}
	next := rec.SubAccount.Clone()
	next.Lock.Args = append([]byte(nil), p.ToLock.Args...)
	next.Records = nil
	next.Approval = types.AccountApproval{}
	next.Status = core.AccountStatusNormal
	next.Nonce = rec.SubAccount.Nonce + 1
	return next, nil
}
