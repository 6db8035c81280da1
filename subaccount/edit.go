package subaccount

import (
	"das.dev/verifier/core"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

// ApplyEdit returns the entity produced by an edit record. Every edit bumps
// the nonce by one, and a new owner starts with no records.
func ApplyEdit(sa *types.SubAccount, ev witness.EditValue) (*types.SubAccount, error) {
	next := sa.Clone()
	switch ev.Kind {
	case witness.EditOwner, witness.EditManager:
		if _, err := types.ParseLockArgs(ev.LockArgs); err != nil {
			return nil, err
		}
		next.Lock.Args = append([]byte(nil), ev.LockArgs...)
		if ev.Kind == witness.EditOwner {
			next.Records = nil
		}
	case witness.EditRecords:
		next.Records = append(types.Records(nil), ev.Records...)
	default:
		return nil, core.Errorf(core.WitnessEditKeyInvalid, "edit_value %s can not be applied", ev.Kind)
	}
	next.Nonce = sa.Nonce + 1
	return next, nil
}

// verifyLockEdit checks that an owner edit changes the owner and a manager
// edit keeps the owner while changing the manager.
func verifyLockEdit(rec *witness.Record) error {
	cur, err := types.ParseLockArgs(rec.SubAccount.Lock.Args)
	if err != nil {
		return err
	}
	next, err := types.ParseLockArgs(rec.EditValue.LockArgs)
	if err != nil {
		return err
	}
	switch rec.EditValue.Kind {
	case witness.EditOwner:
		if cur.SameOwner(next) {
			return core.Errorf(core.SubAccountEditLockError, "witnesses[%d] owner edit keeps the owner", rec.Index)
		}
	case witness.EditManager:
		if !cur.SameOwner(next) {
			return core.Errorf(core.SubAccountEditLockError, "witnesses[%d] manager edit changes the owner", rec.Index)
		}
		if cur.SameManager(next) {
			return core.Errorf(core.SubAccountEditLockError, "witnesses[%d] manager edit keeps the manager", rec.Index)
		}
	}
	return nil
}

func verifyEditable(rec *witness.Record) error {
	switch rec.EditValue.Kind {
	case witness.EditOwner, witness.EditManager, witness.EditRecords:
		return nil
	case witness.EditExpiredAt:
		return core.Errorf(core.SubAccountFieldNotEditable, "witnesses[%d] expired_at can not be edited", rec.Index)
	default:
		return core.Errorf(core.SubAccountFieldNotEditable, "witnesses[%d] edit_key %q is not editable", rec.Index, rec.EditKey)
	}
}
