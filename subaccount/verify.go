package subaccount

import (
	"encoding/binary"

	"das.dev/verifier/core"
	"das.dev/verifier/sign"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

func verifySuffix(rec *witness.Record, parentAccount string) error {
	if want := "." + parentAccount; rec.SubAccount.Suffix != want {
		return core.Errorf(core.SubAccountCellAccountIdError, "witnesses[%d] suffix %q, expected %q", rec.Index, rec.SubAccount.Suffix, want)
	}
	return nil
}

func verifyAccountChars(index int, chars types.AccountChars, min, max int) error {
	for _, c := range chars {
		if !c.CharSet.Defined() {
			return core.Errorf(core.CharSetIsUndefined, "witnesses[%d] charset %d is undefined", index, c.CharSet)
		}
		if len(c.Bytes) == 0 {
			return core.Errorf(core.AccountCharIsInvalid, "witnesses[%d] empty account char", index)
		}
	}
	if chars.Len() < min {
		return core.Errorf(core.AccountIsTooShort, "witnesses[%d] account has %d chars, min %d", index, chars.Len(), min)
	}
	if chars.Len() > max {
		return core.Errorf(core.AccountIsTooLong, "witnesses[%d] account has %d chars, max %d", index, chars.Len(), max)
	}
	return nil
}

// verifyInitialProperties checks the fields of an entity that is being
// created in this transaction.
func verifyInitialProperties(rec *witness.Record, now uint64, dasLock types.Script) error {
	sa := rec.SubAccount
	fail := func(format string, args ...any) error {
		return core.Errorf(core.SubAccountInitialValueError, "witnesses[%d] "+format, append([]any{rec.Index}, args...)...)
	}
	if !sa.Lock.SameCode(dasLock) {
		return fail("lock should be das-lock")
	}
	if _, err := types.ParseLockArgs(sa.Lock.Args); err != nil {
		return fail("lock args: %v", err)
	}
	if id := core.AccountID([]byte(sa.FullAccount())); id != sa.ID {
		return fail("id 0x%x does not match %s", sa.ID, sa.FullAccount())
	}
	if sa.RegisteredAt != now {
		return fail("registered_at %d, expected %d", sa.RegisteredAt, now)
	}
	if sa.ExpiredAt < now+core.Year {
		return fail("expired_at %d is less than one year from %d", sa.ExpiredAt, now)
	}
	if sa.Status != core.AccountStatusNormal {
		return fail("status %d, expected normal", sa.Status)
	}
	if len(sa.Records) > 1 {
		return fail("%d records, at most 1 allowed", len(sa.Records))
	}
	if sa.Nonce != 0 {
		return fail("nonce %d, expected 0", sa.Nonce)
	}
	if sa.EnableSubAccount != 0 {
		return fail("enable_sub_account should be 0")
	}
	if sa.RenewSubAccountPrice != 0 {
		return fail("renew_sub_account_price should be 0")
	}
	if !sa.Approval.IsEmpty() {
		return fail("approval should be empty")
	}
	return nil
}

// verifyUnlockRole checks that records are edited by the manager and
// everything else by the owner.
func verifyUnlockRole(rec *witness.Record) error {
	want := core.LockRoleOwner
	if rec.EditValue.Kind == witness.EditRecords {
		want = core.LockRoleManager
	}
	if !rec.HasSignRole || rec.SignRole != want {
		return core.Errorf(core.AccountCellPermissionDenied, "witnesses[%d] %s edit must be signed by %s", rec.Index, rec.EditValue.Kind, want)
	}
	return nil
}

func verifyStatus(rec *witness.Record, want core.AccountStatus) error {
	if rec.SubAccount.Status != want {
		return core.Errorf(core.AccountStatusError, "witnesses[%d] status %d, expected %d", rec.Index, rec.SubAccount.Status, want)
	}
	return nil
}

// verifyExpiration returns nil while the account is unexpired,
// AccountHasInGracePeriod during the grace period and AccountHasExpired
// after it.
func verifyExpiration(index int, sa *types.SubAccount, now, grace uint64) error {
	if now <= sa.ExpiredAt {
		return nil
	}
	if now > sa.ExpiredAt+grace {
		return core.Errorf(core.AccountHasExpired, "witnesses[%d] %s expired at %d", index, sa.FullAccount(), sa.ExpiredAt)
	}
	return core.Errorf(core.AccountHasInGracePeriod, "witnesses[%d] %s is in its grace period since %d", index, sa.FullAccount(), sa.ExpiredAt)
}

// verifySignExpiry bounds sign_expired_at of a version 2 record.
func verifySignExpiry(rec *witness.Record, parentExpiredAt, lastUpdatedAt uint64) error {
	if rec.Version < witness.RecordVersion2 {
		return nil
	}
	limit := max(rec.SubAccount.ExpiredAt, parentExpiredAt)
	if rec.SignExpiredAt > limit {
		return core.Errorf(core.SubAccountSignMintExpiredAtTooLarge, "witnesses[%d] sign_expired_at %d exceeds %d", rec.Index, rec.SignExpiredAt, limit)
	}
	if rec.SignExpiredAt < lastUpdatedAt {
		return core.Errorf(core.SubAccountSignMintExpiredAtReached, "witnesses[%d] sign_expired_at %d is before the cell was last updated at %d", rec.Index, rec.SignExpiredAt, lastUpdatedAt)
	}
	return nil
}

// EditSignMessage is the digest an edit is signed over:
// blake2b(account_id || edit_key || edit_value || nonce || sign_expired_at).
// Version 1 records omit sign_expired_at.
func EditSignMessage(rec *witness.Record) [32]byte {
	parts := [][]byte{
		rec.SubAccount.ID[:],
		rec.EditKey,
		rec.EditValueBytes,
		binary.LittleEndian.AppendUint64(nil, rec.SubAccount.Nonce),
	}
	if rec.Version >= witness.RecordVersion2 {
		parts = append(parts, binary.LittleEndian.AppendUint64(nil, rec.SignExpiredAt))
	}
	return core.Blake2b256Concat(parts...)
}

func verifyEditSign(rec *witness.Record, oracle sign.Oracle) error {
	if !rec.HasSignRole {
		return core.Errorf(core.SubAccountSigVerifyError, "witnesses[%d] has no sign_role", rec.Index)
	}
	if err := oracle.Verify(rec.SignType, EditSignMessage(rec), rec.Signature, rec.SignArgs); err != nil {
		if core.IsCode(err, core.SignMethodUnsupported) {
			return err
		}
		return core.Errorf(core.SubAccountSigVerifyError, "witnesses[%d]: %v", rec.Index, err)
	}
	return nil
}

// verifyMintSign checks the parent's signature over a mint or renew account
// list. expiredBound is the smallest expired_at the signature must not pass.
func verifyMintSign(w *witness.SignWitness, oracle sign.Oracle, expiredBound, lastUpdatedAt uint64) error {
	if w.ExpiredAt > expiredBound {
		return core.Errorf(core.SubAccountSignMintExpiredAtTooLarge, "witnesses[%d] expired_at %d exceeds %d", w.Index, w.ExpiredAt, expiredBound)
	}
	if w.ExpiredAt < lastUpdatedAt {
		return core.Errorf(core.SubAccountSignMintExpiredAtReached, "witnesses[%d] expired_at %d is before the cell was last updated at %d", w.Index, w.ExpiredAt, lastUpdatedAt)
	}
	if err := oracle.Verify(w.SignType, w.SignMessage(), w.Signature, w.SignArgs); err != nil {
		if core.IsCode(err, core.SignMethodUnsupported) {
			return err
		}
		return core.Errorf(core.SubAccountSigVerifyError, "witnesses[%d]: %v", w.Index, err)
	}
	return nil
}
