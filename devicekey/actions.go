package devicekey

import (
	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/dispatch"
	"das.dev/verifier/ledger"
)

// Registry binds the actions of the key-list cell.
func Registry() *dispatch.Registry {
	return dispatch.NewRegistry().
		Register(core.ActionCreateDeviceKeyList, createDeviceKeyList).
		Register(core.ActionUpdateDeviceKeyList, updateDeviceKeyList).
		Register(core.ActionDestroyDeviceKeyList, destroyDeviceKeyList)
}

// Verify runs the key-list cell script over l.
func Verify(l ledger.Ledger, env dispatch.Env) error {
	ctx, err := dispatch.NewContext(l, config.Script(env.Config.Scripts.DeviceKeyListType), env)
	if err != nil {
		return err
	}
	return Registry().Run(ctx)
}

func entity(ctx *dispatch.Context, ref dispatch.CellRef) (*CellData, error) {
	raw, err := ctx.Entity(core.DataTypeDeviceKeyList, ref)
	if err != nil {
		return nil, err
	}
	return DecodeCellData(raw)
}

// outerLocked checks that every balance cell in refs is locked by the refund
// lock.
func outerLocked(refs []dispatch.CellRef, d *CellData) error {
	for _, r := range refs {
		if !r.Lock.Equal(d.RefundLock) {
			return core.Errorf(core.InconsistentBalanceCellLocks, "%s[%d] is not locked by the refund lock", r.Source, r.Index)
		}
	}
	return nil
}

func totalCapacity(refs ...[]dispatch.CellRef) uint64 {
	var total uint64
	for _, rs := range refs {
		for _, r := range rs {
			total += r.Capacity
		}
	}
	return total
}

func createDeviceKeyList() *dispatch.Action {
	var (
		out  dispatch.CellRef
		data *CellData
	)
	return dispatch.NewAction(core.ActionCreateDeviceKeyList).
		Add("cell structure", func(ctx *dispatch.Context) error {
			if len(ctx.InputInner) != 0 {
				return core.Errorf(core.FoundKeyListInInput, "inputs[%d] is a key list, create spends none", ctx.InputInner[0].Index)
			}
			if len(ctx.OutputInner) == 0 {
				return core.Errorf(core.NoKeyListInOutput, "create_device_key_list needs a key list at outputs[0]")
			}
			if err := ctx.RequireInner(nil, []int{0}); err != nil {
				return err
			}
			out = ctx.OutputInner[0]
			var err error
			data, err = entity(ctx, out)
			return err
		}).
		Add("single key", func(*dispatch.Context) error {
			if len(data.Keys) != 1 {
				return core.Errorf(core.KeyListNumberIncorrect, "a new key list holds exactly 1 key, found %d", len(data.Keys))
			}
			return nil
		}).
		Add("lock", func(ctx *dispatch.Context) error {
			if !out.Lock.SameCode(config.Script(ctx.Config.Scripts.DasLock)) {
				return core.Errorf(core.MustUseDasLock, "outputs[%d] must use das-lock", out.Index)
			}
			return VerifyLockArgs(out.Lock.Args, data.Keys[0])
		}).
		Add("capacity", func(*dispatch.Context) error {
			if out.Capacity < BasicCapacity {
				return core.Errorf(core.CapacityNotEnough, "outputs[%d] holds %d shannon, at least %d required", out.Index, out.Capacity, BasicCapacity)
			}
			return nil
		}).
		Add("refund lock", func(ctx *dispatch.Context) error {
			if err := outerLocked(ctx.InputOuter, data); err != nil {
				return err
			}
			return outerLocked(ctx.OutputOuter, data)
		})
}

func updateDeviceKeyList() *dispatch.Action {
	var (
		in, out    dispatch.CellRef
		prev, next *CellData
	)
	return dispatch.NewAction(core.ActionUpdateDeviceKeyList).
		Add("cell structure", func(ctx *dispatch.Context) error {
			if err := ctx.RequireInner([]int{0}, []int{0}); err != nil {
				return err
			}
			in, out = ctx.InputInner[0], ctx.OutputInner[0]
			return nil
		}).
		Add("capacity", func(*dispatch.Context) error {
			if in.Capacity > out.Capacity && in.Capacity-out.Capacity >= MaxFee {
				return core.Errorf(core.CapacityReduceTooMuch, "key list pays %d shannon of fee, below %d allowed", in.Capacity-out.Capacity, MaxFee)
			}
			return nil
		}).
		Add("lock", func(*dispatch.Context) error {
			if !in.Lock.Equal(out.Lock) {
				return core.Errorf(core.InvalidLock, "the lock of a key list cannot change")
			}
			return nil
		}).
		Add("key list", func(ctx *dispatch.Context) error {
			var err error
			if prev, err = entity(ctx, in); err != nil {
				return err
			}
			if next, err = entity(ctx, out); err != nil {
				return err
			}
			if !prev.RefundLock.Equal(next.RefundLock) {
				return core.Errorf(core.UpdateParamsInvalid, "the refund lock cannot change")
			}
			if err := next.Validate(); err != nil {
				return err
			}
			return VerifyEdit(prev.Keys, next.Keys)
		})
}

func destroyDeviceKeyList() *dispatch.Action {
	var data *CellData
	return dispatch.NewAction(core.ActionDestroyDeviceKeyList).
		Add("cell structure", func(ctx *dispatch.Context) error {
			if len(ctx.OutputInner) != 0 {
				return core.Errorf(core.DestroyParamsInvalid, "outputs[%d] keeps a key list", ctx.OutputInner[0].Index)
			}
			if err := ctx.RequireInner([]int{0}, nil); err != nil {
				return err
			}
			var err error
			data, err = entity(ctx, ctx.InputInner[0])
			return err
		}).
		Add("refund", func(ctx *dispatch.Context) error {
			if len(ctx.OutputOuter) == 0 {
				return core.Errorf(core.DestroyParamsInvalid, "the capacity of the key list must be refunded")
			}
			return outerLocked(ctx.OutputOuter, data)
		}).
		Add("capacity", func(ctx *dispatch.Context) error {
			in := totalCapacity(ctx.InputInner, ctx.InputOuter)
			out := totalCapacity(ctx.OutputOuter)
			if in > out && in-out > MaxFee {
				return core.Errorf(core.CapacityReduceTooMuch, "destroy pays %d shannon of fee, at most %d allowed", in-out, MaxFee)
			}
			return nil
		})
}
