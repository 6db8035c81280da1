package subaccount

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"das.dev/verifier/ast"
	"das.dev/verifier/config"
	"das.dev/verifier/core"
	"das.dev/verifier/dispatch"
	"das.dev/verifier/ledger"
	"das.dev/verifier/sign"
	"das.dev/verifier/smt"
	"das.dev/verifier/types"
	"das.dev/verifier/witness"
)

const testNow uint64 = 1_700_000_000

func ethArgs(owner, manager byte) []byte {
	return types.LockArgs{
		OwnerType:   core.DasLockTypeETH,
		OwnerArgs:   bytes.Repeat([]byte{owner}, 20),
		ManagerType: core.DasLockTypeETH,
		ManagerArgs: bytes.Repeat([]byte{manager}, 20),
	}.Bytes()
}

var (
	ownerArgs    = ethArgs(0x01, 0x02)
	buyerArgs    = ethArgs(0x03, 0x04)
	parentArgs   = ethArgs(0x05, 0x05)
	platformArgs = ethArgs(0x06, 0x06)

	parentID = core.AccountID([]byte("parent.bit"))

	roleOwner   = []byte{byte(core.LockRoleOwner)}
	roleManager = []byte{byte(core.LockRoleManager)}
)

type oracleCall struct {
	lockType core.DasLockType
	digest   [32]byte
	args     []byte
}

// fixture assembles an update_sub_account style transaction: the sub-account
// cell at inputs[0] and outputs[0], a balance cell of the parent owner at
// index 1 and the parent account cell in cell_deps.
type fixture struct {
	t   *testing.T
	cfg config.Config
	now uint64

	tree   *smt.Tree
	inRoot smt.H256
	inData CellData

	dasDelta   uint64
	ownerDelta uint64
	editOut    func(*CellData)

	signExpiredAt uint64
	proofHook     func(*smt.Proof)
	listProofs    map[[core.AccountIDLength]byte][]byte

	witnesses [][]byte
	records   [][]byte

	parentExpiredAt uint64
	parentEnable    uint8
	parentStatus    core.AccountStatus
	parentLock      types.Script

	sigErr error
	calls  []oracleCall
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:               t,
		cfg:             config.DefaultConfig(),
		now:             testNow,
		tree:            smt.NewTree(smt.NewMemoryStore()),
		signExpiredAt:   testNow + core.Day,
		listProofs:      map[[core.AccountIDLength]byte][]byte{},
		parentExpiredAt: testNow + 2*core.Year,
		parentEnable:    1,
	}
	f.parentLock = f.dasLock(parentArgs)
	return f
}

func (f *fixture) dasLock(args []byte) types.Script {
	s := config.Script(f.cfg.Scripts.DasLock)
	s.Args = args
	return s
}

// newSubAccount returns a child registered now for one year.
func (f *fixture) newSubAccount(label string) *types.SubAccount {
	sa := &types.SubAccount{
		Lock:         f.dasLock(ownerArgs),
		Account:      types.SplitAccountChars(label, types.DefaultCharSet),
		Suffix:       ".parent.bit",
		RegisteredAt: f.now,
		ExpiredAt:    f.now + core.Year,
		Status:       core.AccountStatusNormal,
		Version:      2,
	}
	sa.ID = core.AccountID([]byte(sa.FullAccount()))
	return sa
}

// existing returns a child registered 100 days ago that expires in 200 days.
// It is not in the tree until seeded.
func (f *fixture) existing(label string) *types.SubAccount {
	sa := f.newSubAccount(label)
	sa.RegisteredAt = f.now - 100*core.Day
	sa.ExpiredAt = f.now + 200*core.Day
	sa.Nonce = 3
	return sa
}

func (f *fixture) seed(sa *types.SubAccount) {
	f.t.Helper()
	_, root, err := f.tree.Update(smt.KeyFromAccountID(sa.ID), sa.Hash())
	require.NoError(f.t, err)
	f.inRoot = root
}

// record appends a version 2 record that moves the leaf of sa to next. A nil
// next removes the leaf.
func (f *fixture) record(action core.SubAccountAction, sa, next *types.SubAccount, key string, value, role []byte) {
	f.t.Helper()
	prev, err := f.tree.Root()
	require.NoError(f.t, err)
	val := smt.Zero
	if next != nil {
		val = next.Hash()
	}
	proof, cur, err := f.tree.Update(smt.KeyFromAccountID(sa.ID), val)
	require.NoError(f.t, err)
	if f.proofHook != nil {
		f.proofHook(proof)
	}
	f.records = append(f.records, witness.EncodeRecord(witness.RecordInput{
		Version:       witness.RecordVersion2,
		Action:        action,
		Signature:     []byte{0xaa},
		SignRole:      role,
		PrevRoot:      prev,
		CurrentRoot:   cur,
		Proof:         proof.Encode(),
		SubAccount:    sa,
		EditKey:       []byte(key),
		EditValue:     value,
		SignExpiredAt: f.signExpiredAt,
	}))
}

func (f *fixture) create(sa *types.SubAccount) {
	f.record(core.SubActionCreate, sa, sa, witness.EditKeyManual, f.listProofs[sa.ID], nil)
}

// signList appends a mint or renew sign witness of the parent owner over an
// account list holding sas.
func (f *fixture) signList(dataType core.DataType, sas ...*types.SubAccount) {
	f.t.Helper()
	list := smt.NewTree(smt.NewMemoryStore())
	for _, sa := range sas {
		_, _, err := list.Update(smt.KeyFromAccountID(sa.ID), accountListValue(sa))
		require.NoError(f.t, err)
	}
	for _, sa := range sas {
		p, err := list.Prove(smt.KeyFromAccountID(sa.ID))
		require.NoError(f.t, err)
		f.listProofs[sa.ID] = p.Encode()
	}
	root, err := list.Root()
	require.NoError(f.t, err)
	f.witnesses = append(f.witnesses, witness.EncodeSignWitness(witness.SignWitnessInput{
		DataType:        dataType,
		Signature:       []byte{0xbb},
		SignRole:        core.LockRoleOwner,
		ExpiredAt:       f.signExpiredAt,
		AccountListRoot: root,
	}))
}

// customRules switches the cell to custom rules and attaches the rule
// witnesses.
func (f *fixture) customRules(price, preserved []ast.Rule) {
	f.inData.Flag = core.FlagCustomRule
	f.inData.Status = core.CustomRuleOn
	if len(price) > 0 {
		frag := ast.EncodeRules(price)
		f.inData.PriceRulesHash = witness.RulesHash(frag)
		f.witnesses = append(f.witnesses, witness.EncodeRulesWitness(core.DataTypeSubAccountPriceRule, frag))
	}
	if len(preserved) > 0 {
		frag := ast.EncodeRules(preserved)
		f.inData.PreservedRulesHash = witness.RulesHash(frag)
		f.witnesses = append(f.witnesses, witness.EncodeRulesWitness(core.DataTypeSubAccountPreservedRule, frag))
	}
}

func (f *fixture) parentEntity() *types.AccountCell {
	return &types.AccountCell{
		ID:               parentID,
		Account:          types.SplitAccountChars("parent", types.DefaultCharSet),
		RegisteredAt:     f.now - core.Year,
		Status:           f.parentStatus,
		EnableSubAccount: f.parentEnable,
	}
}

func (f *fixture) subAccountType() types.Script {
	s := config.Script(f.cfg.Scripts.SubAccountCell)
	s.Args = parentID[:]
	return s
}

var subAccountCellLock = types.Script{CodeHash: [32]byte{0x99}, HashType: types.HashTypeType}

func (f *fixture) tx(action string) *ledger.Transaction {
	f.t.Helper()
	root, err := f.tree.Root()
	require.NoError(f.t, err)

	in := f.inData
	in.SMTRoot = f.inRoot
	out := in
	out.SMTRoot = root
	out.DasProfit += f.dasDelta
	out.OwnerProfit += f.ownerDelta
	if f.editOut != nil {
		f.editOut(&out)
	}

	entity := f.parentEntity().Encode()
	parentData := types.AccountCellData{
		EntityHash: core.Blake2b256(entity),
		ID:         parentID,
		ExpiredAt:  f.parentExpiredAt,
		Account:    "parent.bit",
	}
	subType := f.subAccountType()
	accountType := config.Script(f.cfg.Scripts.AccountCellType)
	basic := f.cfg.SubAccount.BasicCapacity
	balance := 10_000 * core.OneCKB

	witnesses := [][]byte{
		witness.EncodeActionData(action, nil),
		witness.EncodeEntityWitness(core.DataTypeAccountCell, nil, nil, &witness.EntityInput{Version: 3, Index: 0, Entity: entity}),
	}
	witnesses = append(witnesses, f.witnesses...)
	witnesses = append(witnesses, f.records...)

	return &ledger.Transaction{
		Inputs: []ledger.Cell{
			{Capacity: basic + in.DasProfit + in.OwnerProfit, Lock: subAccountCellLock, Type: &subType, Data: in.Bytes(), CommittedAt: f.now - core.Day},
			{Capacity: balance, Lock: f.parentLock, CommittedAt: f.now - core.Day},
		},
		Outputs: []ledger.Cell{
			{Capacity: basic + out.DasProfit + out.OwnerProfit, Lock: subAccountCellLock, Type: &subType, Data: out.Bytes()},
			{Capacity: balance - f.dasDelta, Lock: f.parentLock},
		},
		CellDeps: []ledger.Cell{
			{Capacity: 1, Lock: f.parentLock, Type: &accountType, Data: parentData.Bytes()},
		},
		Witness:   witnesses,
		Timestamp: f.now,
	}
}

func (f *fixture) env() dispatch.Env {
	return dispatch.Env{
		Config: f.cfg,
		Log:    zaptest.NewLogger(f.t),
		Oracle: sign.OracleFunc(func(lockType core.DasLockType, digest [32]byte, _, args []byte) error {
			f.calls = append(f.calls, oracleCall{lockType: lockType, digest: digest, args: args})
			return f.sigErr
		}),
	}
}

func (f *fixture) verify(action string) error {
	return Verify(f.tx(action), f.env())
}

func (f *fixture) verifyUpdate() error {
	return f.verify(core.ActionUpdateSubAccount)
}

func le64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func requireCode(t *testing.T, err error, code core.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, core.IsCode(err, code), "expected %s, got %v", code, err)
}

// enRule prices every account made of latin letters only.
func enRule(index uint32, price uint64) ast.Rule {
	return ast.Rule{
		Index:  index,
		Name:   "latin letters",
		Price:  price,
		Status: ast.RuleOn,
		AST: &ast.Function{Name: ast.FnOnlyIncludeCharset, Arguments: []ast.Expression{
			&ast.Variable{Name: ast.VarAccountChars},
			ast.Charset(types.CharSetEn),
		}},
	}
}

// lengthRule matches accounts of exactly n chars.
func lengthRule(index uint32, n uint32, price uint64) ast.Rule {
	return ast.Rule{
		Index:  index,
		Name:   "length",
		Price:  price,
		Status: ast.RuleOn,
		AST: &ast.Operator{Symbol: ast.SymbolEqual, Expressions: []ast.Expression{
			&ast.Variable{Name: ast.VarAccountLength},
			ast.Uint32(n),
		}},
	}
}
