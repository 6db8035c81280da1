package subaccount

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"das.dev/verifier/ast"
	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

func TestParseCellDataLengths(t *testing.T) {
	root := bytes.Repeat([]byte{0xab}, 32)

	_, err := ParseCellData(root[:31])
	requireCode(t, err, core.InvalidCellData)

	d, err := ParseCellData(root)
	require.NoError(t, err)
	assert.Equal(t, root, d.SMTRoot[:])
	assert.Zero(t, d.DasProfit)
	assert.Zero(t, d.OwnerProfit)
	assert.Equal(t, core.FlagManual, d.Flag)

	full := &CellData{
		DasProfit:          7,
		OwnerProfit:        9,
		Flag:               core.FlagCustomRule,
		Status:             core.CustomRuleOn,
		PriceRulesHash:     [10]byte{1, 2, 3},
		PreservedRulesHash: [10]byte{4, 5, 6},
	}
	copy(full.SMTRoot[:], root)
	raw := full.Bytes()
	require.Len(t, raw, preservedHashEnd)
	back, err := ParseCellData(raw)
	require.NoError(t, err)
	assert.Equal(t, full, back)

	// Only the profits.
	d, err = ParseCellData(raw[:dasProfitEnd])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), d.DasProfit)
	assert.Zero(t, d.OwnerProfit)
	assert.Equal(t, core.FlagManual, d.Flag)

	// A manual cell ignores trailing rule fields.
	manual := append([]byte(nil), raw...)
	manual[ownerProfitEnd] = byte(core.FlagManual)
	d, err = ParseCellData(manual)
	require.NoError(t, err)
	assert.Equal(t, core.CustomRuleOff, d.Status)
	assert.Zero(t, d.PriceRulesHash)
	assert.Len(t, d.Bytes(), flagEnd)
}

func TestVerifyConsistent(t *testing.T) {
	in := &CellData{DasProfit: 1, OwnerProfit: 2, Flag: core.FlagCustomRule, Status: core.CustomRuleOn}
	out := *in
	require.NoError(t, VerifyConsistent(in, &out))

	out.SMTRoot[0] = 1
	out.DasProfit = 5
	requireCode(t, VerifyConsistent(in, &out, FieldSMTRoot), core.SubAccountCellConsistencyError)
	require.NoError(t, VerifyConsistent(in, &out, FieldSMTRoot, FieldDasProfit))

	out.PreservedRulesHash[9] = 1
	err := VerifyConsistent(in, &out, FieldSMTRoot, FieldDasProfit)
	requireCode(t, err, core.SubAccountCellConsistencyError)
	assert.Contains(t, err.Error(), FieldPreservedRulesHash)
}

func TestYearlyCapacity(t *testing.T) {
	cases := []struct {
		price, quote, want uint64
	}{
		{5_000_000, 1_000, 5_000 * core.OneCKB},
		{500, 1_000, core.OneCKB / 2},
		{1, 3, core.OneCKB / 3},
		{10_000_000, 3_000, 3_333 * core.OneCKB},
		{1_000, 0, 0},
	}
	for _, tc := range cases {
		got, err := YearlyCapacity(tc.price, tc.quote)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "price %d quote %d", tc.price, tc.quote)
	}

	got, err := YearlyCapacity(math.MaxUint64-1, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, core.OneCKB-1, got)

	_, err = YearlyCapacity(math.MaxUint64, 1_000)
	requireCode(t, err, core.OverflowError)
}

func TestCheckedArithmetic(t *testing.T) {
	n, err := mulU64(1<<32-1, 1<<32+1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), n)
	_, err = mulU64(1<<32, 1<<32)
	requireCode(t, err, core.OverflowError)

	n, err = addU64(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)
	_, err = addU64(math.MaxUint64-2, 1, 2)
	requireCode(t, err, core.OverflowError)
}

func TestDasShare(t *testing.T) {
	assert.Equal(t, 150*core.OneCKB, DasShare(1_000*core.OneCKB, core.OneCKB, 1_500))
	assert.Equal(t, 2*core.OneCKB, DasShare(10*core.OneCKB, 2*core.OneCKB, 1_500))
	assert.Equal(t, uint64(0), DasShare(0, 0, 1_500))
	assert.Equal(t, uint64(math.MaxUint64/2), DasShare(math.MaxUint64, 0, 5_000))
	assert.Equal(t, uint64(math.MaxUint64), DasShare(math.MaxUint64, 0, 20_000))
}

func TestRuleSetPriceOf(t *testing.T) {
	sa := &types.SubAccount{Account: types.SplitAccountChars("abc", types.DefaultCharSet), Suffix: ".parent.bit"}
	rs := RuleSet{Price: []ast.Rule{lengthRule(0, 2, 1), lengthRule(1, 3, 2), enRule(2, 3)}}

	r, err := rs.PriceOf(0, sa)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), r.Index, "first matching rule wins")

	rs.Preserved = []ast.Rule{enRule(0, 0)}
	_, err = rs.PriceOf(0, sa)
	requireCode(t, err, core.AccountIsPreserved)

	_, err = (&RuleSet{}).PriceOf(0, sa)
	requireCode(t, err, core.AccountHasNoPrice)
	assert.Equal(t, "price=3 preserved=1", rs.String())
}
