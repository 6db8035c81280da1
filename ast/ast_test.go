package ast

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"das.dev/verifier/core"
	"das.dev/verifier/molecule"
	"das.dev/verifier/types"
)

func allValues() []*Value {
	return []*Value{
		Bool(true),
		Bool(false),
		Uint8(7),
		Uint32(70000),
		Uint64(1 << 40),
		Binary([]byte{0xde, 0xad, 0xbe, 0xef}),
		Binary(nil),
		BinaryVec([]byte{1, 2, 3}, make([]byte, 20)),
		BinaryVec(),
		String("xxx"),
		String(""),
		StringVec("ab", "😀", ""),
		StringVec(),
		Charset(types.CharSetEmoji),
		Charset(types.CharSetEn),
	}
}

func emojiRule() Rule {
	return Rule{
		Index:  0,
		Name:   "single emoji",
		Note:   "",
		Price:  100_000_000,
		Status: RuleOn,
		AST: &Operator{Symbol: SymbolAnd, Expressions: []Expression{
			&Operator{Symbol: SymbolEqual, Expressions: []Expression{
				&Variable{Name: VarAccountLength},
				Uint32(1),
			}},
			&Function{Name: FnOnlyIncludeCharset, Arguments: []Expression{
				&Variable{Name: VarAccountChars},
				Charset(types.CharSetEmoji),
			}},
		}},
	}
}

func envOf(label string) *Env {
	return &Env{
		Account: label + ".parent.bit",
		Chars:   types.SplitAccountChars(label, types.DefaultCharSet),
	}
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var e *Error
	require.True(t, errors.As(err, &e), "expected *ast.Error, got %v", err)
	return e.Kind
}

func TestValueEncodingVectors(t *testing.T) {
	body, err := hex.DecodeString("120000000c0000000d000000000100000001")
	require.NoError(t, err)
	want := molecule.Table([]byte{byte(ExprValue)}, molecule.Bytes(body))
	assert.Equal(t, want, EncodeExpression(Bool(true)))

	body, err = hex.DecodeString("090000000800000000")
	require.NoError(t, err)
	want = molecule.Table([]byte{byte(ExprVariable)}, molecule.Bytes(body))
	assert.Equal(t, want, EncodeExpression(&Variable{Name: VarAccount}))
}

func TestValueRoundTripAndSize(t *testing.T) {
	for _, v := range allValues() {
		enc := EncodeExpression(v)
		assert.Equal(t, len(enc), ExpressionSize(v), "size of %s", v.Kind)

		got, err := DecodeExpression("v", enc)
		require.NoError(t, err, v.Kind.String())
		gv, ok := got.(*Value)
		require.True(t, ok)
		assert.Equal(t, enc, EncodeExpression(gv), v.Kind.String())
	}
}

func TestRulesRoundTripAndSize(t *testing.T) {
	rules := []Rule{
		emojiRule(),
		{Index: 1, Name: "words", Note: "n", Price: 1 << 33, Status: RuleOff, AST: &Function{
			Name:      FnIncludeWords,
			Arguments: []Expression{&Variable{Name: VarAccount}, StringVec("bad", "worse")},
		}},
	}
	raw := EncodeRules(rules)
	require.Equal(t, len(raw), RulesSize(rules))

	got, err := DecodeRules("rules", raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, raw, EncodeRules(got))
	assert.Equal(t, uint64(1<<33), got[1].Price)
	assert.Equal(t, RuleOff, got[1].Status)
	require.NoError(t, VerifyRulesSize("rules", got, raw))

	err = VerifyRulesSize("rules", got, append(raw, 0))
	assert.Equal(t, ErrRulesSizeMismatch, kindOf(t, err))
}

func TestDecodeRejectsUndefinedTags(t *testing.T) {
	badType := molecule.Table([]byte{9}, molecule.Bytes(nil))
	_, err := DecodeExpression("e", badType)
	assert.Equal(t, ErrUndefinedExpression, kindOf(t, err))

	badValue := molecule.Table([]byte{byte(ExprValue)}, molecule.Bytes(
		molecule.Table([]byte{42}, molecule.Bytes(nil)),
	))
	_, err = DecodeExpression("e", badValue)
	assert.Equal(t, ErrUndefinedValueType, kindOf(t, err))

	badCharset := molecule.Table([]byte{byte(ExprValue)}, molecule.Bytes(
		molecule.Table([]byte{byte(ValueCharsetType)}, molecule.Bytes(molecule.Uint32(999))),
	))
	_, err = DecodeExpression("e", badCharset)
	assert.Equal(t, ErrUndefinedCharSet, kindOf(t, err))
}

func TestMatchSingleEmoji(t *testing.T) {
	rules := []Rule{emojiRule()}

	r, err := Match(rules, envOf("😀"))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, uint64(100_000_000), r.Price)

	r, err = Match(rules, envOf("ab"))
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestMatchSkipsOffRules(t *testing.T) {
	off := emojiRule()
	off.Status = RuleOff
	// An invalid AST on a disabled rule is never evaluated.
	off.AST = &Operator{Symbol: SymbolAnd}

	r, err := Match([]Rule{off}, envOf("😀"))
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.False(t, HasEnabled([]Rule{off}))
}

func TestMatchRequiresFunctionOrOperatorRoot(t *testing.T) {
	r := emojiRule()
	r.AST = Bool(true)
	_, err := Match([]Rule{r}, envOf("a"))
	assert.Equal(t, ErrFunctionOrOperator, kindOf(t, err))
}

func TestOperatorErrors(t *testing.T) {
	env := envOf("abc")
	cases := []struct {
		name string
		expr Expression
		want ErrorKind
	}{
		{"and one operand", &Operator{Symbol: SymbolAnd, Expressions: []Expression{Bool(true)}}, ErrParamLength},
		{"or non bool", &Operator{Symbol: SymbolOr, Expressions: []Expression{Bool(true), Uint8(1)}}, ErrParamType},
		{"not two operands", &Operator{Symbol: SymbolNot, Expressions: []Expression{Bool(true), Bool(false)}}, ErrParamLength},
		{"compare string", &Operator{Symbol: SymbolGt, Expressions: []Expression{String("a"), Uint8(1)}}, ErrValueOperator},
		{"compare int with bool", &Operator{Symbol: SymbolLt, Expressions: []Expression{Uint8(1), Bool(true)}}, ErrValueOperator},
		{"function arity", &Function{Name: FnInList, Arguments: []Expression{&Variable{Name: VarAccount}}}, ErrParamLength},
		{"include_chars wrong variable", &Function{Name: FnIncludeChars, Arguments: []Expression{&Variable{Name: VarAccountChars}, StringVec("a")}}, ErrParamType},
		{"in_list wrong list", &Function{Name: FnInList, Arguments: []Expression{&Variable{Name: VarAccount}, StringVec("a")}}, ErrParamType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Eval("e", tc.expr, env)
			assert.Equal(t, tc.want, kindOf(t, err))
		})
	}
}

func TestCompareMixedWidths(t *testing.T) {
	v, err := Eval("e", &Operator{Symbol: SymbolGte, Expressions: []Expression{
		&Variable{Name: VarAccountLength}, Uint64(3),
	}}, envOf("abc"))
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestAccountCharsMustBeUtf8(t *testing.T) {
	env := envOf("ab")
	env.Chars = append(env.Chars, types.AccountChar{CharSet: types.CharSetEn, Bytes: []byte{0xff}})

	_, err := Eval("e", &Variable{Name: VarAccountChars}, env)
	require.Equal(t, ErrParseUtf8, kindOf(t, err))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "e[2]", e.Key)

	v, err := Eval("e", &Variable{Name: VarAccountLength}, env)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v.Int)
}

func TestFunctions(t *testing.T) {
	env := envOf("goodname")
	id := core.AccountID([]byte(env.Account))

	cases := []struct {
		name string
		fn   *Function
		want bool
	}{
		{"include_chars hit", &Function{Name: FnIncludeChars, Arguments: []Expression{&Variable{Name: VarAccount}, StringVec("x", "d")}}, true},
		{"include_words miss", &Function{Name: FnIncludeWords, Arguments: []Expression{&Variable{Name: VarAccount}, StringVec("bad")}}, false},
		{"only_include_charset en", &Function{Name: FnOnlyIncludeCharset, Arguments: []Expression{&Variable{Name: VarAccountChars}, Charset(types.CharSetEn)}}, true},
		{"only_include_charset digit", &Function{Name: FnOnlyIncludeCharset, Arguments: []Expression{&Variable{Name: VarAccountChars}, Charset(types.CharSetDigit)}}, false},
		{"in_list hit", &Function{Name: FnInList, Arguments: []Expression{&Variable{Name: VarAccount}, BinaryVec(make([]byte, 20), id[:])}}, true},
		{"in_list miss", &Function{Name: FnInList, Arguments: []Expression{&Variable{Name: VarAccount}, BinaryVec(make([]byte, 20))}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Eval("e", tc.fn, env)
			require.NoError(t, err)
			assert.Equal(t, ValueBool, v.Kind)
			assert.Equal(t, tc.want, v.Bool)
		})
	}
}

func TestUndefinedCharsetInAccount(t *testing.T) {
	env := &Env{Account: "a.parent.bit", Chars: types.AccountChars{{CharSet: 99, Bytes: []byte("a")}}}
	_, err := Eval("e", &Function{Name: FnOnlyIncludeCharset, Arguments: []Expression{
		&Variable{Name: VarAccountChars}, Charset(types.CharSetEn),
	}}, env)
	assert.Equal(t, ErrUndefinedCharSet, kindOf(t, err))
}

func TestJSONRoundTrip(t *testing.T) {
	rules := []Rule{emojiRule(), {
		Index: 1, Name: "list", Price: 1 << 40, Status: RuleOn,
		AST: &Function{Name: FnInList, Arguments: []Expression{&Variable{Name: VarAccount}, BinaryVec([]byte{0xab, 0xcd})}},
	}}
	b, err := MarshalRulesJSON(rules)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":100000000`)
	assert.Contains(t, string(b), `"price":"1099511627776"`)
	assert.Contains(t, string(b), `"0xabcd"`)
	assert.Contains(t, string(b), `"Emoji"`)

	got, err := UnmarshalRulesJSON(b)
	require.NoError(t, err)
	assert.Equal(t, EncodeRules(rules), EncodeRules(got))
}

func TestJSONRejectsOverflow(t *testing.T) {
	src := `[{"index":0,"name":"","note":"","price":1,"status":1,"ast":
	  {"type":"operator","symbol":"==","expressions":[
	    {"type":"variable","name":"account_length"},
	    {"type":"value","value_type":"uint8","value":300}]}}]`
	_, err := UnmarshalRulesJSON([]byte(src))
	assert.Equal(t, ErrJSONValue, kindOf(t, err))
}
