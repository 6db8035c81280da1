package ast

import (
	"fmt"

	"das.dev/verifier/types"
)

type ExpressionType uint8

const (
	ExprOperator ExpressionType = iota
	ExprFunction
	ExprVariable
	ExprValue
)

var expressionTypeNames = []string{"operator", "function", "variable", "value"}

func (t ExpressionType) String() string {
	if int(t) < len(expressionTypeNames) {
		return expressionTypeNames[t]
	}
	return fmt.Sprintf("expression(%d)", uint8(t))
}

type SymbolType uint8

const (
	SymbolNot SymbolType = iota
	SymbolAnd
	SymbolOr
	SymbolGt
	SymbolGte
	SymbolLt
	SymbolLte
	SymbolEqual
)

var symbolNames = []string{"not", "and", "or", ">", ">=", "<", "<=", "=="}

func (s SymbolType) String() string {
	if int(s) < len(symbolNames) {
		return symbolNames[s]
	}
	return fmt.Sprintf("symbol(%d)", uint8(s))
}

func ParseSymbol(s string) (SymbolType, bool) {
	return parseName(symbolNames, s, func(i int) SymbolType { return SymbolType(i) })
}

type FnName uint8

const (
	FnIncludeChars FnName = iota
	FnIncludeWords
	FnOnlyIncludeCharset
	FnInList
)

var fnNames = []string{"include_chars", "include_words", "only_include_charset", "in_list"}

func (f FnName) String() string {
	if int(f) < len(fnNames) {
		return fnNames[f]
	}
	return fmt.Sprintf("function(%d)", uint8(f))
}

func ParseFnName(s string) (FnName, bool) {
	return parseName(fnNames, s, func(i int) FnName { return FnName(i) })
}

type VarName uint8

const (
	VarAccount VarName = iota
	VarAccountChars
	VarAccountLength
)

var varNames = []string{"account", "account_chars", "account_length"}

func (v VarName) String() string {
	if int(v) < len(varNames) {
		return varNames[v]
	}
	return fmt.Sprintf("variable(%d)", uint8(v))
}

func ParseVarName(s string) (VarName, bool) {
	return parseName(varNames, s, func(i int) VarName { return VarName(i) })
}

type ValueType uint8

const (
	ValueBool ValueType = iota
	ValueUint8
	ValueUint32
	ValueUint64
	ValueBinary
	ValueBinaryVec
	ValueString
	ValueStringVec
	ValueCharsetType
)

var valueTypeNames = []string{"bool", "uint8", "uint32", "uint64", "binary", "binary[]", "string", "string[]", "charset_type"}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("value_type(%d)", uint8(t))
}

func ParseValueType(s string) (ValueType, bool) {
	return parseName(valueTypeNames, s, func(i int) ValueType { return ValueType(i) })
}

func parseName[T any](names []string, s string, mk func(int) T) (T, bool) {
	for i, n := range names {
		if n == s {
			return mk(i), true
		}
	}
	var zero T
	return zero, false
}

// Expression is one node of a rule AST: *Operator, *Function, *Variable or
// *Value.
type Expression interface {
	Type() ExpressionType
}

type Operator struct {
	Symbol      SymbolType
	Expressions []Expression
}

type Function struct {
	Name      FnName
	Arguments []Expression
}

type Variable struct {
	Name VarName
}

// Value is a literal. Only the field matching Kind is meaningful; the three
// integer kinds share Int.
type Value struct {
	Kind      ValueType
	Bool      bool
	Int       uint64
	Bytes     []byte
	BytesList [][]byte
	Str       string
	StrList   []string
	CharSet   types.CharSetType
}

func (*Operator) Type() ExpressionType { return ExprOperator }
func (*Function) Type() ExpressionType { return ExprFunction }
func (*Variable) Type() ExpressionType { return ExprVariable }
func (*Value) Type() ExpressionType { return ExprValue }

func Bool(v bool) *Value { return &Value{Kind: ValueBool, Bool: v} }
func Uint8(v uint8) *Value { return &Value{Kind: ValueUint8, Int: uint64(v)} }
func Uint32(v uint32) *Value { return &Value{Kind: ValueUint32, Int: uint64(v)} }
func Uint64(v uint64) *Value { return &Value{Kind: ValueUint64, Int: v} }
func Binary(v []byte) *Value { return &Value{Kind: ValueBinary, Bytes: v} }
func BinaryVec(v ...[]byte) *Value { return &Value{Kind: ValueBinaryVec, BytesList: v} }
func String(v string) *Value { return &Value{Kind: ValueString, Str: v} }
func StringVec(v ...string) *Value { return &Value{Kind: ValueStringVec, StrList: v} }
func Charset(v types.CharSetType) *Value {
	return &Value{Kind: ValueCharsetType, CharSet: v}
}

func (v *Value) isInt() bool {
	return v.Kind == ValueUint8 || v.Kind == ValueUint32 || v.Kind == ValueUint64
}

type RuleStatus uint8

const (
	RuleOff RuleStatus = iota
	RuleOn
)

// Rule is one entry of a price or preserved rule set.
type Rule struct {
	Index  uint32
	Name   string
	Note   string
	Price  uint64
	Status RuleStatus
	AST    Expression
}
