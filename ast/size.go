package ast

import (
	"das.dev/verifier/molecule"
)

// The functions below compute encoded sizes from the decoded structure
// alone, without encoding. They are checked against the witness bytes a rule
// set was decoded from.

// RulesSize is the encoded size of a SubAccountRules vector.
func RulesSize(rules []Rule) int {
	sizes := make([]int, len(rules))
	for i := range rules {
		sizes[i] = RuleSize(&rules[i])
	}
	return molecule.TableSize(sizes...)
}

func RuleSize(r *Rule) int {
	return molecule.TableSize(
		4,
		molecule.BytesSize(len(r.Name)),
		molecule.BytesSize(len(r.Note)),
		8,
		1,
		ExpressionSize(r.AST),
	)
}

func ExpressionSize(e Expression) int {
	var body int
	switch x := e.(type) {
	case *Operator:
		body = molecule.TableSize(1, expressionsSize(x.Expressions))
	case *Function:
		body = molecule.TableSize(1, expressionsSize(x.Arguments))
	case *Variable:
		body = molecule.TableSize(1)
	case *Value:
		body = ValueSize(x)
	}
	return molecule.TableSize(1, molecule.BytesSize(body))
}

func expressionsSize(es []Expression) int {
	sizes := make([]int, len(es))
	for i, e := range es {
		sizes[i] = ExpressionSize(e)
	}
	return molecule.TableSize(sizes...)
}

// ValueSize is the encoded size of an ASTValue table.
func ValueSize(v *Value) int {
	var payload int
	switch v.Kind {
	case ValueBool, ValueUint8:
		payload = 1
	case ValueUint32, ValueCharsetType:
		payload = 4
	case ValueUint64:
		payload = 8
	case ValueBinary:
		payload = len(v.Bytes)
	case ValueString:
		payload = len(v.Str)
	case ValueBinaryVec:
		sizes := make([]int, len(v.BytesList))
		for i, b := range v.BytesList {
			sizes[i] = molecule.BytesSize(len(b))
		}
		payload = molecule.TableSize(sizes...)
	case ValueStringVec:
		sizes := make([]int, len(v.StrList))
		for i, s := range v.StrList {
			sizes[i] = molecule.BytesSize(len(s))
		}
		payload = molecule.TableSize(sizes...)
	}
	return molecule.TableSize(1, molecule.BytesSize(payload))
}

// VerifyRulesSize rejects a decoded rule set whose computed size differs from
// the bytes it was decoded from.
func VerifyRulesSize(key string, rules []Rule, raw []byte) error {
	if got := RulesSize(rules); got != len(raw) {
		return errorf(ErrRulesSizeMismatch, key, "computed %d bytes, witness carries %d", got, len(raw))
	}
	return nil
}
