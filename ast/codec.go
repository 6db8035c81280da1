package ast

import (
	"fmt"
	"unicode/utf8"

	"das.dev/verifier/molecule"
	"das.dev/verifier/types"
)

// Molecule layouts:
//
//	SubAccountRules = dynvec<SubAccountRule>
//	SubAccountRule  = table{index Uint32, name Bytes, note Bytes, price Uint64, status Uint8, ast ASTExpression}
//	ASTExpression   = table{expression_type byte, expression Bytes}
//	ASTExpressions  = dynvec<ASTExpression>
//	ASTOperator     = table{symbol byte, expressions ASTExpressions}
//	ASTFunction     = table{name byte, arguments ASTExpressions}
//	ASTVariable     = table{name byte}
//	ASTValue        = table{value_type byte, value Bytes}

func EncodeRules(rules []Rule) []byte {
	items := make([][]byte, len(rules))
	for i := range rules {
		items[i] = EncodeRule(&rules[i])
	}
	return molecule.DynVec(items...)
}

func EncodeRule(r *Rule) []byte {
	return molecule.Table(
		molecule.Uint32(r.Index),
		molecule.Bytes([]byte(r.Name)),
		molecule.Bytes([]byte(r.Note)),
		molecule.Uint64(r.Price),
		molecule.Uint8(uint8(r.Status)),
		EncodeExpression(r.AST),
	)
}

func EncodeExpression(e Expression) []byte {
	var body []byte
	switch x := e.(type) {
	case *Operator:
		body = molecule.Table(molecule.Uint8(uint8(x.Symbol)), encodeExpressions(x.Expressions))
	case *Function:
		body = molecule.Table(molecule.Uint8(uint8(x.Name)), encodeExpressions(x.Arguments))
	case *Variable:
		body = molecule.Table(molecule.Uint8(uint8(x.Name)))
	case *Value:
		body = molecule.Table(molecule.Uint8(uint8(x.Kind)), molecule.Bytes(x.payload()))
	default:
		panic(fmt.Sprintf("ast: unknown expression %T", e))
	}
	return molecule.Table(molecule.Uint8(uint8(e.Type())), molecule.Bytes(body))
}

func encodeExpressions(es []Expression) []byte {
	items := make([][]byte, len(es))
	for i, e := range es {
		items[i] = EncodeExpression(e)
	}
	return molecule.DynVec(items...)
}

// payload is the raw content of ASTValue.value.
func (v *Value) payload() []byte {
	switch v.Kind {
	case ValueBool:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	case ValueUint8:
		return molecule.Uint8(uint8(v.Int))
	case ValueUint32:
		return molecule.Uint32(uint32(v.Int))
	case ValueUint64:
		return molecule.Uint64(v.Int)
	case ValueBinary:
		return v.Bytes
	case ValueBinaryVec:
		return bytesVec(v.BytesList)
	case ValueString:
		return []byte(v.Str)
	case ValueStringVec:
		list := make([][]byte, len(v.StrList))
		for i, s := range v.StrList {
			list[i] = []byte(s)
		}
		return bytesVec(list)
	case ValueCharsetType:
		return molecule.Uint32(uint32(v.CharSet))
	}
	return nil
}

func bytesVec(list [][]byte) []byte {
	items := make([][]byte, len(list))
	for i, b := range list {
		items[i] = molecule.Bytes(b)
	}
	return molecule.DynVec(items...)
}

// DecodeRules decodes a SubAccountRules vector. key prefixes error paths.
func DecodeRules(key string, b []byte) ([]Rule, error) {
	items, err := molecule.ReadDynVec(b)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	rules := make([]Rule, len(items))
	for i, item := range items {
		r, err := DecodeRule(fmt.Sprintf("%s[%d]", key, i), item)
		if err != nil {
			return nil, err
		}
		rules[i] = *r
	}
	return rules, nil
}

func DecodeRule(key string, b []byte) (*Rule, error) {
	fields, err := molecule.ReadTable(b, 6, true)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	r := &Rule{}
	if r.Index, err = molecule.ReadUint32(fields[0]); err != nil {
		return nil, errorf(ErrBytesToEntity, key+".index", "%v", err)
	}
	if r.Name, err = readString(key+".name", fields[1]); err != nil {
		return nil, err
	}
	if r.Note, err = readString(key+".note", fields[2]); err != nil {
		return nil, err
	}
	if r.Price, err = molecule.ReadUint64(fields[3]); err != nil {
		return nil, errorf(ErrBytesToEntity, key+".price", "%v", err)
	}
	status, err := molecule.ReadUint8(fields[4])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".status", "%v", err)
	}
	if status > uint8(RuleOn) {
		return nil, errorf(ErrUndefinedRuleStatus, key+".status", "%d", status)
	}
	r.Status = RuleStatus(status)
	if r.AST, err = DecodeExpression(key+".ast", fields[5]); err != nil {
		return nil, err
	}
	return r, nil
}

func readString(key string, field []byte) (string, error) {
	raw, err := molecule.ReadBytes(field)
	if err != nil {
		return "", errorf(ErrBytesToEntity, key, "%v", err)
	}
	if !utf8.Valid(raw) {
		return "", errorf(ErrParseUtf8, key, "")
	}
	return string(raw), nil
}

func DecodeExpression(key string, b []byte) (Expression, error) {
	fields, err := molecule.ReadTable(b, 2, true)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	t, err := molecule.ReadUint8(fields[0])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".expression_type", "%v", err)
	}
	body, err := molecule.ReadBytes(fields[1])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".expression", "%v", err)
	}
	switch ExpressionType(t) {
	case ExprOperator:
		return decodeOperator(key, body)
	case ExprFunction:
		return decodeFunction(key, body)
	case ExprVariable:
		return decodeVariable(key, body)
	case ExprValue:
		return decodeValue(key, body)
	}
	return nil, errorf(ErrUndefinedExpression, key, "%d", t)
}

func decodeExpressions(key string, b []byte) ([]Expression, error) {
	items, err := molecule.ReadDynVec(b)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	out := make([]Expression, len(items))
	for i, item := range items {
		if out[i], err = DecodeExpression(fmt.Sprintf("%s[%d]", key, i), item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeOperator(key string, b []byte) (*Operator, error) {
	fields, err := molecule.ReadTable(b, 2, true)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	sym, err := molecule.ReadUint8(fields[0])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".symbol", "%v", err)
	}
	if int(sym) >= len(symbolNames) {
		return nil, errorf(ErrUndefinedOperator, key+".symbol", "%d", sym)
	}
	exprs, err := decodeExpressions(key+".expressions", fields[1])
	if err != nil {
		return nil, err
	}
	return &Operator{Symbol: SymbolType(sym), Expressions: exprs}, nil
}

func decodeFunction(key string, b []byte) (*Function, error) {
	fields, err := molecule.ReadTable(b, 2, true)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	name, err := molecule.ReadUint8(fields[0])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".name", "%v", err)
	}
	if int(name) >= len(fnNames) {
		return nil, errorf(ErrUndefinedFunction, key+".name", "%d", name)
	}
	args, err := decodeExpressions(key+".arguments", fields[1])
	if err != nil {
		return nil, err
	}
	return &Function{Name: FnName(name), Arguments: args}, nil
}

func decodeVariable(key string, b []byte) (*Variable, error) {
	fields, err := molecule.ReadTable(b, 1, true)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	name, err := molecule.ReadUint8(fields[0])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".name", "%v", err)
	}
	if int(name) >= len(varNames) {
		return nil, errorf(ErrUndefinedVariable, key+".name", "%d", name)
	}
	return &Variable{Name: VarName(name)}, nil
}

func decodeValue(key string, b []byte) (*Value, error) {
	fields, err := molecule.ReadTable(b, 2, true)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	vt, err := molecule.ReadUint8(fields[0])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".value_type", "%v", err)
	}
	raw, err := molecule.ReadBytes(fields[1])
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key+".value", "%v", err)
	}
	v := &Value{Kind: ValueType(vt)}
	switch v.Kind {
	case ValueBool:
		if len(raw) != 1 {
			return nil, errorf(ErrBytesToEntity, key+".value", "bool has %d bytes", len(raw))
		}
		v.Bool = raw[0] != 0
	case ValueUint8:
		n, err := molecule.ReadUint8(raw)
		if err != nil {
			return nil, errorf(ErrBytesToEntity, key+".value", "%v", err)
		}
		v.Int = uint64(n)
	case ValueUint32:
		n, err := molecule.ReadUint32(raw)
		if err != nil {
			return nil, errorf(ErrBytesToEntity, key+".value", "%v", err)
		}
		v.Int = uint64(n)
	case ValueUint64:
		n, err := molecule.ReadUint64(raw)
		if err != nil {
			return nil, errorf(ErrBytesToEntity, key+".value", "%v", err)
		}
		v.Int = n
	case ValueBinary:
		v.Bytes = append([]byte(nil), raw...)
	case ValueBinaryVec:
		if v.BytesList, err = readBytesVec(key+".value", raw); err != nil {
			return nil, err
		}
	case ValueString:
		if !utf8.Valid(raw) {
			return nil, errorf(ErrParseUtf8, key+".value", "")
		}
		v.Str = string(raw)
	case ValueStringVec:
		list, err := readBytesVec(key+".value", raw)
		if err != nil {
			return nil, err
		}
		v.StrList = make([]string, len(list))
		for i, s := range list {
			if !utf8.Valid(s) {
				return nil, errorf(ErrParseUtf8, fmt.Sprintf("%s.value[%d]", key, i), "")
			}
			v.StrList[i] = string(s)
		}
	case ValueCharsetType:
		n, err := molecule.ReadUint32(raw)
		if err != nil {
			return nil, errorf(ErrBytesToEntity, key+".value", "%v", err)
		}
		cs := types.CharSetType(n)
		if !cs.Defined() {
			return nil, errorf(ErrUndefinedCharSet, key+".value", "%d", n)
		}
		v.CharSet = cs
	default:
		return nil, errorf(ErrUndefinedValueType, key+".value_type", "%d", vt)
	}
	return v, nil
}

func readBytesVec(key string, b []byte) ([][]byte, error) {
	items, err := molecule.ReadDynVec(b)
	if err != nil {
		return nil, errorf(ErrBytesToEntity, key, "%v", err)
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		raw, err := molecule.ReadBytes(item)
		if err != nil {
			return nil, errorf(ErrBytesToEntity, fmt.Sprintf("%s[%d]", key, i), "%v", err)
		}
		out[i] = append([]byte(nil), raw...)
	}
	return out, nil
}
