package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"das.dev/verifier/types"
)

// JSON form of a rule set, the format rule authors publish:
//
//	{"index":0,"name":"...","note":"...","price":"100000000","status":1,
//	 "ast":{"type":"operator","symbol":"and","expressions":[...]}}
//
// Integers above math.MaxUint32 are written as decimal strings and binary as
// 0x-prefixed hex. Charset literals use their names.

type jsonRule struct {
	Index  uint32    `json:"index"`
	Name   string    `json:"name"`
	Note   string    `json:"note"`
	Price  jsonUint  `json:"price"`
	Status uint8     `json:"status"`
	AST    *jsonExpr `json:"ast"`
}

type jsonExpr struct {
	Type        string          `json:"type"`
	Symbol      string          `json:"symbol,omitempty"`
	Name        string          `json:"name,omitempty"`
	Expressions []*jsonExpr     `json:"expressions,omitempty"`
	Arguments   []*jsonExpr     `json:"arguments,omitempty"`
	ValueType   string          `json:"value_type,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
}

// jsonUint accepts a number or a decimal string.
type jsonUint uint64

func (u jsonUint) MarshalJSON() ([]byte, error) {
	if u > math.MaxUint32 {
		return json.Marshal(strconv.FormatUint(uint64(u), 10))
	}
	return []byte(strconv.FormatUint(uint64(u), 10)), nil
}

func (u *jsonUint) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", b)
	}
	*u = jsonUint(n)
	return nil
}

func MarshalRulesJSON(rules []Rule) ([]byte, error) {
	out := make([]jsonRule, len(rules))
	for i := range rules {
		r := &rules[i]
		e, err := toJSONExpr(r.AST)
		if err != nil {
			return nil, err
		}
		out[i] = jsonRule{Index: r.Index, Name: r.Name, Note: r.Note, Price: jsonUint(r.Price), Status: uint8(r.Status), AST: e}
	}
	return json.Marshal(out)
}

func UnmarshalRulesJSON(b []byte) ([]Rule, error) {
	var in []jsonRule
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, errorf(ErrJSONValue, "rules", "%v", err)
	}
	rules := make([]Rule, len(in))
	for i, jr := range in {
		key := fmt.Sprintf("rules[%d]", i)
		if jr.Status > uint8(RuleOn) {
			return nil, errorf(ErrUndefinedRuleStatus, key+".status", "%d", jr.Status)
		}
		e, err := fromJSONExpr(key+".ast", jr.AST)
		if err != nil {
			return nil, err
		}
		rules[i] = Rule{Index: jr.Index, Name: jr.Name, Note: jr.Note, Price: uint64(jr.Price), Status: RuleStatus(jr.Status), AST: e}
	}
	return rules, nil
}

func toJSONExpr(e Expression) (*jsonExpr, error) {
	switch x := e.(type) {
	case *Operator:
		subs, err := toJSONExprs(x.Expressions)
		if err != nil {
			return nil, err
		}
		return &jsonExpr{Type: "operator", Symbol: x.Symbol.String(), Expressions: subs}, nil
	case *Function:
		args, err := toJSONExprs(x.Arguments)
		if err != nil {
			return nil, err
		}
		return &jsonExpr{Type: "function", Name: x.Name.String(), Arguments: args}, nil
	case *Variable:
		return &jsonExpr{Type: "variable", Name: x.Name.String()}, nil
	case *Value:
		raw, err := valueToJSON(x)
		if err != nil {
			return nil, err
		}
		return &jsonExpr{Type: "value", ValueType: x.Kind.String(), Value: raw}, nil
	}
	return nil, errorf(ErrUndefinedExpression, "", "%T", e)
}

func toJSONExprs(es []Expression) ([]*jsonExpr, error) {
	out := make([]*jsonExpr, len(es))
	for i, e := range es {
		j, err := toJSONExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return out, nil
}

func valueToJSON(v *Value) (json.RawMessage, error) {
	var x any
	switch v.Kind {
	case ValueBool:
		x = v.Bool
	case ValueUint8, ValueUint32, ValueUint64:
		x = jsonUint(v.Int)
	case ValueBinary:
		x = hexutil.Encode(v.Bytes)
	case ValueBinaryVec:
		list := make([]string, len(v.BytesList))
		for i, b := range v.BytesList {
			list[i] = hexutil.Encode(b)
		}
		x = list
	case ValueString:
		x = v.Str
	case ValueStringVec:
		list := v.StrList
		if list == nil {
			list = []string{}
		}
		x = list
	case ValueCharsetType:
		x = v.CharSet.String()
	default:
		return nil, errorf(ErrUndefinedValueType, "", "%d", v.Kind)
	}
	return json.Marshal(x)
}

func fromJSONExpr(key string, j *jsonExpr) (Expression, error) {
	if j == nil {
		return nil, errorf(ErrJSONValue, key, "missing expression")
	}
	switch j.Type {
	case "operator":
		sym, ok := ParseSymbol(j.Symbol)
		if !ok {
			return nil, errorf(ErrUndefinedOperator, key+".symbol", "%q", j.Symbol)
		}
		subs, err := fromJSONExprs(key+".expressions", j.Expressions)
		if err != nil {
			return nil, err
		}
		return &Operator{Symbol: sym, Expressions: subs}, nil
	case "function":
		name, ok := ParseFnName(j.Name)
		if !ok {
			return nil, errorf(ErrUndefinedFunction, key+".name", "%q", j.Name)
		}
		args, err := fromJSONExprs(key+".arguments", j.Arguments)
		if err != nil {
			return nil, err
		}
		return &Function{Name: name, Arguments: args}, nil
	case "variable":
		name, ok := ParseVarName(j.Name)
		if !ok {
			return nil, errorf(ErrUndefinedVariable, key+".name", "%q", j.Name)
		}
		return &Variable{Name: name}, nil
	case "value":
		vt, ok := ParseValueType(j.ValueType)
		if !ok {
			return nil, errorf(ErrUndefinedValueType, key+".value_type", "%q", j.ValueType)
		}
		return valueFromJSON(key+".value", vt, j.Value)
	}
	return nil, errorf(ErrUndefinedExpression, key+".type", "%q", j.Type)
}

func fromJSONExprs(key string, js []*jsonExpr) ([]Expression, error) {
	out := make([]Expression, len(js))
	for i, j := range js {
		e, err := fromJSONExpr(fmt.Sprintf("%s[%d]", key, i), j)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func valueFromJSON(key string, vt ValueType, raw json.RawMessage) (*Value, error) {
	bad := func(err error) error { return errorf(ErrJSONValue, key, "%s: %v", vt, err) }
	switch vt {
	case ValueBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, bad(err)
		}
		return Bool(b), nil
	case ValueUint8, ValueUint32, ValueUint64:
		var n jsonUint
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, bad(err)
		}
		limit := map[ValueType]uint64{ValueUint8: math.MaxUint8, ValueUint32: math.MaxUint32, ValueUint64: math.MaxUint64}[vt]
		if uint64(n) > limit {
			return nil, bad(fmt.Errorf("%d overflows", uint64(n)))
		}
		return &Value{Kind: vt, Int: uint64(n)}, nil
	case ValueBinary:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, bad(err)
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, bad(err)
		}
		return Binary(b), nil
	case ValueBinaryVec:
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, bad(err)
		}
		out := make([][]byte, len(list))
		for i, s := range list {
			b, err := hexutil.Decode(s)
			if err != nil {
				return nil, bad(err)
			}
			out[i] = b
		}
		return BinaryVec(out...), nil
	case ValueString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, bad(err)
		}
		return String(s), nil
	case ValueStringVec:
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, bad(err)
		}
		return StringVec(list...), nil
	case ValueCharsetType:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, bad(err)
		}
		cs, ok := types.ParseCharSetType(s)
		if !ok {
			return nil, errorf(ErrUndefinedCharSet, key, "%q", s)
		}
		return Charset(cs), nil
	}
	return nil, errorf(ErrUndefinedValueType, key, "%d", vt)
}
