package ast

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"das.dev/verifier/core"
	"das.dev/verifier/types"
)

// Env is the account a rule set is evaluated against. Account is the full
// name including the parent suffix; Chars covers the label only.
type Env struct {
	Account string
	Chars   types.AccountChars
}

func (env *Env) variable(key string, name VarName) (*Value, error) {
	switch name {
	case VarAccount:
		return String(env.Account), nil
	case VarAccountChars:
		list := make([]string, len(env.Chars))
		for i, c := range env.Chars {
			if !utf8.Valid(c.Bytes) {
				return nil, errorf(ErrParseUtf8, fmt.Sprintf("%s[%d]", key, i), "")
			}
			list[i] = string(c.Bytes)
		}
		return StringVec(list...), nil
	case VarAccountLength:
		return Uint32(uint32(len(env.Chars))), nil
	}
	return nil, errorf(ErrUndefinedVariable, key, "%d", name)
}

// Eval reduces e to a literal.
func Eval(key string, e Expression, env *Env) (*Value, error) {
	switch x := e.(type) {
	case *Operator:
		return evalOperator(key, x, env)
	case *Function:
		return evalFunction(key, x, env)
	case *Variable:
		return env.variable(key, x.Name)
	case *Value:
		return x, nil
	}
	return nil, errorf(ErrUndefinedExpression, key, "%T", e)
}

func evalBool(key string, e Expression, env *Env) (bool, error) {
	v, err := Eval(key, e, env)
	if err != nil {
		return false, err
	}
	if v.Kind != ValueBool {
		return false, errorf(ErrParamType, key, "expected bool, got %s", v.Kind)
	}
	return v.Bool, nil
}

func evalOperator(key string, op *Operator, env *Env) (*Value, error) {
	exprKey := func(i int) string { return fmt.Sprintf("%s.expressions[%d]", key, i) }
	switch op.Symbol {
	case SymbolAnd, SymbolOr:
		if len(op.Expressions) < 2 {
			return nil, errorf(ErrParamLength, key, "%s takes at least 2 expressions, got %d", op.Symbol, len(op.Expressions))
		}
		// No short-circuit: every operand must type-check.
		acc := op.Symbol == SymbolAnd
		for i, sub := range op.Expressions {
			b, err := evalBool(exprKey(i), sub, env)
			if err != nil {
				return nil, err
			}
			if op.Symbol == SymbolAnd {
				acc = acc && b
			} else {
				acc = acc || b
			}
		}
		return Bool(acc), nil
	case SymbolNot:
		if len(op.Expressions) != 1 {
			return nil, errorf(ErrParamLength, key, "not takes 1 expression, got %d", len(op.Expressions))
		}
		b, err := evalBool(exprKey(0), op.Expressions[0], env)
		if err != nil {
			return nil, err
		}
		return Bool(!b), nil
	case SymbolGt, SymbolGte, SymbolLt, SymbolLte, SymbolEqual:
		if len(op.Expressions) != 2 {
			return nil, errorf(ErrParamLength, key, "%s takes 2 expressions, got %d", op.Symbol, len(op.Expressions))
		}
		l, err := Eval(exprKey(0), op.Expressions[0], env)
		if err != nil {
			return nil, err
		}
		r, err := Eval(exprKey(1), op.Expressions[1], env)
		if err != nil {
			return nil, err
		}
		return compare(key, op.Symbol, l, r)
	}
	return nil, errorf(ErrUndefinedOperator, key, "%d", op.Symbol)
}

// compare accepts any pair of integer literals; widths may differ.
func compare(key string, sym SymbolType, l, r *Value) (*Value, error) {
	if !l.isInt() {
		return nil, errorf(ErrValueOperator, key, "%s is not comparable", l.Kind)
	}
	if !r.isInt() {
		return nil, errorf(ErrValueOperator, key, "can not compare %s with %s", l.Kind, r.Kind)
	}
	var ok bool
	switch sym {
	case SymbolGt:
		ok = l.Int > r.Int
	case SymbolGte:
		ok = l.Int >= r.Int
	case SymbolLt:
		ok = l.Int < r.Int
	case SymbolLte:
		ok = l.Int <= r.Int
	case SymbolEqual:
		ok = l.Int == r.Int
	}
	return Bool(ok), nil
}

func evalFunction(key string, fn *Function, env *Env) (*Value, error) {
	if len(fn.Arguments) != 2 {
		return nil, errorf(ErrParamLength, key, "%s takes 2 arguments, got %d", fn.Name, len(fn.Arguments))
	}
	argKey := func(i int) string { return fmt.Sprintf("%s.arguments[%d]", key, i) }
	switch fn.Name {
	case FnIncludeChars, FnIncludeWords:
		if err := expectVariable(argKey(0), fn.Arguments[0], VarAccount); err != nil {
			return nil, err
		}
		list, err := evalKind(argKey(1), fn.Arguments[1], env, ValueStringVec)
		if err != nil {
			return nil, err
		}
		for _, s := range list.StrList {
			if strings.Contains(env.Account, s) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case FnOnlyIncludeCharset:
		if err := expectVariable(argKey(0), fn.Arguments[0], VarAccountChars); err != nil {
			return nil, err
		}
		cs, err := evalKind(argKey(1), fn.Arguments[1], env, ValueCharsetType)
		if err != nil {
			return nil, err
		}
		for i, c := range env.Chars {
			if !c.CharSet.Defined() {
				return nil, errorf(ErrUndefinedCharSet, key, "account_chars[%d] has charset %d", i, uint32(c.CharSet))
			}
			if c.CharSet != cs.CharSet {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	case FnInList:
		if err := expectVariable(argKey(0), fn.Arguments[0], VarAccount); err != nil {
			return nil, err
		}
		list, err := evalKind(argKey(1), fn.Arguments[1], env, ValueBinaryVec)
		if err != nil {
			return nil, err
		}
		id := core.AccountID([]byte(env.Account))
		for _, item := range list.BytesList {
			if bytes.Equal(item, id[:]) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	}
	return nil, errorf(ErrUndefinedFunction, key, "%d", fn.Name)
}

func expectVariable(key string, e Expression, want VarName) error {
	v, ok := e.(*Variable)
	if !ok || v.Name != want {
		return errorf(ErrParamType, key, "expected variable %s", want)
	}
	return nil
}

func evalKind(key string, e Expression, env *Env, want ValueType) (*Value, error) {
	v, err := Eval(key, e, env)
	if err != nil {
		return nil, err
	}
	if v.Kind != want {
		return nil, errorf(ErrParamType, key, "expected %s, got %s", want, v.Kind)
	}
	return v, nil
}
