package ast

import "fmt"

// Match returns the first enabled rule whose AST evaluates to true, or nil
// when none does. Rules that are switched off are skipped without being
// evaluated.
func Match(rules []Rule, env *Env) (*Rule, error) {
	for i := range rules {
		r := &rules[i]
		if r.Status == RuleOff {
			continue
		}
		key := fmt.Sprintf("rules[%d].ast", i)
		switch r.AST.(type) {
		case *Operator, *Function:
		default:
			return nil, errorf(ErrFunctionOrOperator, key, "root is %s", typeName(r.AST))
		}
		v, err := Eval(key, r.AST, env)
		if err != nil {
			return nil, err
		}
		if v.Kind != ValueBool {
			return nil, errorf(ErrReturnType, key, "rule returned %s", v.Kind)
		}
		if v.Bool {
			return r, nil
		}
	}
	return nil, nil
}

// HasEnabled reports whether any rule is switched on.
func HasEnabled(rules []Rule) bool {
	for i := range rules {
		if rules[i].Status == RuleOn {
			return true
		}
	}
	return false
}

func typeName(e Expression) string {
	if e == nil {
		return "empty"
	}
	return e.Type().String()
}
