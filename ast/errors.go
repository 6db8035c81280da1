package ast

import "fmt"

type ErrorKind string

const (
	ErrBytesToEntity       ErrorKind = "BytesToEntityFailed"
	ErrParseUtf8           ErrorKind = "ParseUtf8StringFailed"
	ErrUndefinedRuleStatus ErrorKind = "UndefinedRuleStatus"
	ErrUndefinedCharSet    ErrorKind = "UndefinedCharSetType"
	ErrUndefinedExpression ErrorKind = "UndefinedExpression"
	ErrUndefinedOperator   ErrorKind = "UndefinedOperator"
	ErrUndefinedFunction   ErrorKind = "UndefinedFunction"
	ErrUndefinedVariable   ErrorKind = "UndefinedVariableType"
	ErrUndefinedValueType  ErrorKind = "UndefinedValueType"
	ErrJSONValue           ErrorKind = "JsonValueError"
	ErrParamType           ErrorKind = "ParamTypeError"
	ErrParamLength         ErrorKind = "ParamLengthError"
	ErrReturnType          ErrorKind = "ReturnTypeError"
	ErrValueTypeMismatch   ErrorKind = "ValueTypeMismatch"
	ErrValueOperator       ErrorKind = "ValueOperatorUnsupported"
	ErrFunctionOrOperator  ErrorKind = "FunctionOrOperatorRequired"
	ErrRulesIndexUnordered ErrorKind = "RulesIndexUnordered"
	ErrRulesSizeMismatch   ErrorKind = "RulesSizeMismatch"
)

// Error locates a failure by key, a path such as "rules[0].ast.expressions[1]".
type Error struct {
	Kind   ErrorKind
	Key    string
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Key == "" && e.Detail == "":
		return string(e.Kind)
	case e.Key == "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Detail == "":
		return fmt.Sprintf("[%s] %s", e.Key, e.Kind)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Key, e.Kind, e.Detail)
}

func errorf(kind ErrorKind, key string, format string, args ...any) error {
	return &Error{Kind: kind, Key: key, Detail: fmt.Sprintf(format, args...)}
}
