// Package formula implements the sandboxed expression language for
// user-authored moratory interest formulas. Formulas are parsed by a
// recursive-descent parser over a closed grammar and executed by a
// tree-walking evaluator: the only reachable names are the variables passed
// in per evaluation and a whitelisted set of math functions, there are no
// loops, and evaluation aborts once a step budget is exhausted. A formula can
// therefore neither observe nor mutate anything outside its own evaluation.
package formula

import (
	"fmt"
	"math"

	"github.com/finbook/loan-engine/pkg/constants"
)

// EvalError reports a formula that failed to parse or evaluate. It is always
// recoverable: callers display the message next to the formula editor and
// omit the computed figure.
type EvalError struct {
	Msg string
	Pos int
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("formula error: %s", e.Msg)
}

// mathFuncs is the whitelist of functions reachable from a formula, with
// their arity; -1 means variadic with at least two arguments.
var mathFuncs = map[string]int{
	"ceil":  1,
	"floor": 1,
	"round": 1,
	"abs":   1,
	"sqrt":  1,
	"pow":   2,
	"min":   -1,
	"max":   -1,
}

// Evaluate parses and runs a formula against the given variables in one call.
// Variable values may be float64 or string.
func Evaluate(source string, vars map[string]any) (float64, error) {
	prog, err := Parse(source)
	if err != nil {
		return 0, err
	}
	return prog.Evaluate(vars)
}

// Evaluate runs a parsed formula against the given variables. The result is
// the value of the first return statement, or of the final expression
// statement when the formula has no return. Evaluation is deterministic:
// the same program and variables always produce the same result.
func (prog *Program) Evaluate(vars map[string]any) (float64, error) {
	env := make(map[string]any, len(vars)+4)
	for name, val := range vars {
		switch val.(type) {
		case float64, string:
			env[name] = val
		default:
			return 0, &EvalError{Msg: fmt.Sprintf("unsupported type for variable '%s'", name)}
		}
	}

	ev := &evaluator{env: env, budget: constants.MaxFormulaSteps}
	result, returned, err := ev.runBlock(prog.stmts)
	if err != nil {
		return 0, err
	}
	if !returned && result == nil {
		return 0, &EvalError{Msg: "formula did not produce a value"}
	}

	num, ok := result.(float64)
	if !ok {
		return 0, &EvalError{Msg: fmt.Sprintf("formula produced %s, expected a number", describe(result))}
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, &EvalError{Msg: "formula did not produce a finite number"}
	}
	return num, nil
}

type evaluator struct {
	env    map[string]any
	steps  int
	budget int
}

func (ev *evaluator) step(pos int) error {
	ev.steps++
	if ev.steps > ev.budget {
		return &EvalError{Msg: "formula exceeded the evaluation step limit", Pos: pos}
	}
	return nil
}

// runBlock executes statements in order. It returns the produced value, and
// whether that value came from an explicit return.
func (ev *evaluator) runBlock(stmts []stmt) (any, bool, error) {
	var last any
	for _, s := range stmts {
		switch s := s.(type) {
		case declStmt:
			val, err := ev.eval(s.expr)
			if err != nil {
				return nil, false, err
			}
			ev.env[s.name] = val
			last = nil

		case assignStmt:
			if _, ok := ev.env[s.name]; !ok {
				return nil, false, &EvalError{Msg: fmt.Sprintf("unknown variable '%s'", s.name), Pos: s.pos}
			}
			val, err := ev.eval(s.expr)
			if err != nil {
				return nil, false, err
			}
			ev.env[s.name] = val
			last = nil

		case ifStmt:
			cond, err := ev.eval(s.cond)
			if err != nil {
				return nil, false, err
			}
			b, ok := cond.(bool)
			if !ok {
				return nil, false, &EvalError{Msg: fmt.Sprintf("if condition is %s, expected a boolean", describe(cond)), Pos: s.pos}
			}
			body := s.then
			if !b {
				body = s.elseBody
			}
			val, returned, err := ev.runBlock(body)
			if err != nil {
				return nil, false, err
			}
			if returned {
				return val, true, nil
			}
			if val != nil {
				last = val
			}

		case returnStmt:
			val, err := ev.eval(s.expr)
			if err != nil {
				return nil, false, err
			}
			return val, true, nil

		case exprStmt:
			val, err := ev.eval(s.expr)
			if err != nil {
				return nil, false, err
			}
			last = val
		}
	}
	return last, false, nil
}

func (ev *evaluator) eval(e expr) (any, error) {
	switch e := e.(type) {
	case numberLit:
		return e.val, nil

	case stringLit:
		return e.val, nil

	case boolLit:
		return e.val, nil

	case identExpr:
		if err := ev.step(e.pos); err != nil {
			return nil, err
		}
		val, ok := ev.env[e.name]
		if !ok {
			return nil, &EvalError{Msg: fmt.Sprintf("unknown variable '%s'", e.name), Pos: e.pos}
		}
		return val, nil

	case unaryExpr:
		if err := ev.step(e.pos); err != nil {
			return nil, err
		}
		val, err := ev.eval(e.operand)
		if err != nil {
			return nil, err
		}
		switch e.op {
		case "-":
			num, ok := val.(float64)
			if !ok {
				return nil, &EvalError{Msg: fmt.Sprintf("cannot negate %s", describe(val)), Pos: e.pos}
			}
			return -num, nil
		case "!":
			b, ok := val.(bool)
			if !ok {
				return nil, &EvalError{Msg: fmt.Sprintf("'!' requires a boolean, found %s", describe(val)), Pos: e.pos}
			}
			return !b, nil
		}
		return nil, &EvalError{Msg: fmt.Sprintf("unsupported operator '%s'", e.op), Pos: e.pos}

	case binaryExpr:
		return ev.evalBinary(e)

	case ternaryExpr:
		if err := ev.step(e.pos); err != nil {
			return nil, err
		}
		cond, err := ev.eval(e.cond)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(bool)
		if !ok {
			return nil, &EvalError{Msg: fmt.Sprintf("ternary condition is %s, expected a boolean", describe(cond)), Pos: e.pos}
		}
		if b {
			return ev.eval(e.then)
		}
		return ev.eval(e.elseVal)

	case callExpr:
		return ev.evalCall(e)
	}

	return nil, &EvalError{Msg: "unsupported expression"}
}

func (ev *evaluator) evalBinary(e binaryExpr) (any, error) {
	if err := ev.step(e.pos); err != nil {
		return nil, err
	}

	left, err := ev.eval(e.left)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit.
	if e.op == "&&" || e.op == "||" {
		lb, ok := left.(bool)
		if !ok {
			return nil, &EvalError{Msg: fmt.Sprintf("'%s' requires booleans, found %s", e.op, describe(left)), Pos: e.pos}
		}
		if (e.op == "&&" && !lb) || (e.op == "||" && lb) {
			return lb, nil
		}
		right, err := ev.eval(e.right)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, &EvalError{Msg: fmt.Sprintf("'%s' requires booleans, found %s", e.op, describe(right)), Pos: e.pos}
		}
		return rb, nil
	}

	right, err := ev.eval(e.right)
	if err != nil {
		return nil, err
	}

	// Equality works across matching types; everything else is numeric.
	if e.op == "==" || e.op == "!=" {
		eq, err := valuesEqual(left, right, e.pos)
		if err != nil {
			return nil, err
		}
		if e.op == "!=" {
			return !eq, nil
		}
		return eq, nil
	}

	ln, lok := left.(float64)
	rn, rok := right.(float64)
	if !lok || !rok {
		return nil, &EvalError{Msg: fmt.Sprintf("'%s' requires numbers, found %s and %s", e.op, describe(left), describe(right)), Pos: e.pos}
	}

	switch e.op {
	case "+":
		return ln + rn, nil
	case "-":
		return ln - rn, nil
	case "*":
		return ln * rn, nil
	case "/":
		if rn == 0 {
			return nil, &EvalError{Msg: "division by zero", Pos: e.pos}
		}
		return ln / rn, nil
	case "%":
		if rn == 0 {
			return nil, &EvalError{Msg: "division by zero", Pos: e.pos}
		}
		return math.Mod(ln, rn), nil
	case "**":
		return math.Pow(ln, rn), nil
	case "<":
		return ln < rn, nil
	case "<=":
		return ln <= rn, nil
	case ">":
		return ln > rn, nil
	case ">=":
		return ln >= rn, nil
	}

	return nil, &EvalError{Msg: fmt.Sprintf("unsupported operator '%s'", e.op), Pos: e.pos}
}

func (ev *evaluator) evalCall(e callExpr) (any, error) {
	if err := ev.step(e.pos); err != nil {
		return nil, err
	}

	arity := mathFuncs[e.fn]
	if arity >= 0 && len(e.args) != arity {
		return nil, &EvalError{Msg: fmt.Sprintf("%s expects %d argument(s), found %d", e.fn, arity, len(e.args)), Pos: e.pos}
	}
	if arity < 0 && len(e.args) < 2 {
		return nil, &EvalError{Msg: fmt.Sprintf("%s expects at least 2 arguments, found %d", e.fn, len(e.args)), Pos: e.pos}
	}

	args := make([]float64, len(e.args))
	for i, a := range e.args {
		val, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		num, ok := val.(float64)
		if !ok {
			return nil, &EvalError{Msg: fmt.Sprintf("%s requires numeric arguments, found %s", e.fn, describe(val)), Pos: e.pos}
		}
		args[i] = num
	}

	switch e.fn {
	case "ceil":
		return math.Ceil(args[0]), nil
	case "floor":
		return math.Floor(args[0]), nil
	case "round":
		return math.Round(args[0]), nil
	case "abs":
		return math.Abs(args[0]), nil
	case "sqrt":
		if args[0] < 0 {
			return nil, &EvalError{Msg: "sqrt of a negative number", Pos: e.pos}
		}
		return math.Sqrt(args[0]), nil
	case "pow":
		return math.Pow(args[0], args[1]), nil
	case "min":
		result := args[0]
		for _, a := range args[1:] {
			result = math.Min(result, a)
		}
		return result, nil
	case "max":
		result := args[0]
		for _, a := range args[1:] {
			result = math.Max(result, a)
		}
		return result, nil
	}

	return nil, &EvalError{Msg: fmt.Sprintf("function '%s' is not available in formulas", e.fn), Pos: e.pos}
}

func valuesEqual(left, right any, pos int) (bool, error) {
	switch l := left.(type) {
	case float64:
		if r, ok := right.(float64); ok {
			return l == r, nil
		}
	case string:
		if r, ok := right.(string); ok {
			return l == r, nil
		}
	case bool:
		if r, ok := right.(bool); ok {
			return l == r, nil
		}
	}
	return false, &EvalError{Msg: fmt.Sprintf("cannot compare %s with %s", describe(left), describe(right)), Pos: pos}
}

func describe(val any) string {
	switch val.(type) {
	case float64:
		return "a number"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case nil:
		return "nothing"
	}
	return "an unsupported value"
}
