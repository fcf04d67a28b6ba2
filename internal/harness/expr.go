package harness

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/roach88/docharness/internal/proc"
)

// exprCostLimit caps the evaluation cost of a single expression.
const exprCostLimit = 1_000_000

// ExprEvaluator compiles and evaluates CEL expressions for expr checks.
//
// Expressions see four variables:
//
//	exit_code   int
//	stdout      string
//	stderr      string
//	duration_ms int
//
// and must evaluate to a bool. Compiled programs are cached by source text.
type ExprEvaluator struct {
	env   *cel.Env
	mu    sync.Mutex
	cache map[string]cel.Program
}

// NewExprEvaluator creates an evaluator with the harness variables declared.
func NewExprEvaluator() (*ExprEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("exit_code", cel.IntType),
		cel.Variable("stdout", cel.StringType),
		cel.Variable("stderr", cel.StringType),
		cel.Variable("duration_ms", cel.IntType),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &ExprEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Check compiles expr and reports syntax or type errors.
func (e *ExprEvaluator) Check(expr string) error {
	_, err := e.program(expr)
	return err
}

// Eval evaluates expr against an invocation.
func (e *ExprEvaluator) Eval(expr string, inv *proc.Result) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"exit_code":   int64(inv.ExitCode),
		"stdout":      inv.Stdout,
		"stderr":      inv.Stderr,
		"duration_ms": inv.Duration.Milliseconds(),
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression must return bool, got %v", out.Type())
	}
	return v, nil
}

func (e *ExprEvaluator) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expr]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error: %w", issues.Err())
	}
	if out := ast.OutputType(); !reflect.DeepEqual(out, cel.BoolType) && !reflect.DeepEqual(out, cel.DynType) {
		return nil, fmt.Errorf("CEL expression %q must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := e.env.Program(ast, cel.CostLimit(exprCostLimit))
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	e.cache[expr] = prg
	return prg, nil
}

// assertExpr evaluates a CEL check.
func assertExpr(e *ExprEvaluator, expr string, obs *observation) error {
	ok, err := e.Eval(expr, obs.invocation)
	if err != nil {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: fmt.Sprintf("%s to evaluate to true", expr),
			Actual:   err.Error(),
		}
	}
	if !ok {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: fmt.Sprintf("%s to evaluate to true", expr),
			Actual:   "false",
		}
	}
	return nil
}
