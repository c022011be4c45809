// Package rules provides the CEL-Go based rule evaluation engine.
package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Evaluator is the strategy that decides whether a single rule
// triggers for a given context. Implementations must never return an
// error to the caller: a malformed expression, an undefined variable or
// an evaluation failure is absorbed, logged, and treated as "rule did
// not trigger". A broken rule silently stops contributing signal
// instead of aborting the pipeline.
//
// Validate is the strict counterpart for the rule-management surface:
// it reports compile errors so broken expressions are rejected before
// they are stored.
type Evaluator interface {
	Evaluate(rule *domain.Rule, context map[string]any) bool
	Validate(expression string) error
}

// CELEvaluator evaluates rule expressions with CEL. Compiled programs
// are cached by expression text, so a rule update invalidates its own
// cache entry naturally.
type CELEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELEvaluator creates an evaluator with the fixed scoring context
// variables declared.
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		// Analysts write integer literals against double variables
		// ("amount > 2000"); allow the comparison.
		cel.CrossTypeNumericComparisons(true),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("ip_address", cel.StringType),
		cel.Variable("device_id", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("tx_count_10m", cel.IntType),
		cel.Variable("tx_count_30m", cel.IntType),
		cel.Variable("tx_count_24h", cel.IntType),
		cel.Variable("avg_amount_24h", cel.DoubleType),
		cel.Variable("usual_country", cel.StringType),
		cel.Variable("usual_ip", cel.StringType),
		cel.Variable("is_foreign_transaction", cel.BoolType),
		cel.Variable("amount_ratio_vs_avg", cel.DoubleType),
		cel.Variable("is_blacklisted_merchant", cel.BoolType),
		cel.Variable("is_whitelisted_merchant", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate returns true iff the rule's expression evaluates to true.
// Compile and evaluation errors are logged and reported as no-hit.
func (e *CELEvaluator) Evaluate(rule *domain.Rule, context map[string]any) bool {
	program, err := e.program(rule.Expression)
	if err != nil {
		slog.Error("rule expression failed to compile",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"error", err,
		)
		return false
	}

	out, _, err := program.Eval(context)
	if err != nil {
		slog.Error("rule evaluation failed",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"error", err,
		)
		return false
	}

	triggered, ok := out.(types.Bool)
	if !ok {
		slog.Error("rule expression did not produce a boolean",
			"rule_id", rule.ID,
			"rule_name", rule.Name,
			"got", out.Type().TypeName(),
		)
		return false
	}

	return bool(triggered)
}

// Validate compiles an expression without caching it, for use by the
// rule-management surface before a rule is stored.
func (e *CELEvaluator) Validate(expression string) error {
	_, err := e.compile(expression)
	return err
}

func (e *CELEvaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()

	return program, nil
}

func (e *CELEvaluator) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return program, nil
}
