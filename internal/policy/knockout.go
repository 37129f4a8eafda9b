// Package policy provides the CEL-based knockout rule engine. Knockout
// rules are hard-fail conditions evaluated over application features
// and facet scores; any match forces rejection regardless of the
// aggregate score.
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine holds the compiled knockout rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []compiledRule
}

type compiledRule struct {
	rule    domain.KnockoutRule
	program cel.Program
}

// NewEngine creates a knockout engine with the given rules compiled at
// startup. Nil rules means DefaultKnockoutRules.
func NewEngine(rules []domain.KnockoutRule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("monthly_salary", cel.DoubleType),
		cel.Variable("existing_emi", cel.DoubleType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("property_valuation", cel.DoubleType),
		cel.Variable("credit_score", cel.IntType),
		cel.Variable("is_non_agricultural", cel.BoolType),
		cel.Variable("has_existing_mortgage", cel.BoolType),
		// Facet risk scores, keyed <facet>_risk, plus employment status.
		cel.Variable("employment_risk", cel.DoubleType),
		cel.Variable("documents_risk", cel.DoubleType),
		cel.Variable("na_document_risk", cel.DoubleType),
		cel.Variable("fraud_risk", cel.DoubleType),
		cel.Variable("financial_risk", cel.DoubleType),
		cel.Variable("ai_prediction_risk", cel.DoubleType),
		cel.Variable("employment_status", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{env: env}
	if rules == nil {
		rules = domain.DefaultKnockoutRules()
	}
	if err := e.Load(rules); err != nil {
		return nil, err
	}
	return e, nil
}

// Load replaces the rule set. Compilation failure leaves the previous
// set intact.
func (e *Engine) Load(rules []domain.KnockoutRule) error {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		program, err := e.compile(rule)
		if err != nil {
			return err
		}
		compiled = append(compiled, compiledRule{rule: rule, program: program})
	}

	e.mu.Lock()
	e.compiled = compiled
	e.mu.Unlock()
	return nil
}

// Validate compiles a rule without loading it.
func (e *Engine) Validate(rule domain.KnockoutRule) error {
	_, err := e.compile(rule)
	return err
}

func (e *Engine) compile(rule domain.KnockoutRule) (cel.Program, error) {
	ast, issues := e.env.Compile(rule.Expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile knockout %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("knockout %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for knockout %s: %w", rule.ID, err)
	}
	return program, nil
}

// Evaluate runs every knockout rule against the application and its
// facet reports, returning the reasons of all matches. A rule that
// errors at runtime is skipped; knockouts must never invent a
// rejection out of an evaluation fault.
func (e *Engine) Evaluate(app *domain.Application, reports []*domain.VerificationReport) []string {
	activation := map[string]any{
		"monthly_salary":        app.MonthlySalary,
		"existing_emi":          app.ExistingEMI,
		"loan_amount":           app.LoanAmount,
		"property_valuation":    app.PropertyValuation,
		"credit_score":          int64(app.CreditScore),
		"is_non_agricultural":   app.IsNonAgricultural,
		"has_existing_mortgage": app.HasExistingMortgage,
		"employment_status":     "",
	}
	for _, facet := range domain.Facets() {
		activation[strings.ReplaceAll(facet, "-", "_")+"_risk"] = 0.0
	}
	for _, rep := range reports {
		activation[rep.Facet+"_risk"] = rep.RiskScore
		if rep.Facet == domain.FacetEmployment {
			activation["employment_status"] = rep.Status
		}
	}

	e.mu.RLock()
	compiled := e.compiled
	e.mu.RUnlock()

	var reasons []string
	for _, c := range compiled {
		out, _, err := c.program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			reasons = append(reasons, c.rule.Reason)
		}
	}
	return reasons
}

// Rules returns the currently loaded knockout rules.
func (e *Engine) Rules() []domain.KnockoutRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rules := make([]domain.KnockoutRule, len(e.compiled))
	for i, c := range e.compiled {
		rules[i] = c.rule
	}
	return rules
}

// RulesCount returns the number of loaded knockout rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}
