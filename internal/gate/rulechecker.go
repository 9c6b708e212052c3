package gate

import (
	"fmt"
	"strings"

	"context"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// RuleChecker evaluates outputs against a constitution written as Mangle
// (Datalog) rules. The program is parsed and analyzed once at construction;
// each Check runs a fresh fact store, asserts the output's facts, evaluates
// to fixpoint and reads back the derived predicates:
//
//	principle(Name)               - every principle the constitution covers
//	violation(Principle, Sev)     - sev in "critical"|"error"|"warning"|"info"
//	needs_review(Flag)            - any fact means clarification is required
//
// The EDB predicates the checker asserts are documented on DefaultConstitution.
type RuleChecker struct {
	program *analysis.ProgramInfo
}

// Severity weights for the compliance score. One critical violation zeroes
// a single-principle constitution; lighter findings shave proportionally.
var severityWeight = map[string]float64{
	"critical": 1.0,
	"error":    0.6,
	"warning":  0.3,
	"info":     0.1,
}

// NewRuleChecker compiles a constitution. Pass DefaultConstitution for the
// built-in baseline. A constitution that fails to parse or analyze is a
// construction error, never a degraded runtime mode.
func NewRuleChecker(constitution string) (*RuleChecker, error) {
	unit, err := parse.Unit(strings.NewReader(constitution))
	if err != nil {
		return nil, fmt.Errorf("constitution syntax error: %w", err)
	}
	program, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("constitution analysis error: %w", err)
	}
	logging.Gate("rule checker compiled: %d predicates declared", len(program.Decls))
	return &RuleChecker{program: program}, nil
}

// Check implements types.ComplianceChecker.
func (rc *RuleChecker) Check(_ context.Context, actor string, actionType types.OutputType,
	resource string, checkCtx map[string]any, confidence float64) (*types.ComplianceResult, error) {

	store := factstore.NewSimpleInMemoryStore()
	for _, f := range rc.outputFacts(actor, actionType, resource, checkCtx, confidence) {
		atom, err := parse.Atom(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fact %q: %w", f, err)
		}
		store.Add(atom)
	}

	if err := engine.EvalProgram(rc.program, store); err != nil {
		return nil, fmt.Errorf("constitution evaluation failed: %w", err)
	}

	res := &types.ComplianceResult{ComplianceScore: 1.0}

	for _, f := range rc.query(store, "principle", 1) {
		res.PrinciplesChecked = append(res.PrinciplesChecked, f[0])
	}
	for _, f := range rc.query(store, "violation", 2) {
		res.Violations = append(res.Violations, types.ComplianceViolation{
			Principle: f[0],
			Severity:  severityFromRule(f[1]),
		})
	}
	res.NeedsClarification = len(rc.query(store, "needs_review", 1)) > 0

	// Violation mass is normalized by the number of principles checked so a
	// richer constitution is not automatically a harsher one.
	if n := len(res.PrinciplesChecked); n > 0 && len(res.Violations) > 0 {
		var mass float64
		for _, v := range rc.query(store, "violation", 2) {
			mass += severityWeight[v[1]]
		}
		res.ComplianceScore = clamp01(1 - mass/float64(n))
	} else if len(res.Violations) > 0 {
		res.ComplianceScore = 0
	}

	return res, nil
}

// outputFacts renders the EDB facts for one check. Confidence is asserted
// in permille so the rules can use integer comparisons.
func (rc *RuleChecker) outputFacts(actor string, actionType types.OutputType,
	resource string, checkCtx map[string]any, confidence float64) []string {

	facts := []string{
		fmt.Sprintf("output_component(%q)", actor),
		fmt.Sprintf("output_type(%q)", string(actionType)),
		fmt.Sprintf("output_resource(%q)", resource),
		fmt.Sprintf("output_confidence_pm(%d)", int64(confidence*1000)),
	}

	if tags, ok := checkCtx["policy_tags"].([]types.PolicyTag); ok {
		for _, tag := range tags {
			facts = append(facts, fmt.Sprintf("policy_tag(%q, %q)", tag.Name, string(tag.Status)))
		}
	}
	if hasErrors, ok := checkCtx["has_errors"].(bool); ok && hasErrors {
		facts = append(facts, `has_errors("true")`)
	}
	if approval, ok := checkCtx["requires_approval"].(bool); ok && approval {
		facts = append(facts, `requires_approval("true")`)
	}
	return facts
}

// query reads all ground facts for a predicate, returning string args.
func (rc *RuleChecker) query(store factstore.FactStore, name string, arity int) [][]string {
	var out [][]string
	for pred := range rc.program.Decls {
		if pred.Symbol != name || pred.Arity != arity {
			continue
		}
		store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
			args := make([]string, len(a.Args))
			for i, term := range a.Args {
				if c, ok := term.(ast.Constant); ok {
					args[i] = c.Symbol
				}
			}
			out = append(out, args)
			return nil
		})
		break
	}
	return out
}

func severityFromRule(s string) types.Severity {
	switch s {
	case "critical":
		return types.SeverityCritical
	case "error":
		return types.SeverityError
	case "warning":
		return types.SeverityWarning
	}
	return types.SeverityInfo
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
