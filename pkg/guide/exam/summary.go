package exam

import (
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
)

// DefaultPassRule passes a learner who completed every step.
const DefaultPassRule = "completed == total"

// Summary is a read-only snapshot of an exam run.
type Summary struct {
	TotalSteps     int                      `json:"total_steps"`
	Completed      int                      `json:"completed"`
	TotalErrors    int                      `json:"total_errors"`
	TotalRollbacks int                      `json:"total_rollbacks"`
	StepDurations  map[string]time.Duration `json:"step_durations"`
	ErrorSteps     []string                 `json:"error_steps,omitempty"`
	Errors         []ErrorRecord            `json:"errors,omitempty"`
	Elapsed        time.Duration            `json:"elapsed"`
	Passed         bool                     `json:"passed"`
}

// Env is the variable set a pass rule is evaluated against.
func (s Summary) Env() map[string]any {
	return map[string]any{
		"total":           s.TotalSteps,
		"completed":       s.Completed,
		"errors":          s.TotalErrors,
		"rollbacks":       s.TotalRollbacks,
		"elapsed_seconds": s.Elapsed.Seconds(),
	}
}

// Grader evaluates a boolean expr rule over a Summary, e.g.
// "completed == total && errors <= 2".
type Grader struct {
	rule    string
	program *vm.Program
}

// NewGrader compiles rule. An empty rule means DefaultPassRule.
func NewGrader(rule string) (*Grader, error) {
	if rule == "" {
		rule = DefaultPassRule
	}
	program, err := expr.Compile(rule, expr.Env(Summary{}.Env()), expr.AsBool())
	if err != nil {
		return nil, errors.Wrapf(err, "compile pass rule %q", rule)
	}
	return &Grader{rule: rule, program: program}, nil
}

// Rule returns the source of the compiled rule.
func (g *Grader) Rule() string { return g.rule }

// Grade evaluates the rule and returns the summary with Passed set.
func (g *Grader) Grade(s Summary) (Summary, error) {
	out, err := expr.Run(g.program, s.Env())
	if err != nil {
		return s, errors.Wrapf(err, "eval pass rule %q", g.rule)
	}
	passed, ok := out.(bool)
	if !ok {
		return s, errors.Errorf("pass rule %q did not return bool (got %T)", g.rule, out)
	}
	s.Passed = passed
	return s, nil
}
