package rules

import (
	"fmt"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"golang.org/x/sync/errgroup"
)

// Engine runs its rules concurrently against one snapshot.
type Engine struct {
	rules []Rule
}

func NewEngine(rules ...Rule) *Engine {
	rs := make([]Rule, len(rules))
	copy(rs, rules)
	return &Engine{rules: rs}
}

func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Outcome collects every rule's result. Violations and Errors follow rule declaration order;
// ordering for presentation is the reporter's job.
type Outcome struct {
	Violations []domain.Violation
	Errors     []*domain.RuleError
	Executed   []string
}

// Run evaluates all rules and waits for every one of them. A failing or panicking rule is
// recorded in Outcome.Errors and does not affect its siblings.
func (e *Engine) Run(s *Snapshot) Outcome {
	results := make([][]domain.Violation, len(e.rules))
	failures := make([]*domain.RuleError, len(e.rules))

	var g errgroup.Group
	for i, r := range e.rules {
		g.Go(func() error {
			results[i], failures[i] = runOne(r, s)
			return nil
		})
	}
	_ = g.Wait()

	var out Outcome
	for i, r := range e.rules {
		out.Executed = append(out.Executed, r.Name())
		if failures[i] != nil {
			out.Errors = append(out.Errors, failures[i])
			continue
		}
		out.Violations = append(out.Violations, results[i]...)
	}
	return out
}

func runOne(r Rule, s *Snapshot) (vs []domain.Violation, rerr *domain.RuleError) {
	defer func() {
		if p := recover(); p != nil {
			vs = nil
			rerr = &domain.RuleError{Rule: r.Name(), Cause: fmt.Errorf("panic: %v", p)}
		}
	}()
	vs, err := r.Check(s)
	if err != nil {
		return nil, &domain.RuleError{Rule: r.Name(), Cause: err}
	}
	return vs, nil
}
