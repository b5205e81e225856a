// Package report orders rule results into a read-only Report and renders it.
package report

import (
	"cmp"
	"slices"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/rules"
)

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Stats describes the scanned graph. Layers counts units per layer, UNASSIGNED included.
type Stats struct {
	Units         int            `json:"units" yaml:"units"`
	Edges         int            `json:"edges" yaml:"edges"`
	ExternalEdges int            `json:"external_edges" yaml:"external_edges"`
	Layers        map[string]int `json:"layers,omitempty" yaml:"layers,omitempty"`
}

// RuleFailure is the serialisable form of a domain.RuleError.
type RuleFailure struct {
	Rule  string `json:"rule" yaml:"rule"`
	Error string `json:"error" yaml:"error"`
}

// Report is a snapshot; nothing in this package mutates it after Build returns.
type Report struct {
	Status     Status             `json:"status" yaml:"status"`
	Violations []domain.Violation `json:"violations" yaml:"violations"`
	RuleErrors []RuleFailure      `json:"rule_errors,omitempty" yaml:"rule_errors,omitempty"`
	Rules      []string           `json:"rules" yaml:"rules"`
	Stats      Stats              `json:"stats" yaml:"stats"`
}

// Build sorts the complete outcome of a run. It must only be called after every rule finished.
func Build(out rules.Outcome, stats Stats) *Report {
	vs := make([]domain.Violation, len(out.Violations))
	copy(vs, out.Violations)
	slices.SortStableFunc(vs, compareViolations)

	failures := make([]RuleFailure, 0, len(out.Errors))
	for _, e := range out.Errors {
		failures = append(failures, RuleFailure{Rule: e.Rule, Error: e.Cause.Error()})
	}
	slices.SortStableFunc(failures, func(a, b RuleFailure) int {
		return cmp.Or(cmp.Compare(a.Rule, b.Rule), cmp.Compare(a.Error, b.Error))
	})

	executed := make([]string, len(out.Executed))
	copy(executed, out.Executed)
	slices.Sort(executed)

	status := StatusPass
	if len(vs) > 0 {
		status = StatusFail
	}
	return &Report{
		Status:     status,
		Violations: vs,
		RuleErrors: failures,
		Rules:      executed,
		Stats:      stats,
	}
}

// compareViolations orders by rule name, then offending identity. The remaining keys only
// separate violations that would otherwise tie, keeping the order total.
func compareViolations(a, b domain.Violation) int {
	return cmp.Or(
		cmp.Compare(a.Rule, b.Rule),
		cmp.Compare(a.Subject, b.Subject),
		cmp.Compare(a.Message, b.Message),
		cmp.Compare(edgeKind(a), edgeKind(b)),
		cmp.Compare(a.Severity, b.Severity),
	)
}

func edgeKind(v domain.Violation) domain.RefKind {
	if v.Edge == nil {
		return ""
	}
	return v.Edge.Kind
}

func (r *Report) Failed() bool { return r.Status == StatusFail }

func (r *Report) HasRuleErrors() bool { return len(r.RuleErrors) > 0 }

// For returns the violations raised for a unit, either as edge source or as subject.
func (r *Report) For(unit string) []domain.Violation {
	var out []domain.Violation
	for _, v := range r.Violations {
		if v.Involves(unit) {
			out = append(out, v)
		}
	}
	return out
}

// CountByRule returns the number of violations per rule name.
func (r *Report) CountByRule() map[string]int {
	out := make(map[string]int)
	for _, v := range r.Violations {
		out[v.Rule]++
	}
	return out
}
