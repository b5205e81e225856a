// Package rules evaluates conformance rules against a read-only (catalog, edges, layers) snapshot.
//
// A rule is anything implementing Rule. The engine knows nothing about concrete rules, so new
// checks are added by writing another type, not by touching the engine.
package rules

import (
	"github.com/pmaojo/hexanorm/internal/hexanorm/catalog"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/graph"
	"github.com/pmaojo/hexanorm/internal/hexanorm/layers"
)

// Snapshot is the immutable input shared by every rule of a run.
type Snapshot struct {
	Catalog *catalog.Catalog
	Edges   *graph.EdgeSet
	Layers  *layers.Assignment
}

type Rule interface {
	Name() string
	// Check returns the violations found. A non-nil error means the rule could not be evaluated
	// (e.g. it references an unregistered layer); its violations are then ignored.
	Check(s *Snapshot) ([]domain.Violation, error)
}

type base struct {
	name     string
	severity domain.Severity
}

func (b *base) Name() string { return b.name }

type Option func(*base)

// WithName overrides the rule name shown in reports.
func WithName(name string) Option {
	return func(b *base) {
		if name != "" {
			b.name = name
		}
	}
}

func WithSeverity(s domain.Severity) Option {
	return func(b *base) {
		if s != "" {
			b.severity = s
		}
	}
}

func newBase(defaultName string, opts []Option) base {
	b := base{name: defaultName, severity: domain.SeverityError}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
