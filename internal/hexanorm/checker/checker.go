// Package checker wires the stages of a conformance run together:
// catalog ingestion, layer classification, edge extraction, rule evaluation, reporting.
package checker

import (
	"strings"
	"time"

	"github.com/pmaojo/hexanorm/internal/hexanorm/catalog"
	"github.com/pmaojo/hexanorm/internal/hexanorm/config"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/graph"
	"github.com/pmaojo/hexanorm/internal/hexanorm/layers"
	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
	"github.com/pmaojo/hexanorm/internal/hexanorm/rules"
	"go.uber.org/zap"
)

// Checker holds the per-process, read-only parts of a run: the registry and the rules.
// Run may be called any number of times; no state carries over between calls.
type Checker struct {
	registry    *layers.Registry
	engine      *rules.Engine
	workers     int
	rootPackage string
	log         *zap.SugaredLogger
}

type Option func(*Checker)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}

func WithWorkers(n int) Option {
	return func(c *Checker) { c.workers = n }
}

// WithRootPackage restricts the catalog to units inside pkg.
func WithRootPackage(pkg string) Option {
	return func(c *Checker) { c.rootPackage = strings.TrimSpace(pkg) }
}

// New builds a checker from configuration. Layer declaration problems and unparseable rule
// settings are fatal ConfigurationErrors. Rules that reference unknown layers are still built;
// they fail individually at run time.
func New(cfg *config.Config, opts ...Option) (*Checker, error) {
	reg := layers.NewRegistry()
	for _, l := range cfg.Layers {
		if err := reg.Register(l.Name, l.Patterns...); err != nil {
			return nil, err
		}
	}

	rs, err := buildRules(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithWorkers(cfg.Workers), WithRootPackage(cfg.RootPackage)}, opts...)
	return NewWithRules(reg, rs, opts...), nil
}

// NewWithRules builds a checker around an existing registry and an arbitrary rule set.
func NewWithRules(reg *layers.Registry, rs []rules.Rule, opts ...Option) *Checker {
	c := &Checker{
		registry: reg,
		engine:   rules.NewEngine(rs...),
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func buildRules(cfg *config.Config) ([]rules.Rule, error) {
	var rs []rules.Rule

	if !cfg.DependencyRule.Disabled {
		sev, err := severity(cfg.DependencyRule.Severity)
		if err != nil {
			return nil, err
		}
		allow := make([]rules.AllowRule, 0, len(cfg.Allow))
		for _, a := range cfg.Allow {
			allow = append(allow, rules.AllowRule{From: strings.TrimSpace(a.From), To: strings.TrimSpace(a.To)})
		}
		rs = append(rs, rules.NewLayerDependencyRule(allow,
			rules.WithName(cfg.DependencyRule.Name),
			rules.WithSeverity(sev),
		))
	}

	for _, e := range cfg.Encapsulation {
		sev, err := severity(e.Severity)
		if err != nil {
			return nil, err
		}
		pred, ok := rules.ParseVisibilityPredicate(e.Visibility)
		if !ok {
			return nil, &domain.ConfigurationError{Kind: domain.ConfigInvalidValue, Subject: e.Visibility, Reason: "unknown visibility predicate"}
		}
		kinds := make([]domain.Kind, 0, len(e.AllowedKinds))
		for _, k := range e.AllowedKinds {
			kind, ok := domain.ParseKind(k)
			if !ok {
				return nil, &domain.ConfigurationError{Kind: domain.ConfigInvalidValue, Subject: k, Reason: "unknown kind"}
			}
			kinds = append(kinds, kind)
		}
		rs = append(rs, rules.NewEncapsulationRule(strings.TrimSpace(e.Layer), pred,
			rules.WithAllowedKinds(kinds...),
			rules.WithNested(e.IncludeNested),
			rules.WithRuleOptions(rules.WithName(e.Name), rules.WithSeverity(sev)),
		))
	}
	return rs, nil
}

func severity(s string) (domain.Severity, error) {
	sev, ok := domain.ParseSeverity(s)
	if !ok {
		return "", &domain.ConfigurationError{Kind: domain.ConfigInvalidValue, Subject: s, Reason: "unknown severity"}
	}
	return sev, nil
}

func (c *Checker) Registry() *layers.Registry { return c.registry }

func (c *Checker) Rules() []rules.Rule { return c.engine.Rules() }

// Result bundles the immutable outputs of every stage of one run.
type Result struct {
	Catalog *catalog.Catalog
	Edges   *graph.EdgeSet
	Layers  *layers.Assignment
	Report  *report.Report
}

// Run executes the pipeline. An IngestError aborts before any rule runs; rule failures end up in
// the report instead. Every descriptor is validated, including those outside the root package.
func (c *Checker) Run(descriptors []domain.Descriptor) (*Result, error) {
	start := time.Now()

	if c.rootPackage != "" {
		if err := catalog.Validate(descriptors, catalog.WithWorkers(c.workers)); err != nil {
			c.log.Errorw("Ingestion failed", "error", err)
			return nil, err
		}
	}
	in := FilterPackage(descriptors, c.rootPackage)
	if dropped := len(descriptors) - len(in); dropped > 0 {
		c.log.Debugw("Dropped units outside root package", "root_package", c.rootPackage, "dropped", dropped)
	}

	cat, err := catalog.Ingest(in, catalog.WithWorkers(c.workers))
	if err != nil {
		c.log.Errorw("Ingestion failed", "error", err)
		return nil, err
	}
	c.log.Debugw("Catalog built", "units", cat.Len())

	assignment := c.registry.Assign(cat)
	edges := graph.Extract(cat, graph.WithWorkers(c.workers))
	c.log.Debugw("Edges extracted", "edges", edges.Len(), "external", edges.ExternalCount(), "self_dropped", edges.SelfReferences())

	outcome := c.engine.Run(&rules.Snapshot{Catalog: cat, Edges: edges, Layers: assignment})
	for _, e := range outcome.Errors {
		c.log.Warnw("Rule failed", "rule", e.Rule, "error", e.Cause)
	}

	rep := report.Build(outcome, report.Stats{
		Units:         cat.Len(),
		Edges:         edges.Len(),
		ExternalEdges: edges.ExternalCount(),
		Layers:        assignment.Counts(),
	})
	c.log.Debugw("Check finished", "status", rep.Status, "violations", len(rep.Violations), "elapsed", time.Since(start))

	return &Result{Catalog: cat, Edges: edges, Layers: assignment, Report: rep}, nil
}

// FilterPackage keeps the descriptors whose package is root or lies below it. An empty root
// keeps everything.
func FilterPackage(descriptors []domain.Descriptor, root string) []domain.Descriptor {
	if root == "" {
		return descriptors
	}
	out := make([]domain.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		pkg := strings.TrimSpace(d.Package)
		if pkg == root || strings.HasPrefix(pkg, root+".") {
			out = append(out, d)
		}
	}
	return out
}
