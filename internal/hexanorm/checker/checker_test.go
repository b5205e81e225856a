package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/hexanorm/internal/hexanorm/config"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/layers"
	"github.com/pmaojo/hexanorm/internal/hexanorm/report"
	"github.com/pmaojo/hexanorm/internal/hexanorm/rules"
)

func ref(target string, kind domain.RefKind) domain.Reference {
	return domain.Reference{Target: target, Kind: kind}
}

func cleanArchitectureUnits() []domain.Descriptor {
	return []domain.Descriptor{
		{Name: "com.acme.usecase.PlaceOrder", Package: "com.acme.usecase", Kind: "class", Visibility: "public",
			References: []domain.Reference{
				ref("com.acme.usecase.OrderRepository", domain.RefFieldType),
				ref("com.acme.platform.JdbcOrderRepository", domain.RefImport),
				ref("java.util.List", domain.RefImport),
			}},
		{Name: "com.acme.usecase.OrderRepository", Package: "com.acme.usecase", Kind: "interface", Visibility: "public"},
		{Name: "com.acme.platform.JdbcOrderRepository", Package: "com.acme.platform", Kind: "class", Visibility: "public",
			References: []domain.Reference{
				ref("com.acme.usecase.OrderRepository", domain.RefImplements),
			}},
		{Name: "com.acme.platform.Contract", Package: "com.acme.platform", Kind: "interface", Visibility: "public"},
		{Name: "com.acme.Main", Package: "com.acme", Kind: "class", Visibility: "public",
			References: []domain.Reference{ref("com.acme.platform.JdbcOrderRepository", domain.RefFieldType)}},
		{Name: "org.other.Lib", Package: "org.other", Kind: "class", Visibility: "public"},
	}
}

func TestRunDefaultConfig(t *testing.T) {
	c, err := New(config.Default(), WithRootPackage("com.acme"))
	require.NoError(t, err)

	res, err := c.Run(cleanArchitectureUnits())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Catalog.Len(), "units outside the root package are dropped")
	assert.Equal(t, report.StatusFail, res.Report.Status)
	require.Len(t, res.Report.Violations, 2)

	enc := res.Report.Violations[0]
	assert.Equal(t, rules.EncapsulationRuleName, enc.Rule)
	assert.Equal(t, "com.acme.platform.JdbcOrderRepository", enc.Subject)

	dep := res.Report.Violations[1]
	assert.Equal(t, rules.LayerDependencyRuleName, dep.Rule)
	assert.Equal(t, "com.acme.usecase.PlaceOrder -> com.acme.platform.JdbcOrderRepository", dep.Subject)
	assert.Equal(t, "UseCase must not depend on Platform", dep.Message)

	assert.Equal(t, report.Stats{
		Units:         5,
		Edges:         5,
		ExternalEdges: 1,
		Layers:        map[string]int{"UseCase": 2, "Platform": 2, domain.Unassigned: 1},
	}, res.Report.Stats)
	assert.Equal(t, []string{rules.EncapsulationRuleName, rules.LayerDependencyRuleName}, res.Report.Rules)
}

func TestRunPass(t *testing.T) {
	cfg := config.Default()
	cfg.Encapsulation = nil

	c, err := New(cfg)
	require.NoError(t, err)
	res, err := c.Run([]domain.Descriptor{
		{Name: "x.platform.A", Package: "x.platform", Kind: "class", Visibility: "public",
			References: []domain.Reference{ref("x.usecase.B", domain.RefParameterType)}},
		{Name: "x.usecase.B", Package: "x.usecase", Kind: "class", Visibility: "public"},
	})
	require.NoError(t, err)
	assert.Equal(t, report.StatusPass, res.Report.Status)
	assert.Empty(t, res.Report.Violations)
}

func TestRunDuplicateNameAbortsBeforeRules(t *testing.T) {
	reg := layers.NewRegistry()
	require.NoError(t, reg.Register("Any", "**"))

	executed := 0
	counting := &countingRule{calls: &executed}
	c := NewWithRules(reg, []rules.Rule{counting})

	_, err := c.Run([]domain.Descriptor{
		{Name: "a.b.C", Package: "a.b", Kind: "class", Visibility: "public"},
		{Name: "a.b.C", Package: "a.b", Kind: "class", Visibility: "public"},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	assert.Zero(t, executed)
}

type countingRule struct{ calls *int }

func (r *countingRule) Name() string { return "Counting" }
func (r *countingRule) Check(*rules.Snapshot) ([]domain.Violation, error) {
	*r.calls++
	return nil, nil
}

func TestRunUnknownLayerIsRuleError(t *testing.T) {
	cfg := config.Default()
	cfg.Allow = append(cfg.Allow, config.Allow{From: "Platform", To: "Domain"})

	c, err := New(cfg)
	require.NoError(t, err)
	res, err := c.Run(cleanArchitectureUnits())
	require.NoError(t, err)

	require.Len(t, res.Report.RuleErrors, 1)
	assert.Equal(t, rules.LayerDependencyRuleName, res.Report.RuleErrors[0].Rule)
	assert.Contains(t, res.Report.RuleErrors[0].Error, "UnknownLayer")
	// The encapsulation rule still ran.
	assert.NotEmpty(t, res.Report.Violations)
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"duplicate layer", func(c *config.Config) {
			c.Layers = append(c.Layers, config.Layer{Name: "UseCase", Patterns: []string{"x.**"}})
		}, domain.ErrDuplicateLayer},
		{"invalid pattern", func(c *config.Config) { c.Layers[0].Patterns = []string{"com.x*"} }, domain.ErrInvalidPattern},
		{"reserved layer", func(c *config.Config) { c.Layers[0].Name = domain.Unassigned }, domain.ErrInvalidLayer},
		{"severity", func(c *config.Config) { c.DependencyRule.Severity = "fatal" }, domain.ErrInvalidValue},
		{"predicate", func(c *config.Config) { c.Encapsulation[0].Visibility = "hidden" }, domain.ErrInvalidValue},
		{"kind", func(c *config.Config) { c.Encapsulation[0].AllowedKinds = []string{"trait"} }, domain.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsFatal(err))
		})
	}
}

func TestDisabledDependencyRule(t *testing.T) {
	cfg := config.Default()
	cfg.DependencyRule.Disabled = true
	c, err := New(cfg)
	require.NoError(t, err)
	require.Len(t, c.Rules(), 1)
	assert.Equal(t, rules.EncapsulationRuleName, c.Rules()[0].Name())
	assert.Equal(t, []string{"UseCase", "Platform"}, c.Registry().Names())
}

func TestRunIsRepeatable(t *testing.T) {
	c, err := New(config.Default())
	require.NoError(t, err)

	first, err := c.Run(cleanArchitectureUnits())
	require.NoError(t, err)
	for range 10 {
		again, err := c.Run(cleanArchitectureUnits())
		require.NoError(t, err)
		assert.Equal(t, first.Report, again.Report)
	}
}

func TestRunValidatesUnitsOutsideRootPackage(t *testing.T) {
	c, err := New(config.Default(), WithRootPackage("com.acme"))
	require.NoError(t, err)

	ds := append(cleanArchitectureUnits(), domain.Descriptor{Name: "z.C", Package: "z", Visibility: "public"})
	_, err = c.Run(ds)
	assert.ErrorIs(t, err, domain.ErrMalformed)
	var ie *domain.IngestError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "z.C", ie.Name)
	assert.Equal(t, len(ds)-1, ie.Index, "the index refers to the unfiltered input")
}

func TestFilterPackage(t *testing.T) {
	ds := cleanArchitectureUnits()
	assert.Len(t, FilterPackage(ds, ""), len(ds))
	assert.Len(t, FilterPackage(ds, "com.acme"), 5)
	assert.Len(t, FilterPackage(ds, "com.acme.platform"), 2)
	assert.Empty(t, FilterPackage(ds, "com.ac"))
}
