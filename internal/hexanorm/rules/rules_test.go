package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaojo/hexanorm/internal/hexanorm/catalog"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/graph"
	"github.com/pmaojo/hexanorm/internal/hexanorm/layers"
)

func unit(name, kind, vis string, refs ...string) domain.Descriptor {
	pkg := name[:max(strings.LastIndex(name, "."), 0)]
	d := domain.Descriptor{Name: name, Package: pkg, Kind: kind, Visibility: vis}
	for _, r := range refs {
		d.References = append(d.References, domain.Reference{Target: r, Kind: domain.RefFieldType})
	}
	return d
}

func snapshot(t *testing.T, ds ...domain.Descriptor) *Snapshot {
	t.Helper()
	c, err := catalog.Ingest(ds)
	require.NoError(t, err)

	reg := layers.NewRegistry()
	require.NoError(t, reg.Register("UseCase", "..usecase.."))
	require.NoError(t, reg.Register("Platform", "..platform.."))
	return &Snapshot{Catalog: c, Edges: graph.Extract(c), Layers: reg.Assign(c)}
}

func TestLayerDependencyRule(t *testing.T) {
	s := snapshot(t,
		unit("com.x.usecase.A", "class", "public", "com.x.platform.B"),
		unit("com.x.platform.B", "class", "package-private", "com.x.usecase.A"),
	)
	r := NewLayerDependencyRule([]AllowRule{{From: "Platform", To: "UseCase"}})

	vs, err := r.Check(s)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, domain.Violation{
		Rule:     LayerDependencyRuleName,
		Severity: domain.SeverityError,
		Subject:  "com.x.usecase.A -> com.x.platform.B",
		Message:  "UseCase must not depend on Platform",
		Edge:     &domain.Edge{From: "com.x.usecase.A", To: "com.x.platform.B", Kind: domain.RefFieldType},
	}, vs[0])
}

func TestLayerDependencyRuleDenyByDefault(t *testing.T) {
	s := snapshot(t,
		unit("com.x.usecase.A", "class", "public", "com.x.platform.B"),
		unit("com.x.platform.B", "class", "public", "com.x.usecase.A"),
	)
	vs, err := NewLayerDependencyRule(nil).Check(s)
	require.NoError(t, err)
	assert.Len(t, vs, 2)
}

func TestLayerDependencyRuleSkipsUncheckedEdges(t *testing.T) {
	s := snapshot(t,
		unit("com.x.usecase.A", "class", "public", "com.x.usecase.B", "java.util.List", "com.x.util.Strings"),
		unit("com.x.usecase.B", "class", "public"),
		unit("com.x.util.Strings", "class", "public", "com.x.platform.C"),
		unit("com.x.platform.C", "class", "public"),
	)
	vs, err := NewLayerDependencyRule(nil).Check(s)
	require.NoError(t, err)
	assert.Empty(t, vs, "same-layer, EXTERNAL and UNASSIGNED edges are never violations")
}

func TestLayerDependencyRuleOneViolationPerEdge(t *testing.T) {
	d := unit("com.x.usecase.A", "class", "public", "com.x.platform.B", "com.x.platform.B")
	s := snapshot(t, d, unit("com.x.platform.B", "class", "public"))

	vs, err := NewLayerDependencyRule(nil).Check(s)
	require.NoError(t, err)
	assert.Len(t, vs, 2, "duplicate references are separate edges")
}

func TestLayerDependencyRuleUnknownLayer(t *testing.T) {
	s := snapshot(t, unit("com.x.usecase.A", "class", "public"))
	_, err := NewLayerDependencyRule([]AllowRule{{From: "Platform", To: "Domain"}}).Check(s)
	assert.ErrorIs(t, err, domain.ErrUnknownLayer)
}

func TestLayerDependencyRuleOptions(t *testing.T) {
	r := NewLayerDependencyRule(nil, WithName("NoCycles"), WithSeverity(domain.SeverityWarning))
	s := snapshot(t,
		unit("com.x.usecase.A", "class", "public", "com.x.platform.B"),
		unit("com.x.platform.B", "class", "public"),
	)
	vs, err := r.Check(s)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "NoCycles", r.Name())
	assert.Equal(t, "NoCycles", vs[0].Rule)
	assert.Equal(t, domain.SeverityWarning, vs[0].Severity)
}

func TestEncapsulationRule(t *testing.T) {
	s := snapshot(t,
		unit("com.x.platform.Impl", "class", "public"),
		unit("com.x.platform.Contract", "interface", "public"),
		unit("com.x.platform.Mode", "enum", "public"),
		unit("com.x.platform.Point", "value-type", "public"),
		unit("com.x.platform.Hidden", "class", "package-private"),
		unit("com.x.usecase.Service", "class", "public"),
	)
	r := NewEncapsulationRule("Platform", MustBePackagePrivate)

	vs, err := r.Check(s)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "com.x.platform.Impl", vs[0].Subject)
	assert.Equal(t, "com.x.platform.Impl", vs[0].Unit)
	assert.Nil(t, vs[0].Edge)
	assert.Equal(t, "class com.x.platform.Impl in layer Platform should be package-private but is public", vs[0].Message)
}

func TestEncapsulationRuleNested(t *testing.T) {
	inner := unit("com.x.platform.Outer.Inner", "class", "public")
	inner.Package = "com.x.platform"
	s := snapshot(t, unit("com.x.platform.Outer", "class", "package-private"), inner)
	vs, err := NewEncapsulationRule("Platform", MustNotBePublic).Check(s)
	require.NoError(t, err)
	assert.Empty(t, vs, "nested units are skipped by default")

	vs, err = NewEncapsulationRule("Platform", MustNotBePublic, WithNested(true)).Check(s)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "com.x.platform.Outer.Inner", vs[0].Subject)
}

func TestEncapsulationRuleUnassignedLayer(t *testing.T) {
	s := snapshot(t, unit("com.x.util.Strings", "class", "public"))
	vs, err := NewEncapsulationRule(domain.Unassigned, "").Check(s)
	require.NoError(t, err)
	assert.Len(t, vs, 1)
}

func TestEncapsulationRuleUnknownLayer(t *testing.T) {
	s := snapshot(t, unit("com.x.util.Strings", "class", "public"))
	_, err := NewEncapsulationRule("Domain", MustNotBePublic).Check(s)
	assert.ErrorIs(t, err, domain.ErrUnknownLayer)
}

func TestVisibilityPredicate(t *testing.T) {
	tests := []struct {
		pred VisibilityPredicate
		vis  domain.Visibility
		want bool
	}{
		{MustNotBePublic, domain.VisibilityPublic, false},
		{MustNotBePublic, domain.VisibilityProtected, true},
		{MustNotBePublic, domain.VisibilityPrivate, true},
		{MustBePackagePrivate, domain.VisibilityPackagePrivate, true},
		{MustBePackagePrivate, domain.VisibilityPrivate, false},
		{MustBePrivate, domain.VisibilityPrivate, true},
		{MustBePrivate, domain.VisibilityPackagePrivate, false},
		{MustBeAtMostProtected, domain.VisibilityProtected, false},
		{MustBeAtMostProtected, domain.VisibilityPackagePrivate, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.pred.Allows(tt.vis), "%s allows %s", tt.pred, tt.vis)
	}

	p, ok := ParseVisibilityPredicate("")
	assert.True(t, ok)
	assert.Equal(t, MustNotBePublic, p)
	p, ok = ParseVisibilityPredicate("package_private")
	assert.True(t, ok)
	assert.Equal(t, MustBePackagePrivate, p)
	_, ok = ParseVisibilityPredicate("secret")
	assert.False(t, ok)
}

type panicRule struct{}

func (panicRule) Name() string { return "Boom" }
func (panicRule) Check(*Snapshot) ([]domain.Violation, error) {
	panic("nil map")
}

type failingRule struct{}

func (failingRule) Name() string { return "Broken" }
func (failingRule) Check(*Snapshot) ([]domain.Violation, error) {
	return []domain.Violation{{Rule: "Broken", Subject: "ignored"}}, errors.New("cannot evaluate")
}

func TestEngineIsolatesRuleFailures(t *testing.T) {
	s := snapshot(t,
		unit("com.x.usecase.A", "class", "public", "com.x.platform.B"),
		unit("com.x.platform.B", "class", "public"),
	)
	e := NewEngine(
		panicRule{},
		NewLayerDependencyRule(nil),
		failingRule{},
		NewEncapsulationRule("Ghost", MustNotBePublic),
	)

	out := e.Run(s)
	assert.Equal(t, []string{"Boom", LayerDependencyRuleName, "Broken", EncapsulationRuleName}, out.Executed)
	require.Len(t, out.Violations, 1)
	assert.Equal(t, LayerDependencyRuleName, out.Violations[0].Rule)

	require.Len(t, out.Errors, 3)
	assert.Equal(t, "Boom", out.Errors[0].Rule)
	assert.Contains(t, out.Errors[0].Error(), "panic: nil map")
	assert.Equal(t, "Broken", out.Errors[1].Rule)
	assert.ErrorIs(t, out.Errors[2], domain.ErrUnknownLayer)
	assert.ErrorIs(t, out.Errors[2], domain.ErrRule)
}

func TestEngineWithoutRules(t *testing.T) {
	out := NewEngine().Run(snapshot(t))
	assert.Empty(t, out.Violations)
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.Executed)
}
