package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"github.com/pmaojo/hexanorm/internal/hexanorm/rules"
)

func edgeViolation(rule, from, to string, kind domain.RefKind) domain.Violation {
	e := domain.Edge{From: from, To: to, Kind: kind}
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityError,
		Subject:  e.Identity(),
		Message:  "UseCase must not depend on Platform",
		Edge:     &e,
	}
}

func sampleOutcome() rules.Outcome {
	return rules.Outcome{
		Violations: []domain.Violation{
			edgeViolation("LayerDependencyRule", "b.usecase.X", "b.platform.Y", domain.RefImport),
			{Rule: "EncapsulationRule", Severity: domain.SeverityError, Subject: "a.platform.Impl", Message: "m", Unit: "a.platform.Impl"},
			edgeViolation("LayerDependencyRule", "a.usecase.X", "a.platform.Y", domain.RefImport),
			edgeViolation("LayerDependencyRule", "a.usecase.X", "a.platform.Y", domain.RefFieldType),
		},
		Errors: []*domain.RuleError{
			{Rule: "Zeta", Cause: errors.New("boom")},
			{Rule: "Alpha", Cause: domain.UnknownLayer("Ghost")},
		},
		Executed: []string{"LayerDependencyRule", "Zeta", "EncapsulationRule", "Alpha"},
	}
}

func TestBuildOrdersViolations(t *testing.T) {
	r := Build(sampleOutcome(), Stats{Units: 4})

	assert.Equal(t, StatusFail, r.Status)
	assert.True(t, r.Failed())
	var got []string
	for _, v := range r.Violations {
		got = append(got, v.Rule+"|"+v.Subject+"|"+string(edgeKind(v)))
	}
	assert.Equal(t, []string{
		"EncapsulationRule|a.platform.Impl|",
		"LayerDependencyRule|a.usecase.X -> a.platform.Y|field-type",
		"LayerDependencyRule|a.usecase.X -> a.platform.Y|import",
		"LayerDependencyRule|b.usecase.X -> b.platform.Y|import",
	}, got)

	assert.Equal(t, []string{"Alpha", "EncapsulationRule", "LayerDependencyRule", "Zeta"}, r.Rules)
	require.Len(t, r.RuleErrors, 2)
	assert.Equal(t, "Alpha", r.RuleErrors[0].Rule)
	assert.True(t, r.HasRuleErrors())
}

func TestBuildIsDeterministic(t *testing.T) {
	out := sampleOutcome()
	var first bytes.Buffer
	require.NoError(t, Render(&first, Build(out, Stats{}), FormatJSON))

	for range 10 {
		// Reverse the input order; the rendering must not change.
		shuffled := out
		shuffled.Violations = make([]domain.Violation, len(out.Violations))
		for i, v := range out.Violations {
			shuffled.Violations[len(out.Violations)-1-i] = v
		}
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, Build(shuffled, Stats{}), FormatJSON))
		assert.Equal(t, first.String(), buf.String())
	}
}

func TestBuildPass(t *testing.T) {
	r := Build(rules.Outcome{Executed: []string{"LayerDependencyRule"}}, Stats{})
	assert.Equal(t, StatusPass, r.Status)
	assert.False(t, r.Failed())
	assert.Equal(t, "PASS", Summary(r))
}

func TestBuildRuleErrorsDoNotFail(t *testing.T) {
	r := Build(rules.Outcome{Errors: []*domain.RuleError{{Rule: "X", Cause: errors.New("e")}}}, Stats{})
	assert.Equal(t, StatusPass, r.Status)
	assert.True(t, r.HasRuleErrors())
}

func TestRenderText(t *testing.T) {
	r := Build(rules.Outcome{
		Violations: []domain.Violation{edgeViolation("LayerDependencyRule", "usecase.A", "platform.B", domain.RefFieldType)},
		Errors:     []*domain.RuleError{{Rule: "EncapsulationRule", Cause: domain.UnknownLayer("Ghost")}},
	}, Stats{})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, FormatText))
	assert.Equal(t,
		"LayerDependencyRule: UseCase must not depend on Platform (usecase.A -> platform.B)\n"+
			"EncapsulationRule: error: ConfigurationError::UnknownLayer: \"Ghost\": layer is not registered\n"+
			"FAIL: 1 violations\n",
		buf.String())
}

func TestRenderStructured(t *testing.T) {
	r := Build(sampleOutcome(), Stats{Units: 4, Edges: 7, ExternalEdges: 2, Layers: map[string]int{"UseCase": 2}})

	var js bytes.Buffer
	require.NoError(t, Render(&js, r, FormatJSON))
	var fromJSON Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &fromJSON))
	assert.Equal(t, StatusFail, fromJSON.Status)
	assert.Len(t, fromJSON.Violations, 4)
	assert.Equal(t, 7, fromJSON.Stats.Edges)

	var ys bytes.Buffer
	require.NoError(t, Render(&ys, r, FormatYAML))
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal(ys.Bytes(), &fromYAML))
	assert.Equal(t, r.Violations, fromYAML.Violations)
	assert.Equal(t, 2, fromYAML.Stats.Layers["UseCase"])
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		f, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, f)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestForAndCountByRule(t *testing.T) {
	r := Build(sampleOutcome(), Stats{})
	assert.Len(t, r.For("a.usecase.X"), 2)
	assert.Len(t, r.For("a.platform.Impl"), 1)
	assert.Empty(t, r.For("a.platform.Y"), "edge targets are not blamed")
	assert.Equal(t, map[string]int{"LayerDependencyRule": 3, "EncapsulationRule": 1}, r.CountByRule())
}
