package rules

import (
	"fmt"
	"strings"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

const EncapsulationRuleName = "EncapsulationRule"

// VisibilityPredicate is the visibility a checked unit must have.
type VisibilityPredicate string

const (
	MustNotBePublic       VisibilityPredicate = "not-public"
	MustBePackagePrivate  VisibilityPredicate = "package-private"
	MustBePrivate         VisibilityPredicate = "private"
	MustBeAtMostProtected VisibilityPredicate = "not-public-or-protected"
)

func ParseVisibilityPredicate(s string) (VisibilityPredicate, bool) {
	switch p := VisibilityPredicate(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return MustNotBePublic, true
	case MustNotBePublic, MustBePackagePrivate, MustBePrivate, MustBeAtMostProtected:
		return p, true
	case "package_private", "not_public":
		return VisibilityPredicate(strings.ReplaceAll(string(p), "_", "-")), true
	}
	return "", false
}

func (p VisibilityPredicate) Allows(v domain.Visibility) bool {
	switch p {
	case MustBePackagePrivate:
		return v == domain.VisibilityPackagePrivate
	case MustBePrivate:
		return v == domain.VisibilityPrivate
	case MustBeAtMostProtected:
		return v == domain.VisibilityPackagePrivate || v == domain.VisibilityPrivate
	default:
		return v != domain.VisibilityPublic
	}
}

func (p VisibilityPredicate) describe() string {
	switch p {
	case MustBePackagePrivate:
		return "be package-private"
	case MustBePrivate:
		return "be private"
	case MustBeAtMostProtected:
		return "be package-private or private"
	default:
		return "not be public"
	}
}

// EncapsulationRule requires concrete units of one layer to satisfy a visibility predicate.
// Interfaces, enums and value-types form the layer's contract and are always exempt.
type EncapsulationRule struct {
	base
	layer         string
	predicate     VisibilityPredicate
	exempt        map[domain.Kind]bool
	includeNested bool
}

type EncapsulationOption func(*EncapsulationRule)

// WithAllowedKinds exempts further kinds. The contract kinds are exempt regardless.
func WithAllowedKinds(kinds ...domain.Kind) EncapsulationOption {
	return func(r *EncapsulationRule) {
		for _, k := range kinds {
			r.exempt[k] = true
		}
	}
}

// WithNested also checks nested units; by default only top-level units are checked.
func WithNested(on bool) EncapsulationOption {
	return func(r *EncapsulationRule) { r.includeNested = on }
}

func WithRuleOptions(opts ...Option) EncapsulationOption {
	return func(r *EncapsulationRule) {
		for _, opt := range opts {
			opt(&r.base)
		}
	}
}

// NewEncapsulationRule checks layer (a registered name or UNASSIGNED) against predicate.
func NewEncapsulationRule(layer string, predicate VisibilityPredicate, opts ...EncapsulationOption) *EncapsulationRule {
	if predicate == "" {
		predicate = MustNotBePublic
	}
	r := &EncapsulationRule{
		base:      newBase(EncapsulationRuleName, nil),
		layer:     layer,
		predicate: predicate,
		exempt: map[domain.Kind]bool{
			domain.KindInterface: true,
			domain.KindEnum:      true,
			domain.KindValueType: true,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *EncapsulationRule) Layer() string { return r.layer }

func (r *EncapsulationRule) Check(s *Snapshot) ([]domain.Violation, error) {
	if r.layer != domain.Unassigned && !s.Layers.Registry().Has(r.layer) {
		return nil, domain.UnknownLayer(r.layer)
	}

	var out []domain.Violation
	for _, name := range s.Layers.Members(r.layer) {
		u, ok := s.Catalog.Get(name)
		if !ok || r.exempt[u.Kind] || !u.Kind.Concrete() {
			continue
		}
		if !u.TopLevel && !r.includeNested {
			continue
		}
		if r.predicate.Allows(u.Visibility) {
			continue
		}
		out = append(out, domain.Violation{
			Rule:     r.name,
			Severity: r.severity,
			Subject:  u.Name,
			Message:  fmt.Sprintf("%s %s in layer %s should %s but is %s", u.Kind, u.Name, r.layer, r.predicate.describe(), u.Visibility),
			Unit:     u.Name,
		})
	}
	return out, nil
}
