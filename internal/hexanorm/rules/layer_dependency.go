package rules

import (
	"fmt"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

const LayerDependencyRuleName = "LayerDependencyRule"

// AllowRule permits edges from units of From to units of To. It is directional.
type AllowRule struct {
	From string
	To   string
}

// LayerDependencyRule denies every edge between two different assigned layers unless the pair
// is in the allow-set. Edges touching UNASSIGNED or EXTERNAL are never checked.
type LayerDependencyRule struct {
	base
	allow []AllowRule
}

func NewLayerDependencyRule(allow []AllowRule, opts ...Option) *LayerDependencyRule {
	a := make([]AllowRule, len(allow))
	copy(a, allow)
	return &LayerDependencyRule{base: newBase(LayerDependencyRuleName, opts), allow: a}
}

func (r *LayerDependencyRule) Check(s *Snapshot) ([]domain.Violation, error) {
	reg := s.Layers.Registry()
	allowed := make(map[AllowRule]bool, len(r.allow))
	for _, a := range r.allow {
		for _, l := range []string{a.From, a.To} {
			if !reg.Has(l) {
				return nil, domain.UnknownLayer(l)
			}
		}
		allowed[a] = true
	}

	var out []domain.Violation
	for _, e := range s.Edges.All() {
		from, to := s.Layers.LayerOf(e.From), s.Layers.LayerOf(e.To)
		if !assigned(from) || !assigned(to) || from == to {
			continue
		}
		if allowed[AllowRule{From: from, To: to}] {
			continue
		}
		edge := e
		out = append(out, domain.Violation{
			Rule:     r.name,
			Severity: r.severity,
			Subject:  e.Identity(),
			Message:  fmt.Sprintf("%s must not depend on %s", from, to),
			Edge:     &edge,
		})
	}
	return out, nil
}

func assigned(layer string) bool {
	return layer != "" && layer != domain.Unassigned && layer != domain.External
}
