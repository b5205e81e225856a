// Package graph derives the directed dependency edges between catalogued units.
package graph

import (
	"runtime"

	"github.com/pmaojo/hexanorm/internal/hexanorm/catalog"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"golang.org/x/sync/errgroup"
)

// EdgeSet is the immutable result of one extraction. Edges are kept in catalog name order of
// their source unit, then in reference order, so iteration is deterministic.
type EdgeSet struct {
	edges        []domain.Edge
	edgesFrom    map[string][]int // From -> indexes into edges
	edgesTo      map[string][]int // To -> indexes into edges
	externalRefs int
	selfRefs     int
}

type options struct {
	workers int
}

type Option func(*options)

// WithWorkers bounds the number of goroutines scanning units. Values < 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Extract turns every reference of every unit into exactly one edge. Self references are dropped
// and targets missing from the catalog are rewritten to the EXTERNAL pseudo-unit.
func Extract(c *catalog.Catalog, opts ...Option) *EdgeSet {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	units := c.Units()
	perUnit := make([][]domain.Edge, len(units))
	selfRefs := make([]int, len(units))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, u := range units {
		g.Go(func() error {
			perUnit[i], selfRefs[i] = edgesOf(c, u)
			return nil
		})
	}
	_ = g.Wait() // join barrier; workers never fail

	es := &EdgeSet{
		edgesFrom: make(map[string][]int),
		edgesTo:   make(map[string][]int),
	}
	for i, edges := range perUnit {
		es.selfRefs += selfRefs[i]
		for _, e := range edges {
			es.add(e)
		}
	}
	return es
}

func edgesOf(c *catalog.Catalog, u *domain.Unit) ([]domain.Edge, int) {
	edges := make([]domain.Edge, 0, len(u.References))
	self := 0
	for _, ref := range u.References {
		to := ref.Target
		if to == u.Name {
			self++
			continue
		}
		if !c.Has(to) {
			to = domain.External
		}
		edges = append(edges, domain.Edge{From: u.Name, To: to, Kind: ref.Kind})
	}
	return edges, self
}

func (es *EdgeSet) add(e domain.Edge) {
	idx := len(es.edges)
	es.edges = append(es.edges, e)
	es.edgesFrom[e.From] = append(es.edgesFrom[e.From], idx)
	es.edgesTo[e.To] = append(es.edgesTo[e.To], idx)
	if e.IsExternal() {
		es.externalRefs++
	}
}

// All returns a copy of every edge.
func (es *EdgeSet) All() []domain.Edge {
	out := make([]domain.Edge, len(es.edges))
	copy(out, es.edges)
	return out
}

// From returns the edges originating from the given unit.
func (es *EdgeSet) From(unit string) []domain.Edge {
	return es.pick(es.edgesFrom[unit])
}

// To returns the edges pointing to the given unit. To(domain.External) lists third-party references.
func (es *EdgeSet) To(unit string) []domain.Edge {
	return es.pick(es.edgesTo[unit])
}

func (es *EdgeSet) pick(idx []int) []domain.Edge {
	out := make([]domain.Edge, len(idx))
	for i, j := range idx {
		out[i] = es.edges[j]
	}
	return out
}

func (es *EdgeSet) Len() int { return len(es.edges) }

// ExternalCount is the number of edges rewritten to EXTERNAL.
func (es *EdgeSet) ExternalCount() int { return es.externalRefs }

// SelfReferences is the number of discarded self-edges.
func (es *EdgeSet) SelfReferences() int { return es.selfRefs }
