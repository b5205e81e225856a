// Package layers holds the named architectural layers and classifies units into them.
package layers

import (
	"strings"

	"github.com/pmaojo/hexanorm/internal/hexanorm/catalog"
	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

// Layer is a name plus its matchers in declaration order.
type Layer struct {
	Name     string
	Patterns []Pattern
}

// Registry classifies units first-match-wins: layers are tried in registration order and, within
// a layer, patterns in declaration order. It is not safe for concurrent Register calls, but
// Classify may be called concurrently once registration is done.
type Registry struct {
	layers []Layer
	index  map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register declares a layer. It fails with ConfigurationError::DuplicateLayer when the name is
// already taken, and with InvalidPattern for any bad glob; on failure the registry is unchanged.
func (r *Registry) Register(name string, patterns ...string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return &domain.ConfigurationError{Kind: domain.ConfigInvalidLayer, Subject: name, Reason: "layer name is empty"}
	case name == domain.Unassigned || name == domain.External:
		return &domain.ConfigurationError{Kind: domain.ConfigInvalidLayer, Subject: name, Reason: "layer name is reserved"}
	case len(patterns) == 0:
		return &domain.ConfigurationError{Kind: domain.ConfigInvalidLayer, Subject: name, Reason: "layer declares no patterns"}
	}
	if _, dup := r.index[name]; dup {
		return &domain.ConfigurationError{Kind: domain.ConfigDuplicateLayer, Subject: name, Reason: "layer is already registered"}
	}

	compiled := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		cp, err := CompilePattern(p)
		if err != nil {
			return err
		}
		compiled = append(compiled, cp)
	}

	r.index[name] = len(r.layers)
	r.layers = append(r.layers, Layer{Name: name, Patterns: compiled})
	return nil
}

// Has reports whether name is a registered layer. The pseudo-layer UNASSIGNED is not registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Names returns the layer names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.layers))
	for i, l := range r.layers {
		out[i] = l.Name
	}
	return out
}

// Layers returns a copy of the declared layers.
func (r *Registry) Layers() []Layer {
	out := make([]Layer, len(r.layers))
	copy(out, r.layers)
	return out
}

// Classify returns the layer of u, or UNASSIGNED.
func (r *Registry) Classify(u *domain.Unit) string {
	return r.ClassifyPackage(u.Package)
}

func (r *Registry) ClassifyPackage(pkg string) string {
	for _, l := range r.layers {
		for _, p := range l.Patterns {
			if p.Match(pkg) {
				return l.Name
			}
		}
	}
	return domain.Unassigned
}

// Assignment is the classification of a whole catalog, computed once per run.
type Assignment struct {
	registry *Registry
	layerOf  map[string]string
	members  map[string][]string
}

// Assign classifies every unit of c.
func (r *Registry) Assign(c *catalog.Catalog) *Assignment {
	a := &Assignment{
		registry: r,
		layerOf:  make(map[string]string, c.Len()),
		members:  make(map[string][]string),
	}
	for _, u := range c.Units() {
		l := r.Classify(u)
		a.layerOf[u.Name] = l
		a.members[l] = append(a.members[l], u.Name)
	}
	return a
}

func (a *Assignment) Registry() *Registry { return a.registry }

// LayerOf returns the layer of a catalogued unit. EXTERNAL and unknown names have no layer ("").
func (a *Assignment) LayerOf(unit string) string {
	return a.layerOf[unit]
}

// Members returns the units of a layer in name order.
func (a *Assignment) Members(layer string) []string {
	m := a.members[layer]
	out := make([]string, len(m))
	copy(out, m)
	return out
}

// Counts returns the number of units per layer, UNASSIGNED included when non-empty.
func (a *Assignment) Counts() map[string]int {
	out := make(map[string]int, len(a.members))
	for l, m := range a.members {
		out[l] = len(m)
	}
	return out
}
