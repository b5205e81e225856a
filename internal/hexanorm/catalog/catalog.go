// Package catalog turns raw unit descriptors into the immutable node set every later stage reads.
package catalog

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
	"golang.org/x/sync/errgroup"
)

// Catalog is the validated, immutable set of units keyed by fully-qualified name.
type Catalog struct {
	units map[string]*domain.Unit
	names []string // sorted
}

type options struct {
	workers int
}

type Option func(*options)

// WithWorkers bounds the number of goroutines validating descriptors. Values < 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Ingest validates every descriptor and builds the catalog. The first malformed descriptor (in input
// order) wins over any duplicate, so the reported error does not depend on scheduling.
func Ingest(descriptors []domain.Descriptor, opts ...Option) (*Catalog, error) {
	units, err := buildAll(descriptors, opts)
	if err != nil {
		return nil, err
	}

	c := &Catalog{units: make(map[string]*domain.Unit, len(units))}
	for i, u := range units {
		if _, dup := c.units[u.Name]; dup {
			return nil, &domain.IngestError{
				Kind:   domain.IngestDuplicateName,
				Name:   u.Name,
				Index:  i,
				Reason: "fully-qualified name already declared",
			}
		}
		c.units[u.Name] = u
		c.names = append(c.names, u.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Validate reports the first malformed descriptor without building a catalog. Duplicate names are
// not checked.
func Validate(descriptors []domain.Descriptor, opts ...Option) error {
	_, err := buildAll(descriptors, opts)
	return err
}

func buildAll(descriptors []domain.Descriptor, opts []Option) ([]*domain.Unit, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	units := make([]*domain.Unit, len(descriptors))
	errs := make([]error, len(descriptors))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := range descriptors {
		g.Go(func() error {
			units[i], errs[i] = build(i, descriptors[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return units, nil
}

func build(i int, d domain.Descriptor) (*domain.Unit, error) {
	malformed := func(format string, args ...any) error {
		return &domain.IngestError{
			Kind:   domain.IngestMalformed,
			Name:   d.Name,
			Index:  i,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	name := strings.TrimSpace(d.Name)
	pkg := strings.TrimSpace(d.Package)
	switch {
	case name == "":
		return nil, malformed("missing name")
	case name == domain.External || name == domain.Unassigned:
		return nil, malformed("name %q is reserved", name)
	case !validQualified(name):
		return nil, malformed("name is not a dotted identifier")
	case pkg != "" && !validQualified(pkg):
		return nil, malformed("package %q is not a dotted identifier", pkg)
	case pkg == "" && strings.Contains(name, "."):
		return nil, malformed("missing package")
	case pkg != "" && !strings.HasPrefix(name, pkg+"."):
		return nil, malformed("name is not inside package %q", pkg)
	}

	if d.Kind == "" {
		return nil, malformed("missing kind")
	}
	kind, ok := domain.ParseKind(d.Kind)
	if !ok {
		return nil, malformed("unknown kind %q", d.Kind)
	}
	if d.Visibility == "" {
		return nil, malformed("missing visibility")
	}
	vis, ok := domain.ParseVisibility(d.Visibility)
	if !ok {
		return nil, malformed("unknown visibility %q", d.Visibility)
	}

	refs := make([]domain.Reference, 0, len(d.References))
	for j, r := range d.References {
		target := strings.TrimSpace(r.Target)
		if target == "" {
			return nil, malformed("reference #%d: missing target", j)
		}
		rk, ok := domain.ParseRefKind(string(r.Kind))
		if !ok {
			return nil, malformed("reference #%d: unknown kind %q", j, r.Kind)
		}
		refs = append(refs, domain.Reference{Target: target, Kind: rk})
	}

	topLevel := !strings.Contains(strings.TrimPrefix(name, pkg+"."), ".")
	if pkg == "" {
		topLevel = !strings.Contains(name, ".")
	}
	if d.TopLevel != nil {
		topLevel = *d.TopLevel
	}

	return &domain.Unit{
		Name:       name,
		Package:    pkg,
		Kind:       kind,
		Visibility: vis,
		TopLevel:   topLevel,
		References: refs,
		Source:     d.Source,
	}, nil
}

func validQualified(s string) bool {
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return false
		}
		for _, r := range seg {
			if r == '*' || r == ' ' || r == '\t' || r == '/' {
				return false
			}
		}
	}
	return true
}

// Get returns the unit with the given fully-qualified name.
func (c *Catalog) Get(name string) (*domain.Unit, bool) {
	u, ok := c.units[name]
	return u, ok
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.units[name]
	return ok
}

// Names returns all unit names in lexicographic order. The slice is a copy.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Units returns all units in name order.
func (c *Catalog) Units() []*domain.Unit {
	out := make([]*domain.Unit, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.units[n])
	}
	return out
}

func (c *Catalog) Len() int { return len(c.names) }
