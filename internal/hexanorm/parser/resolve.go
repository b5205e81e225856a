package parser

import (
	"strings"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

// ResolveJava is the second pass over parsed files: with every declared type known, raw type
// names are turned into fully-qualified references. Lookup order follows Java scoping:
// types of the same file, single-type imports, the same package, on-demand imports.
// Names that resolve nowhere are kept as written; the extractor maps them to EXTERNAL.
func ResolveJava(files []*JavaFile) []domain.Descriptor {
	known := make(map[string]bool)
	for _, f := range files {
		for _, t := range f.Types {
			known[t.Name] = true
		}
	}

	var out []domain.Descriptor
	for _, f := range files {
		for _, t := range f.Types {
			top := t.TopLevel
			d := domain.Descriptor{
				Name:       t.Name,
				Package:    f.Package,
				Kind:       string(t.Kind),
				Visibility: string(t.Visibility),
				TopLevel:   &top,
				Source:     f.Path,
			}
			if t.TopLevel {
				for _, imp := range f.importRef {
					d.References = append(d.References, domain.Reference{Target: imp, Kind: domain.RefImport})
				}
			}
			for _, r := range t.refs {
				d.References = append(d.References, domain.Reference{
					Target: f.resolve(r.name, known),
					Kind:   r.kind,
				})
			}
			out = append(out, d)
		}
	}
	return out
}

func (f *JavaFile) resolve(name string, known map[string]bool) string {
	head, rest := name, ""
	if i := strings.Index(name, "."); i >= 0 {
		head, rest = name[:i], name[i:]
	}

	if fqn, ok := f.local[head]; ok {
		return fqn + rest
	}
	if fqn, ok := f.imports[head]; ok {
		return fqn + rest
	}
	if f.Package == "" {
		if known[name] {
			return name
		}
	} else if candidate := f.Package + "." + name; known[candidate] {
		return candidate
	}
	for _, w := range f.wildcards {
		if candidate := w + "." + name; known[candidate] {
			return candidate
		}
	}
	return name
}
