package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/pmaojo/hexanorm/internal/hexanorm/domain"
)

// JavaFile is the first-pass view of one compilation unit: declarations and raw type names,
// not yet resolved against the rest of the codebase.
type JavaFile struct {
	Path      string
	Package   string
	Types     []*JavaType
	imports   map[string]string // simple name -> FQN
	wildcards []string          // on-demand import prefixes
	importRef []string          // FQN targets of single-type and static imports
	local     map[string]string // types declared in this file: simple name -> FQN
}

// JavaType is one declared class, interface, enum, record or annotation type.
type JavaType struct {
	Name       string
	Kind       domain.Kind
	Visibility domain.Visibility
	TopLevel   bool
	refs       []rawRef
	typeParams map[string]bool
}

type rawRef struct {
	name string
	kind domain.RefKind
}

var typeDeclarations = map[string]domain.Kind{
	"class_declaration":           domain.KindClass,
	"interface_declaration":       domain.KindInterface,
	"annotation_type_declaration": domain.KindInterface,
	"enum_declaration":            domain.KindEnum,
	"record_declaration":          domain.KindValueType,
}

// ParseJava parses one Java source file.
func ParseJava(ctx context.Context, path string, content []byte) (*JavaFile, error) {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	root := tree.RootNode()

	f := &JavaFile{
		Path:    path,
		imports: make(map[string]string),
		local:   make(map[string]string),
	}

	// Package and imports first: type names are qualified with the package.
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_declaration":
			f.Package = packageName(n, content)
		case "import_declaration":
			f.addImport(n.Content(content))
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if kind, ok := typeDeclarations[n.Type()]; ok {
			f.declare(n, kind, nil, content)
		}
	}
	return f, nil
}

func packageName(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "scoped_identifier" || c.Type() == "identifier" {
			return compact(c.Content(src))
		}
	}
	return ""
}

func (f *JavaFile) addImport(text string) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))
	text = strings.TrimSpace(strings.TrimPrefix(text, "import"))
	static := strings.HasPrefix(text, "static ")
	if static {
		text = strings.TrimSpace(strings.TrimPrefix(text, "static"))
	}
	text = compact(text)
	if text == "" {
		return
	}

	wildcard := strings.HasSuffix(text, ".*")
	target := strings.TrimSuffix(text, ".*")
	switch {
	case static && wildcard:
		f.importRef = append(f.importRef, target)
	case static:
		if i := strings.LastIndex(target, "."); i > 0 {
			f.importRef = append(f.importRef, target[:i])
		}
	case wildcard:
		f.wildcards = append(f.wildcards, target)
	default:
		f.imports[lastSegment(target)] = target
		f.importRef = append(f.importRef, target)
	}
}

func (f *JavaFile) declare(n *sitter.Node, kind domain.Kind, outer *JavaType, src []byte) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	simple := nameNode.Content(src)

	t := &JavaType{
		Kind:       kind,
		TopLevel:   outer == nil,
		Visibility: visibility(n, outer, src),
		typeParams: make(map[string]bool),
	}
	switch {
	case outer != nil:
		t.Name = outer.Name + "." + simple
		for p := range outer.typeParams {
			t.typeParams[p] = true
		}
	case f.Package != "":
		t.Name = f.Package + "." + simple
	default:
		t.Name = simple
	}
	if _, taken := f.local[simple]; !taken {
		f.local[simple] = t.Name
	}
	f.Types = append(f.Types, t)

	if tp := n.ChildByFieldName("type_parameters"); tp != nil {
		addTypeParams(t.typeParams, tp, src)
	}

	if sc := n.ChildByFieldName("superclass"); sc != nil {
		t.addTypes(sc, domain.RefExtends, src)
	}
	if ifs := n.ChildByFieldName("interfaces"); ifs != nil {
		t.addTypes(ifs, domain.RefImplements, src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "extends_interfaces" {
			t.addTypes(c, domain.RefExtends, src)
		}
	}
	if kind == domain.KindValueType {
		if params := n.ChildByFieldName("parameters"); params != nil {
			t.addParameters(params, domain.RefFieldType, nil, src)
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		f.members(body, t, src)
	}
}

func (f *JavaFile) members(body *sitter.Node, t *JavaType, src []byte) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if kind, ok := typeDeclarations[m.Type()]; ok {
			f.declare(m, kind, t, src)
			continue
		}
		switch m.Type() {
		case "field_declaration", "constant_declaration":
			if ty := m.ChildByFieldName("type"); ty != nil {
				t.addTypes(ty, domain.RefFieldType, src)
			}
		case "method_declaration", "annotation_type_element_declaration":
			local := map[string]bool{}
			if tp := m.ChildByFieldName("type_parameters"); tp != nil {
				addTypeParams(local, tp, src)
			}
			if ty := m.ChildByFieldName("type"); ty != nil {
				t.addTypesExcept(ty, domain.RefReturnType, local, src)
			}
			if params := m.ChildByFieldName("parameters"); params != nil {
				t.addParameters(params, domain.RefParameterType, local, src)
			}
		case "constructor_declaration":
			local := map[string]bool{}
			if tp := m.ChildByFieldName("type_parameters"); tp != nil {
				addTypeParams(local, tp, src)
			}
			if params := m.ChildByFieldName("parameters"); params != nil {
				t.addParameters(params, domain.RefParameterType, local, src)
			}
		case "enum_body_declarations":
			f.members(m, t, src)
		}
	}
}

func visibility(n *sitter.Node, outer *JavaType, src []byte) domain.Visibility {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "modifiers" {
			continue
		}
		for j := 0; j < int(c.ChildCount()); j++ {
			switch c.Child(j).Type() {
			case "public":
				return domain.VisibilityPublic
			case "protected":
				return domain.VisibilityProtected
			case "private":
				return domain.VisibilityPrivate
			}
		}
	}
	// Members of interfaces are implicitly public.
	if outer != nil && outer.Kind == domain.KindInterface {
		return domain.VisibilityPublic
	}
	return domain.VisibilityPackagePrivate
}

func addTypeParams(into map[string]bool, tp *sitter.Node, src []byte) {
	for i := 0; i < int(tp.NamedChildCount()); i++ {
		c := tp.NamedChild(i)
		if c.Type() != "type_parameter" {
			continue
		}
		fields := strings.Fields(c.Content(src))
		for _, fld := range fields {
			if !strings.HasPrefix(fld, "@") {
				into[fld] = true
				break
			}
		}
	}
}

func (t *JavaType) addParameters(params *sitter.Node, kind domain.RefKind, local map[string]bool, src []byte) {
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			if ty := p.ChildByFieldName("type"); ty != nil {
				t.addTypesExcept(ty, kind, local, src)
			}
		case "spread_parameter":
			for j := 0; j < int(p.NamedChildCount()); j++ {
				c := p.NamedChild(j)
				if c.Type() != "variable_declarator" && c.Type() != "modifiers" {
					t.addTypesExcept(c, kind, local, src)
				}
			}
		}
	}
}

func (t *JavaType) addTypes(n *sitter.Node, kind domain.RefKind, src []byte) {
	t.addTypesExcept(n, kind, nil, src)
}

func (t *JavaType) addTypesExcept(n *sitter.Node, kind domain.RefKind, local map[string]bool, src []byte) {
	var names []string
	collectTypeNames(n, src, &names)
	for _, name := range names {
		if t.typeParams[name] || local[name] {
			continue
		}
		t.refs = append(t.refs, rawRef{name: name, kind: kind})
	}
}

// collectTypeNames gathers every class-like type name below n, type arguments included.
// Primitive and void types have their own node types and are skipped.
func collectTypeNames(n *sitter.Node, src []byte, out *[]string) {
	switch n.Type() {
	case "type_identifier":
		*out = append(*out, n.Content(src))
		return
	case "scoped_type_identifier":
		*out = append(*out, stripTypeArgs(compact(n.Content(src))))
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c.Type() == "generic_type" {
				collectTypeArgs(c, src, out)
			}
		}
		return
	case "annotation", "marker_annotation":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectTypeNames(n.NamedChild(i), src, out)
	}
}

func collectTypeArgs(n *sitter.Node, src []byte, out *[]string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "type_arguments" {
			collectTypeNames(c, src, out)
		}
	}
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func stripTypeArgs(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}
