package domain

import "strings"

// Pseudo-units and pseudo-layers. Neither can be declared by a descriptor or a layer config.
const (
	External   = "EXTERNAL"
	Unassigned = "UNASSIGNED"
)

type Kind string

const (
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
	KindValueType Kind = "value-type"
)

// ParseKind accepts the canonical names plus "record" as an alias of value-type.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class":
		return KindClass, true
	case "interface":
		return KindInterface, true
	case "enum":
		return KindEnum, true
	case "value-type", "value_type", "record":
		return KindValueType, true
	}
	return "", false
}

// Concrete reports whether units of this kind are implementation classes rather than contract types.
func (k Kind) Concrete() bool {
	return k == KindClass
}

type Visibility string

const (
	VisibilityPublic         Visibility = "public"
	VisibilityProtected      Visibility = "protected"
	VisibilityPackagePrivate Visibility = "package-private"
	VisibilityPrivate        Visibility = "private"
)

func ParseVisibility(s string) (Visibility, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return VisibilityPublic, true
	case "protected":
		return VisibilityProtected, true
	case "package-private", "package_private", "package":
		return VisibilityPackagePrivate, true
	case "private":
		return VisibilityPrivate, true
	}
	return "", false
}

type RefKind string

const (
	RefExtends       RefKind = "extends"
	RefImplements    RefKind = "implements"
	RefFieldType     RefKind = "field-type"
	RefParameterType RefKind = "parameter-type"
	RefReturnType    RefKind = "return-type"
	RefImport        RefKind = "import"
)

func ParseRefKind(s string) (RefKind, bool) {
	switch k := RefKind(strings.ToLower(strings.TrimSpace(s))); k {
	case RefExtends, RefImplements, RefFieldType, RefParameterType, RefReturnType, RefImport:
		return k, true
	}
	return "", false
}

// Reference is one resolved type reference as supplied by a front end.
type Reference struct {
	Target string  `json:"target" yaml:"target"`
	Kind   RefKind `json:"kind" yaml:"kind"`
}

// Descriptor is the raw, unvalidated unit record produced by a symbol-resolution front end.
// TopLevel is optional; when nil it is derived from Name and Package.
type Descriptor struct {
	Name       string      `json:"name" yaml:"name"`
	Package    string      `json:"package" yaml:"package"`
	Kind       string      `json:"kind" yaml:"kind"`
	Visibility string      `json:"visibility" yaml:"visibility"`
	TopLevel   *bool       `json:"top_level,omitempty" yaml:"top_level,omitempty"`
	References []Reference `json:"references,omitempty" yaml:"references,omitempty"`
	Source     string      `json:"source,omitempty" yaml:"source,omitempty"` // file the unit was read from
}

// Unit is an immutable catalog node. Callers must not modify References.
type Unit struct {
	Name       string      `json:"name"`
	Package    string      `json:"package"`
	Kind       Kind        `json:"kind"`
	Visibility Visibility  `json:"visibility"`
	TopLevel   bool        `json:"top_level"`
	References []Reference `json:"references,omitempty"`
	Source     string      `json:"source,omitempty"`
}

// SimpleName returns the unit name relative to its package.
func (u *Unit) SimpleName() string {
	if u.Package == "" {
		return u.Name
	}
	return strings.TrimPrefix(u.Name, u.Package+".")
}

type Edge struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Kind RefKind `json:"kind"`
}

// Identity is the lexicographic key the reporter orders edge violations by.
func (e Edge) Identity() string {
	return e.From + " -> " + e.To
}

// IsExternal reports whether the edge leaves the scanned codebase.
func (e Edge) IsExternal() bool {
	return e.To == External
}

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ERROR", "CRITICAL":
		return SeverityError, true
	case "WARNING", "WARN":
		return SeverityWarning, true
	}
	return "", false
}

// Violation is a single breach reported by a rule. Exactly one of Edge and Unit is set.
type Violation struct {
	Rule     string   `json:"rule" yaml:"rule"`
	Severity Severity `json:"severity" yaml:"severity"`
	Subject  string   `json:"subject" yaml:"subject"`
	Message  string   `json:"message" yaml:"message"`
	Edge     *Edge    `json:"edge,omitempty" yaml:"edge,omitempty"`
	Unit     string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Involves reports whether the violation was raised for the given unit, as source or subject.
func (v Violation) Involves(unit string) bool {
	if v.Edge != nil {
		return v.Edge.From == unit
	}
	return v.Unit == unit
}
