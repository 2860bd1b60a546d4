package abc

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Namespaces
// ---------------------------------------------------------------------------

// NamespaceKind distinguishes namespaces that share a URI.
type NamespaceKind uint8

const (
	NamespacePackage NamespaceKind = iota
	NamespacePackageInternal
	NamespaceProtected
	NamespaceExplicit
	NamespaceStaticProtected
	NamespacePrivate
)

var namespaceKindNames = [...]string{
	NamespacePackage:         "package",
	NamespacePackageInternal: "internal",
	NamespaceProtected:       "protected",
	NamespaceExplicit:        "explicit",
	NamespaceStaticProtected: "staticprotected",
	NamespacePrivate:         "private",
}

// String returns the keyword used for the kind in disassembly and fixtures.
func (k NamespaceKind) String() string {
	if int(k) < len(namespaceKindNames) {
		return namespaceKindNames[k]
	}
	return "unknown"
}

// ParseNamespaceKind parses a namespace kind keyword. "public" is accepted as
// an alias for package.
func ParseNamespaceKind(s string) (NamespaceKind, bool) {
	if s == "public" || s == "" {
		return NamespacePackage, true
	}
	for k, name := range namespaceKindNames {
		if name == s {
			return NamespaceKind(k), true
		}
	}
	return 0, false
}

// Namespace is a comparable namespace value.
type Namespace struct {
	Kind NamespaceKind
	URI  string
}

// Public is the public package namespace.
var Public = Namespace{Kind: NamespacePackage}

// PackageNamespace returns the public namespace of a package.
func PackageNamespace(uri string) Namespace {
	return Namespace{Kind: NamespacePackage, URI: uri}
}

// String renders the namespace as kind:uri, or just the URI for packages.
func (ns Namespace) String() string {
	if ns.Kind == NamespacePackage {
		return ns.URI
	}
	return ns.Kind.String() + ":" + ns.URI
}

// ---------------------------------------------------------------------------
// Multinames
// ---------------------------------------------------------------------------

// MultinameKind identifies the multiname encoding.
type MultinameKind uint8

const (
	// QName has a fixed namespace and a fixed local name.
	QName MultinameKind = iota
	// RTQName takes its namespace from the operand stack.
	RTQName
	// RTQNameL takes both namespace and name from the operand stack.
	RTQNameL
	// MultinameSet searches a namespace set for a fixed local name.
	MultinameSet
	// MultinameL searches a namespace set for a name taken from the stack.
	MultinameL
)

// Multiname is a property name reference.
type Multiname struct {
	Kind       MultinameKind
	Name       string
	Namespaces []Namespace
}

// NewQName returns a QName multiname.
func NewQName(ns Namespace, name string) *Multiname {
	return &Multiname{Kind: QName, Name: name, Namespaces: []Namespace{ns}}
}

// NewMultiname returns a namespace-set multiname.
func NewMultiname(name string, set ...Namespace) *Multiname {
	return &Multiname{Kind: MultinameSet, Name: name, Namespaces: set}
}

// HasLazyName reports whether the local name is popped from the operand stack.
func (m *Multiname) HasLazyName() bool {
	return m.Kind == RTQNameL || m.Kind == MultinameL
}

// HasLazyNS reports whether the namespace is popped from the operand stack.
func (m *Multiname) HasLazyNS() bool {
	return m.Kind == RTQName || m.Kind == RTQNameL
}

// HasLazyComponent reports whether any part of the name is only known at
// runtime.
func (m *Multiname) HasLazyComponent() bool {
	return m.HasLazyName() || m.HasLazyNS()
}

// Matches reports whether the multiname refers to the qualified name
// (ns, name). Lazy components never match.
func (m *Multiname) Matches(ns Namespace, name string) bool {
	if m.HasLazyComponent() || m.Name != name {
		return false
	}
	for _, candidate := range m.Namespaces {
		if candidate == ns {
			return true
		}
	}
	return false
}

// String renders the multiname for disassembly.
func (m *Multiname) String() string {
	var sb strings.Builder
	switch {
	case m.HasLazyNS():
		sb.WriteString("[rt]::")
	case len(m.Namespaces) == 1:
		if ns := m.Namespaces[0].String(); ns != "" {
			sb.WriteString(ns)
			sb.WriteString("::")
		}
	case len(m.Namespaces) > 1:
		sb.WriteString("{")
		for i, ns := range m.Namespaces {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(ns.String())
		}
		sb.WriteString("}::")
	}
	if m.HasLazyName() {
		sb.WriteString("[rt]")
	} else {
		sb.WriteString(m.Name)
	}
	return sb.String()
}
