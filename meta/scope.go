package meta

import "github.com/chazu/avmprep/abc"

// Scope is one captured entry of a method's outer scope chain.
type Scope struct {
	// Values is the class of the scope object. Nil when unknown.
	Values *Class
	// With marks scopes pushed by pushwith; their contents are dynamic.
	With bool
}

// BindingKind classifies the result of an outer scope lookup.
type BindingKind uint8

const (
	// BindingNotFound means no captured scope defines the name.
	BindingNotFound BindingKind = iota
	// BindingOuter means the name lives on the scope object at Depth.
	BindingOuter
	// BindingDynamic means a with scope intervenes and the lookup must stay
	// dynamic.
	BindingDynamic
)

// Binding is the result of resolving a name against a scope chain.
type Binding struct {
	Kind  BindingKind
	Depth uint32
	Class *Class
}

// ScopeChain is the outer scope a method closes over, outermost first.
// Index 0 is the global scope. A ScopeChain is immutable once built.
type ScopeChain struct {
	domain *Domain
	scopes []Scope
}

// NewScopeChain creates a scope chain for methods defined in domain.
func NewScopeChain(domain *Domain, scopes ...Scope) *ScopeChain {
	return &ScopeChain{domain: domain, scopes: scopes}
}

// Chain returns a new scope chain with s appended as the innermost scope.
func (sc *ScopeChain) Chain(s Scope) *ScopeChain {
	scopes := make([]Scope, len(sc.scopes), len(sc.scopes)+1)
	copy(scopes, sc.scopes)
	return &ScopeChain{domain: sc.domain, scopes: append(scopes, s)}
}

// Domain returns the domain used for script lookups.
func (sc *ScopeChain) Domain() *Domain {
	return sc.domain
}

// Len returns the number of captured scopes.
func (sc *ScopeChain) Len() int {
	return len(sc.scopes)
}

// IsEmpty reports whether the chain captures no scopes.
func (sc *ScopeChain) IsEmpty() bool {
	return len(sc.scopes) == 0
}

// At returns the scope at depth.
func (sc *ScopeChain) At(depth int) (Scope, bool) {
	if depth < 0 || depth >= len(sc.scopes) {
		return Scope{}, false
	}
	return sc.scopes[depth], true
}

// Lookup searches the captured scopes from innermost to outermost,
// excluding the global scope. A with scope, or a scope whose class is
// unknown, stops the search.
func (sc *ScopeChain) Lookup(mn *abc.Multiname) Binding {
	for depth := len(sc.scopes) - 1; depth >= 1; depth-- {
		scope := sc.scopes[depth]
		if scope.With || scope.Values == nil {
			return Binding{Kind: BindingDynamic}
		}
		if scope.Values.VTable.HasTrait(mn) {
			return Binding{Kind: BindingOuter, Depth: uint32(depth), Class: scope.Values}
		}
	}
	return Binding{Kind: BindingNotFound}
}

// DefiningScript finds the script exporting mn in the chain's domain.
func (sc *ScopeChain) DefiningScript(mn *abc.Multiname) (*Script, bool) {
	if sc.domain == nil {
		return nil, false
	}
	return sc.domain.DefiningScript(mn)
}

// GlobalClass returns the class of the global scope object.
func (sc *ScopeChain) GlobalClass() (*Class, bool) {
	if len(sc.scopes) == 0 || sc.scopes[0].Values == nil {
		return nil, false
	}
	return sc.scopes[0].Values, true
}

// Script returns the script with the given index in the chain's domain.
func (sc *ScopeChain) Script(index uint32) (*Script, bool) {
	if sc.domain == nil {
		return nil, false
	}
	return sc.domain.Script(index)
}
