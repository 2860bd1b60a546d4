package optimize

import (
	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/meta"
)

// ClassResolver answers class-metadata queries. Implementations must be safe
// for concurrent reads; *meta.Domain is the standard one.
type ClassResolver interface {
	Builtins() *meta.Builtins
	// ResolveType resolves a type name to its class.
	ResolveType(mn *abc.Multiname) (*meta.Class, bool)
	// LookupTrait resolves a member of class c.
	LookupTrait(c *meta.Class, mn *abc.Multiname) (meta.Property, bool)
	// SlotType returns the declared type of a slot; nil with ok set means
	// the slot is untyped.
	SlotType(c *meta.Class, slot uint32) (*meta.Class, bool)
}

// ScopeResolver answers queries about the outer scope a method closes over.
// *meta.ScopeChain is the standard implementation.
type ScopeResolver interface {
	IsEmpty() bool
	At(depth int) (meta.Scope, bool)
	Lookup(mn *abc.Multiname) meta.Binding
	DefiningScript(mn *abc.Multiname) (*meta.Script, bool)
	Script(index uint32) (*meta.Script, bool)
	GlobalClass() (*meta.Class, bool)
}

var (
	_ ClassResolver = (*meta.Domain)(nil)
	_ ScopeResolver = (*meta.ScopeChain)(nil)
)

// emptyScope is used when a method has no outer scope information.
type emptyScope struct{}

func (emptyScope) IsEmpty() bool { return true }
func (emptyScope) At(int) (meta.Scope, bool) { return meta.Scope{}, false }
func (emptyScope) Lookup(*abc.Multiname) meta.Binding { return meta.Binding{} }
func (emptyScope) DefiningScript(*abc.Multiname) (*meta.Script, bool) { return nil, false }
func (emptyScope) Script(uint32) (*meta.Script, bool) { return nil, false }
func (emptyScope) GlobalClass() (*meta.Class, bool) { return nil, false }
