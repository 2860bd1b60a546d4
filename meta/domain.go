package meta

import (
	"sync"

	"github.com/chazu/avmprep/abc"
)

// ---------------------------------------------------------------------------
// ClassTable: class registry keyed by qualified name
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by qualified name.
// It's thread-safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[QName]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[QName]*Class),
	}
}

// Register adds a class to the table.
// Returns the previous class with this name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	old := ct.classes[c.Name]
	ct.classes[c.Name] = c
	return old
}

// Lookup finds a class by qualified name.
func (ct *ClassTable) Lookup(name QName) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// All returns all registered classes.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

// Builtins are the classes the optimizer's type rules refer to directly.
type Builtins struct {
	Object    *Class
	Int       *Class
	Uint      *Class
	Number    *Class
	Boolean   *Class
	Class     *Class
	String    *Class
	Array     *Class
	Function  *Class
	Void      *Class
	Namespace *Class
}

// IsPrimitive reports whether c is one of the non-nullable primitive types
// (int, uint, Number, Boolean, void).
func (b *Builtins) IsPrimitive(c *Class) bool {
	return c != nil && (c == b.Int || c == b.Uint || c == b.Number || c == b.Boolean || c == b.Void)
}

// IsNumeric reports whether c is int, uint or Number.
func (b *Builtins) IsNumeric(c *Class) bool {
	return c != nil && (c == b.Int || c == b.Uint || c == b.Number)
}

func newBuiltins(table *ClassTable) *Builtins {
	public := func(name string, super *Class) *Class {
		c := NewClass(QName{NS: abc.Public, Local: name}, super)
		table.Register(c)
		return c
	}
	object := public("Object", nil)
	return &Builtins{
		Object:    object,
		Int:       public("int", object),
		Uint:      public("uint", object),
		Number:    public("Number", object),
		Boolean:   public("Boolean", object),
		Class:     public("Class", object),
		String:    public("String", object),
		Array:     public("Array", object),
		Function:  public("Function", object),
		Void:      public("void", nil),
		Namespace: public("Namespace", object),
	}
}

// ---------------------------------------------------------------------------
// Scripts
// ---------------------------------------------------------------------------

// Script is a loaded script whose global object exports names.
type Script struct {
	Index uint32
	Name  string

	// Globals is the class of the script's global object. It is nil until
	// the script has been initialized.
	Globals *Class

	domain  *Domain
	exports map[QName]struct{}
}

// Exports reports whether the script defines the multiname.
func (s *Script) Exports(mn *abc.Multiname) bool {
	if mn == nil || mn.HasLazyComponent() {
		return false
	}
	for _, ns := range mn.Namespaces {
		if _, ok := s.exports[QName{NS: ns, Local: mn.Name}]; ok {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Domain
// ---------------------------------------------------------------------------

// Domain is an application domain: the classes and scripts visible to the
// methods loaded into it, falling back to a parent domain.
//
// A Domain answers the class-metadata queries the optimizer makes. All
// lookups are safe for concurrent use while classes are being defined.
type Domain struct {
	parent   *Domain
	classes  *ClassTable
	builtins *Builtins
	scripts  *scriptTable
}

// scriptTable is shared by a root domain and its children so script indices
// are unique across the tree.
type scriptTable struct {
	mu      sync.RWMutex
	scripts []*Script
}

// NewDomain creates a root domain with the builtin classes registered.
func NewDomain() *Domain {
	table := NewClassTable()
	return &Domain{
		classes:  table,
		builtins: newBuiltins(table),
		scripts:  &scriptTable{},
	}
}

// NewChildDomain creates a domain that falls back to d.
func (d *Domain) NewChildDomain() *Domain {
	return &Domain{
		parent:   d,
		classes:  NewClassTable(),
		builtins: d.builtins,
		scripts:  d.scripts,
	}
}

// Builtins returns the builtin classes.
func (d *Domain) Builtins() *Builtins {
	return d.builtins
}

// Classes returns the domain's own class table.
func (d *Domain) Classes() *ClassTable {
	return d.classes
}

// DefineClass creates and registers a class.
func (d *Domain) DefineClass(name QName, superclass *Class) *Class {
	c := NewClass(name, superclass)
	d.classes.Register(c)
	return c
}

// DefineInterface creates and registers an interface.
func (d *Domain) DefineInterface(name QName) *Class {
	c := NewInterface(name)
	d.classes.Register(c)
	return c
}

// LookupClass finds a class by qualified name in d or its ancestors.
func (d *Domain) LookupClass(name QName) *Class {
	for cur := d; cur != nil; cur = cur.parent {
		if c := cur.classes.Lookup(name); c != nil {
			return c
		}
	}
	return nil
}

// ResolveType resolves a type multiname to a class. Lazy multinames and
// unknown names do not resolve.
func (d *Domain) ResolveType(mn *abc.Multiname) (*Class, bool) {
	if mn == nil || mn.HasLazyComponent() {
		return nil, false
	}
	for _, ns := range mn.Namespaces {
		if c := d.LookupClass(QName{NS: ns, Local: mn.Name}); c != nil {
			return c, true
		}
	}
	return nil, false
}

// LookupTrait resolves a member of class c.
func (d *Domain) LookupTrait(c *Class, mn *abc.Multiname) (Property, bool) {
	if c == nil {
		return Property{}, false
	}
	return c.VTable.Lookup(mn)
}

// SlotType resolves the declared type of a slot. A nil class with ok set
// means the slot is untyped ("*").
func (d *Domain) SlotType(c *Class, slot uint32) (*Class, bool) {
	if c == nil {
		return nil, false
	}
	name, ok := c.VTable.SlotType(slot)
	if !ok {
		return nil, false
	}
	if name.IsAny() {
		return nil, true
	}
	if t := d.LookupClass(name); t != nil {
		return t, true
	}
	return nil, false
}

// DefineScript registers a script that exports the given names.
func (d *Domain) DefineScript(name string, globals *Class, exports ...QName) *Script {
	d.scripts.mu.Lock()
	defer d.scripts.mu.Unlock()

	s := &Script{
		Index:   uint32(len(d.scripts.scripts)),
		Name:    name,
		Globals: globals,
		domain:  d,
		exports: make(map[QName]struct{}, len(exports)),
	}
	for _, q := range exports {
		s.exports[q] = struct{}{}
	}
	d.scripts.scripts = append(d.scripts.scripts, s)
	return s
}

// DefiningScript finds the script that exports a name, searching parent
// domains first.
func (d *Domain) DefiningScript(mn *abc.Multiname) (*Script, bool) {
	if d.parent != nil {
		if s, ok := d.parent.DefiningScript(mn); ok {
			return s, true
		}
	}
	d.scripts.mu.RLock()
	defer d.scripts.mu.RUnlock()
	for _, s := range d.scripts.scripts {
		if s.domain == d && s.Exports(mn) {
			return s, true
		}
	}
	return nil, false
}

// Script returns the script with the given index.
func (d *Domain) Script(index uint32) (*Script, bool) {
	d.scripts.mu.RLock()
	defer d.scripts.mu.RUnlock()
	if int(index) >= len(d.scripts.scripts) {
		return nil, false
	}
	return d.scripts.scripts[index], true
}
