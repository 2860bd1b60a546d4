package meta

import (
	"sync"

	"github.com/chazu/avmprep/abc"
)

// PropertyKind identifies how a trait is bound.
type PropertyKind uint8

const (
	// PropertySlot is a writable data slot.
	PropertySlot PropertyKind = iota
	// PropertyConstSlot is a data slot that can only be initialized.
	PropertyConstSlot
	// PropertyVirtual is a getter and/or setter pair.
	PropertyVirtual
	// PropertyMethod is a method at a fixed dispatch id.
	PropertyMethod
)

// Property is a resolved trait binding. Dispatch id 0 is never valid, so a
// zero Get or Set means the accessor is absent.
type Property struct {
	Kind PropertyKind
	Slot uint32
	Disp uint32
	Get  uint32
	Set  uint32
}

// HasGetter reports whether a virtual property can be read.
func (p Property) HasGetter() bool {
	return p.Kind == PropertyVirtual && p.Get != 0
}

// HasSetter reports whether a virtual property can be written.
func (p Property) HasSetter() bool {
	return p.Kind == PropertyVirtual && p.Set != 0
}

// QName is a fully qualified name.
type QName struct {
	NS    abc.Namespace
	Local string
}

// Any is the zero QName, standing for the untyped "*".
var Any = QName{}

// IsAny reports whether q names the untyped "*".
func (q QName) IsAny() bool {
	return q == Any
}

// String renders the name as ns::local.
func (q QName) String() string {
	if q.IsAny() {
		return "*"
	}
	if ns := q.NS.String(); ns != "" {
		return ns + "::" + q.Local
	}
	return q.Local
}

// ---------------------------------------------------------------------------
// VTable
// ---------------------------------------------------------------------------

// VTable holds the instance traits of a class.
//
// Traits and slot types declared by a class are stored locally; inherited
// ones are found by walking the parent chain. Slot ids are global to the
// hierarchy: a subclass numbers its slots after its parent's.
type VTable struct {
	mu        sync.RWMutex
	class     *Class
	parent    *VTable
	traits    map[QName]Property
	slotTypes map[uint32]QName
	nextSlot  uint32
	nextDisp  uint32
}

// NewVTable creates a vtable for class inheriting from parent.
func NewVTable(class *Class, parent *VTable) *VTable {
	vt := &VTable{
		class:     class,
		parent:    parent,
		traits:    make(map[QName]Property),
		slotTypes: make(map[uint32]QName),
		nextSlot:  1,
		nextDisp:  1,
	}
	if parent != nil {
		parent.mu.RLock()
		vt.nextSlot = parent.nextSlot
		vt.nextDisp = parent.nextDisp
		parent.mu.RUnlock()
	}
	return vt
}

// Lookup finds the trait a multiname refers to, walking the inheritance
// chain. Lazy multinames never resolve.
func (vt *VTable) Lookup(mn *abc.Multiname) (Property, bool) {
	if mn == nil || mn.HasLazyComponent() {
		return Property{}, false
	}
	for v := vt; v != nil; v = v.parent {
		if p, ok := v.lookupLocal(mn); ok {
			return p, true
		}
	}
	return Property{}, false
}

func (vt *VTable) lookupLocal(mn *abc.Multiname) (Property, bool) {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	for _, ns := range mn.Namespaces {
		if p, ok := vt.traits[QName{NS: ns, Local: mn.Name}]; ok {
			return p, true
		}
	}
	return Property{}, false
}

// HasTrait reports whether the multiname resolves to any trait.
func (vt *VTable) HasTrait(mn *abc.Multiname) bool {
	_, ok := vt.Lookup(mn)
	return ok
}

// SlotType returns the declared type name of a slot.
func (vt *VTable) SlotType(slot uint32) (QName, bool) {
	for v := vt; v != nil; v = v.parent {
		v.mu.RLock()
		t, ok := v.slotTypes[slot]
		v.mu.RUnlock()
		if ok {
			return t, true
		}
	}
	return Any, false
}

// DefineSlot adds a data slot and returns its slot id.
func (vt *VTable) DefineSlot(name QName, typ QName, constant bool) uint32 {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	id := vt.nextSlot
	vt.nextSlot++
	kind := PropertySlot
	if constant {
		kind = PropertyConstSlot
	}
	vt.traits[name] = Property{Kind: kind, Slot: id}
	vt.slotTypes[id] = typ
	return id
}

// DefineMethod adds a method and returns its dispatch id. Redefining an
// inherited method reuses the parent's dispatch id.
func (vt *VTable) DefineMethod(name QName) uint32 {
	if vt.parent != nil {
		if p, ok := vt.parent.Lookup(abc.NewQName(name.NS, name.Local)); ok && p.Kind == PropertyMethod {
			vt.mu.Lock()
			vt.traits[name] = p
			vt.mu.Unlock()
			return p.Disp
		}
	}

	vt.mu.Lock()
	defer vt.mu.Unlock()
	id := vt.allocDisp()
	vt.traits[name] = Property{Kind: PropertyMethod, Disp: id}
	return id
}

// DefineGetter adds or extends a virtual property with a getter.
func (vt *VTable) DefineGetter(name QName) uint32 {
	return vt.defineAccessor(name, true)
}

// DefineSetter adds or extends a virtual property with a setter.
func (vt *VTable) DefineSetter(name QName) uint32 {
	return vt.defineAccessor(name, false)
}

func (vt *VTable) defineAccessor(name QName, getter bool) uint32 {
	var inherited Property
	if vt.parent != nil {
		if p, ok := vt.parent.Lookup(abc.NewQName(name.NS, name.Local)); ok && p.Kind == PropertyVirtual {
			inherited = p
		}
	}

	vt.mu.Lock()
	defer vt.mu.Unlock()

	p, ok := vt.traits[name]
	if !ok || p.Kind != PropertyVirtual {
		p = inherited
		p.Kind = PropertyVirtual
	}
	var id uint32
	if getter {
		if p.Get == 0 {
			p.Get = vt.allocDisp()
		}
		id = p.Get
	} else {
		if p.Set == 0 {
			p.Set = vt.allocDisp()
		}
		id = p.Set
	}
	vt.traits[name] = p
	return id
}

func (vt *VTable) allocDisp() uint32 {
	id := vt.nextDisp
	vt.nextDisp++
	return id
}

// Parent returns the parent vtable.
func (vt *VTable) Parent() *VTable {
	return vt.parent
}

// Class returns the class this vtable belongs to.
func (vt *VTable) Class() *Class {
	return vt.class
}

// SlotCount returns the number of slots including inherited ones.
func (vt *VTable) SlotCount() int {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	return int(vt.nextSlot - 1)
}

// LocalTraits returns a copy of the traits declared by this class only.
func (vt *VTable) LocalTraits() map[QName]Property {
	vt.mu.RLock()
	defer vt.mu.RUnlock()
	result := make(map[QName]Property, len(vt.traits))
	for k, v := range vt.traits {
		result[k] = v
	}
	return result
}
