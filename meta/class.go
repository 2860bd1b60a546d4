package meta

// ---------------------------------------------------------------------------
// Class: instance-side class metadata
// ---------------------------------------------------------------------------

// Class describes the instance layout of an AVM2 class: its traits, slot
// types and dispatch ids. A class must be fully defined before subclasses
// are created from it.
type Class struct {
	Name       QName
	Superclass *Class
	Interface  bool
	VTable     *VTable
}

// NewClass creates a class with the given name and superclass. The VTable
// is created and linked to the superclass's.
func NewClass(name QName, superclass *Class) *Class {
	var parentVT *VTable
	if superclass != nil {
		parentVT = superclass.VTable
	}
	c := &Class{
		Name:       name,
		Superclass: superclass,
	}
	c.VTable = NewVTable(c, parentVT)
	return c
}

// NewInterface creates an interface. Receivers typed as interfaces are never
// specialized because the implementing class decides the layout.
func NewInterface(name QName) *Class {
	c := NewClass(name, nil)
	c.Interface = true
	return c
}

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// Superclasses returns all superclasses from immediate parent to root.
func (c *Class) Superclasses() []*Class {
	var result []*Class
	for current := c.Superclass; current != nil; current = current.Superclass {
		result = append(result, current)
	}
	return result
}

// String implements the Stringer interface.
func (c *Class) String() string {
	if c == nil {
		return "*"
	}
	return c.Name.String()
}
