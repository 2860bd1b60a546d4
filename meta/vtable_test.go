package meta

import (
	"sync"
	"testing"

	"github.com/chazu/avmprep/abc"
)

func qn(local string) QName {
	return QName{NS: abc.Public, Local: local}
}

func TestVTableSlotAndDispatchIDs(t *testing.T) {
	base := NewClass(qn("Base"), nil)
	if id := base.VTable.DefineSlot(qn("a"), qn("int"), false); id != 1 {
		t.Errorf("first slot = %d, want 1", id)
	}
	if id := base.VTable.DefineSlot(qn("b"), Any, true); id != 2 {
		t.Errorf("second slot = %d, want 2", id)
	}
	if id := base.VTable.DefineMethod(qn("run")); id != 1 {
		t.Errorf("first method = %d, want 1", id)
	}

	derived := NewClass(qn("Derived"), base)
	if id := derived.VTable.DefineSlot(qn("c"), qn("String"), false); id != 3 {
		t.Errorf("subclass slot = %d, want 3", id)
	}
	if id := derived.VTable.DefineMethod(qn("run")); id != 1 {
		t.Errorf("override dispatch id = %d, want 1", id)
	}
	if id := derived.VTable.DefineMethod(qn("stop")); id != 2 {
		t.Errorf("new method = %d, want 2", id)
	}
	if n := derived.VTable.SlotCount(); n != 3 {
		t.Errorf("SlotCount = %d, want 3", n)
	}
	if n := len(derived.VTable.LocalTraits()); n != 3 {
		t.Errorf("local traits = %d, want 3", n)
	}
}

func TestVTableLookup(t *testing.T) {
	base := NewClass(qn("Base"), nil)
	base.VTable.DefineSlot(qn("a"), qn("int"), false)
	base.VTable.DefineGetter(qn("size"))
	derived := NewClass(qn("Derived"), base)
	derived.VTable.DefineSetter(qn("size"))

	tests := []struct {
		name string
		mn   *abc.Multiname
		want Property
		ok   bool
	}{
		{"inherited slot", abc.NewQName(abc.Public, "a"), Property{Kind: PropertySlot, Slot: 1}, true},
		{"accessor pair", abc.NewQName(abc.Public, "size"), Property{Kind: PropertyVirtual, Get: 1, Set: 2}, true},
		{"namespace set", abc.NewMultiname("a", abc.PackageNamespace("flash"), abc.Public), Property{Kind: PropertySlot, Slot: 1}, true},
		{"other namespace", abc.NewQName(abc.PackageNamespace("flash"), "a"), Property{}, false},
		{"lazy name", &abc.Multiname{Kind: abc.MultinameL, Namespaces: []abc.Namespace{abc.Public}}, Property{}, false},
		{"missing", abc.NewQName(abc.Public, "zzz"), Property{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := derived.VTable.Lookup(tt.mn)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Lookup = %+v, %t; want %+v, %t", got, ok, tt.want, tt.ok)
			}
		})
	}

	if p, _ := derived.VTable.Lookup(abc.NewQName(abc.Public, "size")); !p.HasGetter() || !p.HasSetter() {
		t.Error("size should have both accessors")
	}
	if p, _ := base.VTable.Lookup(abc.NewQName(abc.Public, "size")); p.HasSetter() {
		t.Error("defining a subclass setter changed the base class")
	}
}

func TestVTableSlotTypeInherited(t *testing.T) {
	base := NewClass(qn("Base"), nil)
	base.VTable.DefineSlot(qn("a"), qn("int"), false)
	derived := NewClass(qn("Derived"), base)

	if typ, ok := derived.VTable.SlotType(1); !ok || typ != qn("int") {
		t.Errorf("SlotType(1) = %s, %t", typ, ok)
	}
	if _, ok := derived.VTable.SlotType(7); ok {
		t.Error("SlotType of an undefined slot should fail")
	}
}

func TestVTableConcurrentReads(t *testing.T) {
	c := NewClass(qn("C"), nil)
	mn := abc.NewQName(abc.Public, "x")

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n == 0 {
				for i := 0; i < 100; i++ {
					c.VTable.DefineSlot(qn("s"+string(rune('a'+i%26))), Any, false)
				}
				c.VTable.DefineSlot(qn("x"), Any, false)
				return
			}
			for i := 0; i < 100; i++ {
				c.VTable.Lookup(mn)
				c.VTable.SlotType(uint32(i))
			}
		}(n)
	}
	wg.Wait()

	if !c.VTable.HasTrait(mn) {
		t.Error("x should be defined after the writers finish")
	}
}

func TestClassHierarchy(t *testing.T) {
	a := NewClass(qn("A"), nil)
	b := NewClass(qn("B"), a)
	c := NewClass(qn("C"), b)

	if !c.IsSubclassOf(a) || !c.IsSubclassOf(c) || a.IsSubclassOf(c) {
		t.Error("IsSubclassOf")
	}
	supers := c.Superclasses()
	if len(supers) != 2 || supers[0] != b || supers[1] != a {
		t.Errorf("Superclasses = %v", supers)
	}
	if s := (*Class)(nil).String(); s != "*" {
		t.Errorf("nil class = %q", s)
	}
	if !NewInterface(qn("I")).Interface {
		t.Error("NewInterface should mark the class")
	}
}
