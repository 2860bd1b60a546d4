package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/chazu/avmprep/meta"
)

// printLayouts writes the slot and dispatch layout of every class a fixture
// defined, sorted by name. Builtin classes are skipped.
func printLayouts(w io.Writer, d *meta.Domain) error {
	builtin := builtinSet(d.Builtins())
	var classes []*meta.Class
	for _, c := range d.Classes().All() {
		if !builtin[c] {
			classes = append(classes, c)
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Name.String() < classes[j].Name.String()
	})

	for _, c := range classes {
		if err := printLayout(w, c); err != nil {
			return err
		}
	}
	return nil
}

func printLayout(w io.Writer, c *meta.Class) error {
	vt := c.VTable
	header := "class " + c.Name.String()
	if c.Interface {
		header = "interface " + c.Name.String()
	} else if parent := vt.Parent(); parent != nil {
		header += " extends " + parent.Class().Name.String()
	}
	if _, err := fmt.Fprintf(w, "%s (%d slots)\n", header, vt.SlotCount()); err != nil {
		return err
	}

	traits := vt.LocalTraits()
	names := make([]meta.QName, 0, len(traits))
	for n := range traits {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})

	for _, n := range names {
		var line string
		switch p := traits[n]; p.Kind {
		case meta.PropertySlot, meta.PropertyConstSlot:
			typ, _ := vt.SlotType(p.Slot)
			line = fmt.Sprintf("slot %d %s: %s", p.Slot, n, typ)
			if p.Kind == meta.PropertyConstSlot {
				line += " const"
			}
		case meta.PropertyMethod:
			line = fmt.Sprintf("method %d %s", p.Disp, n)
		case meta.PropertyVirtual:
			line = "accessor " + n.String()
			if p.HasGetter() {
				line += fmt.Sprintf(" get %d", p.Get)
			}
			if p.HasSetter() {
				line += fmt.Sprintf(" set %d", p.Set)
			}
		}
		if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func builtinSet(b *meta.Builtins) map[*meta.Class]bool {
	set := make(map[*meta.Class]bool)
	for _, c := range []*meta.Class{
		b.Object, b.Int, b.Uint, b.Number, b.Boolean, b.Class,
		b.String, b.Array, b.Function, b.Void, b.Namespace,
	} {
		set[c] = true
	}
	return set
}
