// Package fixture loads class and method descriptions from TOML files, so
// method bodies can be prepared without a compiler.
//
// A fixture file looks like:
//
//	[[class]]
//	name = "flash.geom::Point"
//	methods = ["length"]
//	[[class.slot]]
//	name = "x"
//	type = "Number"
//
//	[[method]]
//	name = "Point/getX"
//	receiver = "flash.geom::Point"
//	returns = "Number"
//	locals = 1
//	max-scope = 1
//	code = """
//	    getlocal0
//	    pushscope
//	    getlocal0
//	    getproperty x
//	    returnvalue
//	"""
//
// Names use the multiname text form of abc.ParseMultiname.
package fixture

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/meta"
	"github.com/chazu/avmprep/prep"
)

// File is one fixture file.
type File struct {
	Classes []Class  `toml:"class"`
	Scripts []Script `toml:"script"`
	Methods []Method `toml:"method"`

	// Path is the file the fixture was loaded from (set at load time).
	Path string `toml:"-"`
}

// Class describes a class or interface.
type Class struct {
	Name      string   `toml:"name"`
	Super     string   `toml:"super"`
	Interface bool     `toml:"interface"`
	Slots     []Slot   `toml:"slot"`
	Methods   []string `toml:"methods"`
	Getters   []string `toml:"getters"`
	Setters   []string `toml:"setters"`
}

// Slot describes a data slot. An empty or "*" type is untyped.
type Slot struct {
	Name  string `toml:"name"`
	Type  string `toml:"type"`
	Const bool   `toml:"const"`
}

// Script describes a script and the names its global object exports.
type Script struct {
	Name    string   `toml:"name"`
	Globals string   `toml:"globals"`
	Exports []string `toml:"exports"`
}

// Method describes a method body in assembly form.
type Method struct {
	Name       string      `toml:"name"`
	Receiver   string      `toml:"receiver"`
	Params     []string    `toml:"params"`
	Returns    string      `toml:"returns"`
	Locals     uint32      `toml:"locals"`
	InitScope  uint32      `toml:"init-scope"`
	MaxScope   uint32      `toml:"max-scope"`
	Scopes     []Scope     `toml:"scope"`
	Code       string      `toml:"code"`
	Exceptions []Exception `toml:"exception"`
}

// Scope is one entry of a method's outer scope chain, outermost first.
type Scope struct {
	Class string `toml:"class"`
	With  bool   `toml:"with"`
}

// Exception is a handler whose bounds are code labels.
type Exception struct {
	From   string `toml:"from"`
	To     string `toml:"to"`
	Target string `toml:"target"`
	Type   string `toml:"type"`
}

// Load parses a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse parses fixture TOML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Define registers the file's classes and scripts in d. Classes are defined
// in file order, so a superclass must come before its subclasses.
func (f *File) Define(d *meta.Domain) error {
	for _, c := range f.Classes {
		if err := defineClass(d, c); err != nil {
			return err
		}
	}
	for _, s := range f.Scripts {
		var globals *meta.Class
		if s.Globals != "" {
			c, err := lookupClass(d, s.Globals)
			if err != nil {
				return fmt.Errorf("script %s: %w", s.Name, err)
			}
			globals = c
		}
		exports := make([]meta.QName, len(s.Exports))
		for i, e := range s.Exports {
			q, err := parseQName(e)
			if err != nil {
				return fmt.Errorf("script %s: %w", s.Name, err)
			}
			exports[i] = q
		}
		d.DefineScript(s.Name, globals, exports...)
	}
	return nil
}

func defineClass(d *meta.Domain, c Class) error {
	name, err := parseQName(c.Name)
	if err != nil {
		return fmt.Errorf("class %s: %w", c.Name, err)
	}
	if d.LookupClass(name) != nil {
		return fmt.Errorf("class %s defined twice", c.Name)
	}

	var class *meta.Class
	if c.Interface {
		class = d.DefineInterface(name)
	} else {
		super := d.Builtins().Object
		if c.Super != "" {
			if super, err = lookupClass(d, c.Super); err != nil {
				return fmt.Errorf("class %s: %w", c.Name, err)
			}
		}
		class = d.DefineClass(name, super)
	}

	vt := class.VTable
	for _, s := range c.Slots {
		slotName, err := parseQName(s.Name)
		if err != nil {
			return fmt.Errorf("class %s: %w", c.Name, err)
		}
		typ := meta.Any
		if s.Type != "" && s.Type != "*" {
			if typ, err = parseQName(s.Type); err != nil {
				return fmt.Errorf("class %s: %w", c.Name, err)
			}
		}
		vt.DefineSlot(slotName, typ, s.Const)
	}
	for _, list := range []struct {
		names  []string
		define func(meta.QName) uint32
	}{
		{c.Methods, vt.DefineMethod},
		{c.Getters, vt.DefineGetter},
		{c.Setters, vt.DefineSetter},
	} {
		for _, n := range list.names {
			q, err := parseQName(n)
			if err != nil {
				return fmt.Errorf("class %s: %w", c.Name, err)
			}
			list.define(q)
		}
	}
	return nil
}

// Jobs assembles every method into a preparation job. Methods share one
// constant pool. Classes must already be defined in d.
func (f *File) Jobs(d *meta.Domain) ([]*prep.Job, error) {
	pool := abc.NewConstantPool()
	jobs := make([]*prep.Job, 0, len(f.Methods))
	for _, m := range f.Methods {
		job, err := m.job(d, pool)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (m Method) job(d *meta.Domain, pool *abc.ConstantPool) (*prep.Job, error) {
	b := abc.NewBuilder(pool)
	labels, err := abc.Assemble(b, m.Code)
	if err != nil {
		return nil, err
	}
	body := b.Body(m.Name, m.Locals, m.InitScope, m.MaxScope)

	for _, e := range m.Exceptions {
		ex, err := exception(e, labels, pool)
		if err != nil {
			return nil, err
		}
		body.Exceptions = append(body.Exceptions, ex)
	}

	job := &prep.Job{Body: body}
	if job.Receiver, err = optionalClass(d, m.Receiver); err != nil {
		return nil, err
	}
	if job.ReturnType, err = optionalClass(d, m.Returns); err != nil {
		return nil, err
	}
	for _, p := range m.Params {
		c, err := optionalClass(d, p)
		if err != nil {
			return nil, err
		}
		job.Params = append(job.Params, c)
	}

	if len(m.Scopes) > 0 {
		scopes := make([]meta.Scope, len(m.Scopes))
		for i, s := range m.Scopes {
			if scopes[i].Values, err = optionalClass(d, s.Class); err != nil {
				return nil, err
			}
			scopes[i].With = s.With
		}
		job.Scopes = meta.NewScopeChain(d, scopes...)
	}
	return job, nil
}

func exception(e Exception, labels map[string]int, pool *abc.ConstantPool) (abc.Exception, error) {
	var ex abc.Exception
	for _, f := range []struct {
		label string
		dst   *uint32
	}{
		{e.From, &ex.From},
		{e.To, &ex.To},
		{e.Target, &ex.Target},
	} {
		off, ok := labels[f.label]
		if !ok {
			return ex, fmt.Errorf("exception refers to unknown label %q", f.label)
		}
		*f.dst = uint32(off)
	}
	if e.Type != "" && e.Type != "*" {
		mn, err := abc.ParseMultiname(e.Type)
		if err != nil {
			return ex, err
		}
		ex.Type = pool.AddMultiname(mn)
	}
	return ex, nil
}

// optionalClass resolves a class name; "" and "*" are untyped.
func optionalClass(d *meta.Domain, name string) (*meta.Class, error) {
	if name == "" || name == "*" {
		return nil, nil
	}
	return lookupClass(d, name)
}

func lookupClass(d *meta.Domain, name string) (*meta.Class, error) {
	q, err := parseQName(name)
	if err != nil {
		return nil, err
	}
	c := d.LookupClass(q)
	if c == nil {
		return nil, fmt.Errorf("unknown class %s", name)
	}
	return c, nil
}

func parseQName(s string) (meta.QName, error) {
	mn, err := abc.ParseMultiname(s)
	if err != nil {
		return meta.QName{}, err
	}
	if mn.Kind != abc.QName {
		return meta.QName{}, fmt.Errorf("%s is not a qualified name", s)
	}
	return meta.QName{NS: mn.Namespaces[0], Local: mn.Name}, nil
}
