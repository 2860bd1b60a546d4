package fixture

import (
	"context"
	"strings"
	"testing"

	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/meta"
	"github.com/chazu/avmprep/prep"
)

func geom(local string) meta.QName {
	return meta.QName{NS: abc.PackageNamespace("flash.geom"), Local: local}
}

func loadPoint(t *testing.T) (*File, *meta.Domain) {
	t.Helper()
	f, err := Load("testdata/point.toml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := meta.NewDomain()
	if err := f.Define(d); err != nil {
		t.Fatalf("Define: %v", err)
	}
	return f, d
}

func TestLoad(t *testing.T) {
	f, err := Load("testdata/point.toml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Path != "testdata/point.toml" {
		t.Errorf("Path = %q", f.Path)
	}
	if len(f.Classes) != 4 || len(f.Scripts) != 1 || len(f.Methods) != 4 {
		t.Fatalf("loaded %d classes, %d scripts, %d methods", len(f.Classes), len(f.Scripts), len(f.Methods))
	}
	closure := f.Methods[2]
	if len(closure.Scopes) != 2 || !closure.Scopes[1].With {
		t.Errorf("closure scopes = %+v", closure.Scopes)
	}
	if ex := f.Methods[3].Exceptions; len(ex) != 1 || ex[0].Target != "handler" {
		t.Errorf("guarded exceptions = %+v", ex)
	}
}

func TestDefine(t *testing.T) {
	_, d := loadPoint(t)

	point := d.LookupClass(geom("Point"))
	if point == nil {
		t.Fatal("Point not defined")
	}
	if point.Superclass != d.Builtins().Object {
		t.Errorf("Point superclass = %s", point.Superclass)
	}
	x, ok := point.VTable.Lookup(abc.NewQName(abc.PackageNamespace("flash.geom"), "x"))
	if !ok || x.Kind != meta.PropertySlot {
		t.Fatalf("Point.x = %+v, %t", x, ok)
	}
	if typ, ok := d.SlotType(point, x.Slot); !ok || typ != d.Builtins().Number {
		t.Errorf("Point.x type = %s, %t", typ, ok)
	}
	tag, _ := point.VTable.Lookup(abc.NewQName(abc.PackageNamespace("flash.geom"), "tag"))
	if typ, ok := d.SlotType(point, tag.Slot); !ok || typ != nil {
		t.Errorf("Point.tag type = %s, %t, want untyped", typ, ok)
	}
	if norm, ok := point.VTable.Lookup(abc.NewQName(abc.PackageNamespace("flash.geom"), "norm")); !ok || !norm.HasGetter() {
		t.Errorf("Point.norm = %+v, %t", norm, ok)
	}

	point3 := d.LookupClass(geom("Point3D"))
	if point3 == nil || !point3.IsSubclassOf(point) {
		t.Fatalf("Point3D = %v", point3)
	}
	z, ok := point3.VTable.Lookup(abc.NewQName(abc.PackageNamespace("flash.geom"), "z"))
	if !ok || z.Kind != meta.PropertyConstSlot {
		t.Errorf("Point3D.z = %+v, %t", z, ok)
	}
	if shape := d.LookupClass(geom("Shape")); shape == nil || !shape.Interface {
		t.Errorf("Shape = %v", shape)
	}

	s, ok := d.DefiningScript(abc.NewQName(abc.Public, "main"))
	if !ok || s.Name != "main" || s.Globals != d.LookupClass(meta.QName{NS: abc.Public, Local: "global"}) {
		t.Errorf("DefiningScript(main) = %+v, %t", s, ok)
	}
}

func TestJobs(t *testing.T) {
	f, d := loadPoint(t)
	jobs, err := f.Jobs(d)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("got %d jobs", len(jobs))
	}

	getX := jobs[0]
	if getX.Body.Name != "Point/getX" || getX.Body.NumLocals != 1 || getX.Body.MaxScopeDepth != 1 {
		t.Errorf("getX body = %+v", getX.Body)
	}
	if getX.Receiver != d.LookupClass(geom("Point")) || getX.ReturnType != d.Builtins().Number {
		t.Errorf("getX signature = %v -> %v", getX.Receiver, getX.ReturnType)
	}
	if getX.Scopes != nil {
		t.Errorf("getX has scopes %v", getX.Scopes)
	}
	if getX.Body.Pool != jobs[3].Body.Pool {
		t.Error("methods of one file should share a pool")
	}

	closure := jobs[2]
	if len(closure.Params) != 2 || closure.Params[0] != d.LookupClass(geom("Point")) || closure.Params[1] != nil {
		t.Errorf("closure params = %v", closure.Params)
	}
	chain, ok := closure.Scopes.(*meta.ScopeChain)
	if !ok || chain.Len() != 2 {
		t.Fatalf("closure scopes = %v", closure.Scopes)
	}
	if s, _ := chain.At(1); !s.With || s.Values != d.LookupClass(geom("Point")) {
		t.Errorf("closure scope 1 = %+v", s)
	}

	guarded := jobs[3].Body
	if len(guarded.Exceptions) != 1 {
		t.Fatalf("guarded exceptions = %+v", guarded.Exceptions)
	}
	ex := guarded.Exceptions[0]
	if ex.From != 2 || ex.To != 6 || ex.Target != 6 {
		t.Errorf("exception range = %d..%d -> %d, want 2..6 -> 6", ex.From, ex.To, ex.Target)
	}
	if mn, ok := guarded.Pool.Multiname(ex.Type); !ok || !mn.Matches(abc.Public, "Error") {
		t.Errorf("exception type = %v", mn)
	}
}

func TestPrepareFixture(t *testing.T) {
	f, d := loadPoint(t)
	jobs, err := f.Jobs(d)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	p := prep.New(d, nil)
	results, err := p.PrepareAll(context.Background(), jobs[:2])
	if err != nil {
		t.Fatalf("PrepareAll: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("%s: %v", r.Job.Body.Name, r.Err)
			continue
		}
		code := r.Code()
		if code[3].Op != abc.OpGetSlot || code[4].Op != abc.OpReturnValueNoCoerce {
			t.Errorf("%s: got %s, %s", r.Job.Body.Name, code[3].Op, code[4].Op)
		}
	}
}

func TestFixtureErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"unknown superclass",
			`[[class]]
			name = "A"
			super = "Missing"`,
			"unknown class Missing",
		},
		{
			"duplicate class",
			`[[class]]
			name = "A"
			[[class]]
			name = "A"`,
			"defined twice",
		},
		{
			"set name as class",
			`[[class]]
			name = "{a,b}::A"`,
			"not a qualified name",
		},
		{
			"unknown receiver",
			`[[method]]
			name = "m"
			receiver = "Missing"
			code = "returnvoid"`,
			"unknown class Missing",
		},
		{
			"bad code",
			`[[method]]
			name = "m"
			code = "frobnicate"`,
			"method m",
		},
		{
			"unknown exception label",
			`[[method]]
			name = "m"
			code = "returnvoid"
			[[method.exception]]
			from = "a"
			to = "b"
			target = "c"`,
			"unknown label",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.src))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			d := meta.NewDomain()
			err = f.Define(d)
			if err == nil {
				_, err = f.Jobs(d)
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want one containing %q", err, tt.want)
			}
		})
	}
}

func TestParseInvalidTOML(t *testing.T) {
	if _, err := Parse([]byte("[[class]\nname =")); err == nil {
		t.Error("expected a parse error")
	}
}
