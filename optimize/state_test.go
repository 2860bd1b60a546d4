package optimize

import (
	"testing"

	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/meta"
)

func TestJoin(t *testing.T) {
	d := meta.NewDomain()
	b := d.Builtins()
	validInt := OptValue{Class: b.Int, ValidInt: true}

	tests := []struct {
		name string
		a, b OptValue
		want OptValue
	}{
		{"identical", validInt, validInt, validInt},
		{"same class", validInt, OfType(b.Int), OfType(b.Int)},
		{"different classes", OfType(b.Int), OfType(b.String), Any()},
		{"null and class", Null(), OfType(b.String), Any()},
		{"null and null", Null(), Null(), Null()},
		{"any", Any(), OfType(b.String), Any()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := join(tt.a, tt.b); got != tt.want {
				t.Errorf("join(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
			if got := join(tt.b, tt.a); got != tt.want {
				t.Errorf("join(%s, %s) = %s, want %s", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestLocals(t *testing.T) {
	b := meta.NewDomain().Builtins()
	l := NewLocals(2)
	l.Set(0, OfType(b.String))
	l.Set(5, OfType(b.Int))

	if got := l.At(0); got.Class != b.String {
		t.Errorf("At(0) = %s", got)
	}
	if got := l.At(5); !got.IsAny() {
		t.Errorf("out-of-range At = %s, want *", got)
	}

	c := l.Clone()
	c.SetAny(0)
	if l.At(0).Class != b.String {
		t.Error("Clone shares storage")
	}

	other := NewLocals(2)
	other.Set(0, OfType(b.String))
	other.Set(1, OfType(b.Int))
	merged := l.merge(other)
	if merged.At(0).Class != b.String || !merged.At(1).IsAny() {
		t.Errorf("merge = [%s %s]", merged.At(0), merged.At(1))
	}
}

func TestStack(t *testing.T) {
	b := meta.NewDomain().Builtins()
	var s Stack

	if _, ok := s.Pop(); ok {
		t.Error("Pop on empty stack reported a value")
	}
	if !s.PopOrAny().IsAny() {
		t.Error("PopOrAny on empty stack should be *")
	}

	s.Push(OfType(b.String))
	s.Push(OfType(b.Int))
	s.Push(OfType(b.Number))
	if v, ok := s.At(0); !ok || v.Class != b.String {
		t.Errorf("At(0) = %s, %t", v, ok)
	}

	rtqnl := &abc.Multiname{Kind: abc.RTQNameL}
	s.PopForMultiname(rtqnl)
	if s.Len() != 1 {
		t.Fatalf("Len after RTQNameL = %d, want 1", s.Len())
	}
	s.PopForMultiname(abc.NewQName(abc.Public, "x"))
	s.PopForMultiname(nil)
	if s.Len() != 1 {
		t.Errorf("static names must not pop, Len = %d", s.Len())
	}

	s.PopN(4)
	if s.Len() != 0 {
		t.Errorf("Len after PopN = %d", s.Len())
	}
}
