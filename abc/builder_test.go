package abc

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuilderEmit(t *testing.T) {
	b := NewBuilder(nil)
	b.Emit(OpNop).EmitU8(OpGetScopeObject, 1).EmitU30(OpGetLocal, 300)

	want := []byte{byte(OpNop), byte(OpGetScopeObject), 1, byte(OpGetLocal), 0xAC, 0x02}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", b.Bytes(), want)
	}
	if b.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", b.Len(), len(want))
	}
}

func TestBuilderCompactLocals(t *testing.T) {
	b := NewBuilder(nil)
	b.GetLocal(0).GetLocal(3).GetLocal(4).SetLocal(2)
	want := []byte{0xD0, 0xD3, byte(OpGetLocal), 4, 0xD6}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", b.Bytes(), want)
	}
}

func TestBuilderForwardLabel(t *testing.T) {
	b := NewBuilder(nil)
	end := b.NewLabel()
	b.Emit(OpPushTrue)
	b.Branch(OpIfTrue, end)
	b.Emit(OpNop)
	b.Mark(end)
	b.Emit(OpReturnVoid)

	d, err := Decode(b.Bytes(), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// Offset is measured from the end of the branch.
	if got := d.Code[1].Offset; got != 1 {
		t.Errorf("forward offset = %d, want 1", got)
	}
}

func TestBuilderBackwardLabel(t *testing.T) {
	b := NewBuilder(nil)
	top := b.NewLabel()
	b.Mark(top)
	b.Emit(OpNop)
	b.Branch(OpJump, top)

	d, err := Decode(b.Bytes(), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := d.Code[1].Offset; got != -5 {
		t.Errorf("backward offset = %d, want -5", got)
	}
}

func TestBuilderMarkTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("marking a label twice should panic")
		}
	}()
	b := NewBuilder(nil)
	l := b.NewLabel()
	b.Mark(l)
	b.Mark(l)
}

func TestBuilderBody(t *testing.T) {
	b := NewBuilder(nil)
	b.Emit(OpReturnVoid)
	body := b.Body("m", 2, 1, 3)
	if body.NumLocals != 2 || body.ScopeCapacity() != 2 {
		t.Errorf("body = %+v", body)
	}
	if body.Pool != b.Pool() {
		t.Error("body should share the builder pool")
	}
	inverted := &MethodBody{InitScopeDepth: 4, MaxScopeDepth: 1}
	if inverted.ScopeCapacity() != 0 {
		t.Error("inverted scope depths give no capacity")
	}
}

func TestDisassemble(t *testing.T) {
	pool := NewConstantPool()
	x := pool.AddMultiname(NewQName(Public, "x"))
	code := []Instruction{
		{Op: OpGetLocal, Index: 0},
		{Op: OpPushScope},
		{Op: OpPushByte, Int: 5},
		{Op: OpGetProperty, Index: x},
		{Op: OpIfFalse, Offset: 1},
		{Op: OpCallMethod, Index: 3, ArgCount: 1, Void: true},
		{Op: OpReturnValueNoCoerce},
	}
	out := DisassembleString(code, pool)
	for _, want := range []string{
		"0000  getlocal 0",
		"0002  pushbyte 5",
		"0003  getproperty x",
		"0004  iffalse 1 (-> 0006)",
		"0005  callmethod disp=3 argc=1 void",
		"0006  returnvaluenocoerce",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}
