package abc

import (
	"errors"
	"testing"
)

func TestDecodeCompactLocals(t *testing.T) {
	d, err := Decode([]byte{0xD0, 0xD3, 0xD5, 0x62, 0x07, byte(OpReturnVoid)}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Instruction{
		{Op: OpGetLocal, Index: 0},
		{Op: OpGetLocal, Index: 3},
		{Op: OpSetLocal, Index: 1},
		{Op: OpGetLocal, Index: 7},
		{Op: OpReturnVoid},
	}
	if len(d.Code) != len(want) {
		t.Fatalf("decoded %d instructions, want %d", len(d.Code), len(want))
	}
	for i := range want {
		if d.Code[i].Op != want[i].Op || d.Code[i].Index != want[i].Index {
			t.Errorf("instruction %d = %s %d, want %s %d",
				i, d.Code[i].Op, d.Code[i].Index, want[i].Op, want[i].Index)
		}
	}
	wantOffsets := []int{0, 1, 2, 3, 5, 6}
	for i, off := range wantOffsets {
		if d.Offsets[i] != off {
			t.Errorf("Offsets[%d] = %d, want %d", i, d.Offsets[i], off)
		}
	}
}

func TestDecodeU30(t *testing.T) {
	// getlocal 300 encodes as 0xAC 0x02.
	d, err := Decode([]byte{byte(OpGetLocal), 0xAC, 0x02}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := d.Code[0].Index; got != 300 {
		t.Errorf("register = %d, want 300", got)
	}
}

func TestDecodeBranchOffsets(t *testing.T) {
	// jump -4: 0xFC 0xFF 0xFF
	d, err := Decode([]byte{byte(OpJump), 0xFC, 0xFF, 0xFF}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := d.Code[0].Offset; got != -4 {
		t.Errorf("offset = %d, want -4", got)
	}
}

func TestDecodeImmediates(t *testing.T) {
	b := NewBuilder(nil)
	b.PushByte(-3).PushShort(-300).PushInt(-70000).PushUint(4000000000).Emit(OpReturnVoid)

	d, err := Decode(b.Bytes(), b.Pool())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []int64{-3, -300, -70000, 4000000000}
	for i, v := range want {
		if d.Code[i].Int != v {
			t.Errorf("%s immediate = %d, want %d", d.Code[i].Op, d.Code[i].Int, v)
		}
	}
}

func TestDecodeLookupSwitch(t *testing.T) {
	b := NewBuilder(nil)
	def, c0, c1 := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.PushByte(0)
	b.LookupSwitch(def, c0, c1)
	b.Mark(c0).Emit(OpReturnVoid)
	b.Mark(c1).Emit(OpReturnVoid)
	b.Mark(def).Emit(OpReturnVoid)

	d, err := Decode(b.Bytes(), b.Pool())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sw := d.Code[1]
	if sw.Op != OpLookupSwitch || len(sw.Cases) != 2 {
		t.Fatalf("got %s with %d cases", sw.Op, len(sw.Cases))
	}
	base := d.Offsets[1]
	for _, tc := range []struct {
		offset int32
		index  int
	}{{sw.Offset, 4}, {sw.Cases[0], 2}, {sw.Cases[1], 3}} {
		idx, ok := d.IndexOf(base + int(tc.offset))
		if !ok || idx != tc.index {
			t.Errorf("offset %d resolves to %d (%v), want %d", tc.offset, idx, ok, tc.index)
		}
	}
}

func TestDecodeDebug(t *testing.T) {
	b := NewBuilder(nil)
	b.Debug(DebugLocalRegister, 5, 2, 0).Emit(OpReturnVoid)
	d, err := Decode(b.Bytes(), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	in := d.Code[0]
	if !in.IsLocalDebug() || in.Index != 2 || in.Index2 != 5 {
		t.Errorf("debug decoded as %+v", in)
	}
}

func TestDecodeIllegalOpcode(t *testing.T) {
	_, err := Decode([]byte{byte(OpNop), 0xFF}, nil)
	if !errors.Is(err, ErrIllegalOpcode) {
		t.Fatalf("err = %v, want ErrIllegalOpcode", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Offset != 1 || de.Opcode != 0xFF {
		t.Errorf("DecodeError = %+v", de)
	}
}

func TestDecodeConstantOutOfRange(t *testing.T) {
	_, err := Decode([]byte{byte(OpPushInt), 0x05}, NewConstantPool())
	if !errors.Is(err, ErrConstantOutOfRange) {
		t.Fatalf("err = %v, want ErrConstantOutOfRange", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	d, err := Decode([]byte{byte(OpNop), byte(OpJump), 0x01}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !d.Truncated {
		t.Error("Truncated should be set")
	}
	if len(d.Code) != 1 {
		t.Errorf("decoded %d instructions, want 1", len(d.Code))
	}
	if end := d.Offsets[len(d.Code)]; end != 1 {
		t.Errorf("end offset = %d, want 1", end)
	}
}

func TestIndexOf(t *testing.T) {
	d := &Decoded{Offsets: []int{0, 2, 5, 6}}
	for off, want := range map[int]int{0: 0, 2: 1, 5: 2, 6: 3} {
		if got, ok := d.IndexOf(off); !ok || got != want {
			t.Errorf("IndexOf(%d) = %d, %v; want %d", off, got, ok, want)
		}
	}
	for _, off := range []int{1, 3, 4, 7, -1} {
		if _, ok := d.IndexOf(off); ok {
			t.Errorf("IndexOf(%d) should miss", off)
		}
	}
}
