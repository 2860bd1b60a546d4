package abc

// Instruction is one decoded AVM2 operation.
//
// Operands are stored in a fixed set of fields; which fields are meaningful
// depends on the opcode's OperandKind:
//
//   - Index: register, pool index, slot id, dispatch id, scope index,
//     method/class index, or debug register
//   - Index2: second u30 (hasnext2 index register, debug name string)
//   - ArgCount: argument count for call and construct forms, the extra
//     operand of debug
//   - Int: immediate integer for pushbyte/pushshort, the resolved pool value
//     for pushint/pushuint, and the debug type for debug
//   - Offset: branch offset, or the default offset of lookupswitch
//   - Cases: lookupswitch case offsets
//   - Void: callmethod discards its result (optimizer rewrites only)
//
// Before verification, branch offsets are byte-relative as encoded. After
// verification they are index-relative: the target of a branch at position i
// is i + 1 + Offset, for every branch and switch form.
type Instruction struct {
	Op       Opcode
	Index    uint32
	Index2   uint32
	ArgCount uint32
	Int      int64
	Offset   int32
	Cases    []int32
	Void     bool
}

// Clone returns a copy that does not share the case table.
func (in Instruction) Clone() Instruction {
	if in.Cases != nil {
		in.Cases = append([]int32(nil), in.Cases...)
	}
	return in
}

// Registers returns the local registers the instruction reads or writes, in
// the order the verifier checks them.
func (in *Instruction) Registers() []uint32 {
	switch in.Op {
	case OpGetLocal, OpSetLocal, OpKill, OpIncLocal, OpIncLocalI, OpDecLocal, OpDecLocalI:
		return []uint32{in.Index}
	case OpHasNext2:
		return []uint32{in.Index, in.Index2}
	case OpDebug:
		if in.IsLocalDebug() {
			return []uint32{in.Index}
		}
	}
	return nil
}

// MutatedRegisters returns the registers whose contents the instruction may
// replace.
func (in *Instruction) MutatedRegisters() []uint32 {
	switch in.Op {
	case OpSetLocal, OpKill, OpIncLocal, OpIncLocalI, OpDecLocal, OpDecLocalI:
		return []uint32{in.Index}
	case OpHasNext2:
		return []uint32{in.Index, in.Index2}
	}
	return nil
}

// IsLocalDebug reports whether a debug instruction names a local register.
func (in *Instruction) IsLocalDebug() bool {
	return in.Op == OpDebug && in.Int == DebugLocalRegister
}

// DebugLocalRegister is the debug type that names a local register.
const DebugLocalRegister = 1
