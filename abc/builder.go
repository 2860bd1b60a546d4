package abc

import "fmt"

// ---------------------------------------------------------------------------
// Builder: assembler for method body byte code
// ---------------------------------------------------------------------------

// Builder assembles AVM2 byte code. Constants referenced by push and name
// operands are added to the builder's pool.
type Builder struct {
	bytes []byte
	pool  *ConstantPool
}

// NewBuilder creates a builder that adds constants to pool. A nil pool gets
// a fresh one.
func NewBuilder(pool *ConstantPool) *Builder {
	if pool == nil {
		pool = NewConstantPool()
	}
	return &Builder{
		bytes: make([]byte, 0, 64),
		pool:  pool,
	}
}

// Bytes returns the assembled code.
func (b *Builder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length, which is also the offset of the next
// instruction.
func (b *Builder) Len() int {
	return len(b.bytes)
}

// Pool returns the constant pool.
func (b *Builder) Pool() *ConstantPool {
	return b.pool
}

// Body wraps the assembled code in a method body.
func (b *Builder) Body(name string, numLocals, initScope, maxScope uint32) *MethodBody {
	return &MethodBody{
		Name:           name,
		MaxStack:       8,
		NumLocals:      numLocals,
		InitScopeDepth: initScope,
		MaxScopeDepth:  maxScope,
		Code:           b.bytes,
		Pool:           b.pool,
	}
}

// Emit appends an opcode with no operands.
func (b *Builder) Emit(op Opcode) *Builder {
	b.bytes = append(b.bytes, byte(op))
	return b
}

// EmitRaw appends raw bytes.
func (b *Builder) EmitRaw(data ...byte) *Builder {
	b.bytes = append(b.bytes, data...)
	return b
}

// EmitU8 appends an opcode with a single byte operand.
func (b *Builder) EmitU8(op Opcode, operand byte) *Builder {
	b.bytes = append(b.bytes, byte(op), operand)
	return b
}

// EmitU30 appends an opcode with one variable-length operand.
func (b *Builder) EmitU30(op Opcode, operand uint32) *Builder {
	b.bytes = append(b.bytes, byte(op))
	b.bytes = appendU30(b.bytes, operand)
	return b
}

// EmitU30U30 appends an opcode with two variable-length operands.
func (b *Builder) EmitU30U30(op Opcode, first, second uint32) *Builder {
	b.bytes = append(b.bytes, byte(op))
	b.bytes = appendU30(b.bytes, first)
	b.bytes = appendU30(b.bytes, second)
	return b
}

// GetLocal loads a register, using the compact form for registers 0-3.
func (b *Builder) GetLocal(reg uint32) *Builder {
	if reg <= 3 {
		b.bytes = append(b.bytes, opGetLocal0+byte(reg))
		return b
	}
	return b.EmitU30(OpGetLocal, reg)
}

// SetLocal stores a register, using the compact form for registers 0-3.
func (b *Builder) SetLocal(reg uint32) *Builder {
	if reg <= 3 {
		b.bytes = append(b.bytes, opSetLocal0+byte(reg))
		return b
	}
	return b.EmitU30(OpSetLocal, reg)
}

// PushByte appends pushbyte.
func (b *Builder) PushByte(v int8) *Builder {
	return b.EmitU8(OpPushByte, byte(v))
}

// PushShort appends pushshort.
func (b *Builder) PushShort(v int16) *Builder {
	return b.EmitU30(OpPushShort, uint32(uint16(v)))
}

// PushInt adds v to the pool and appends pushint.
func (b *Builder) PushInt(v int32) *Builder {
	return b.EmitU30(OpPushInt, b.pool.AddInt(v))
}

// PushUint adds v to the pool and appends pushuint.
func (b *Builder) PushUint(v uint32) *Builder {
	return b.EmitU30(OpPushUint, b.pool.AddUint(v))
}

// PushDouble adds v to the pool and appends pushdouble.
func (b *Builder) PushDouble(v float64) *Builder {
	return b.EmitU30(OpPushDouble, b.pool.AddDouble(v))
}

// PushString adds s to the pool and appends pushstring.
func (b *Builder) PushString(s string) *Builder {
	return b.EmitU30(OpPushString, b.pool.AddString(s))
}

// Name adds m to the pool and returns its index for use as an operand.
func (b *Builder) Name(m *Multiname) uint32 {
	return b.pool.AddMultiname(m)
}

// EmitName appends an opcode whose only operand is a multiname.
func (b *Builder) EmitName(op Opcode, m *Multiname) *Builder {
	return b.EmitU30(op, b.Name(m))
}

// EmitCall appends a call-family opcode with a multiname and argument count.
func (b *Builder) EmitCall(op Opcode, m *Multiname, argc uint32) *Builder {
	return b.EmitU30U30(op, b.Name(m), argc)
}

// HasNext2 appends hasnext2 with its object and index registers.
func (b *Builder) HasNext2(objectReg, indexReg uint32) *Builder {
	return b.EmitU30U30(OpHasNext2, objectReg, indexReg)
}

// Debug appends a debug instruction.
func (b *Builder) Debug(typ byte, name uint32, reg byte, extra uint32) *Builder {
	b.bytes = append(b.bytes, byte(OpDebug), typ)
	b.bytes = appendU30(b.bytes, name)
	b.bytes = append(b.bytes, reg)
	b.bytes = appendU30(b.bytes, extra)
	return b
}

// ---------------------------------------------------------------------------
// Label management for branches
// ---------------------------------------------------------------------------

// Label is a branch target that may be marked after it is referenced.
type Label struct {
	resolved bool
	position int
	refs     []labelRef
}

// labelRef is an s24 operand waiting for its label. Offsets are measured
// from base.
type labelRef struct {
	at   int
	base int
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	return &Label{refs: make([]labelRef, 0, 2)}
}

// Mark resolves a label to the current position and patches every
// reference to it.
func (b *Builder) Mark(label *Label) *Builder {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		putS24(b.bytes[ref.at:], int32(label.position-ref.base))
	}
	label.refs = nil
	return b
}

// Branch appends a jump or if* instruction targeting label. The offset is
// relative to the end of the instruction.
func (b *Builder) Branch(op Opcode, label *Label) *Builder {
	if !op.IsBranch() {
		panic(fmt.Sprintf("abc: %s is not a branch", op))
	}
	b.bytes = append(b.bytes, byte(op))
	b.emitTarget(label, len(b.bytes)+3)
	return b
}

// BranchOffset appends a branch with a raw byte offset.
func (b *Builder) BranchOffset(op Opcode, offset int32) *Builder {
	b.bytes = append(b.bytes, byte(op), 0, 0, 0)
	putS24(b.bytes[len(b.bytes)-3:], offset)
	return b
}

// LookupSwitch appends a lookupswitch. Offsets are relative to the start of
// the switch instruction.
func (b *Builder) LookupSwitch(def *Label, cases ...*Label) *Builder {
	if len(cases) == 0 {
		panic("abc: lookupswitch needs at least one case")
	}
	base := len(b.bytes)
	b.bytes = append(b.bytes, byte(OpLookupSwitch))
	b.emitTarget(def, base)
	b.bytes = appendU30(b.bytes, uint32(len(cases)-1))
	for _, c := range cases {
		b.emitTarget(c, base)
	}
	return b
}

func (b *Builder) emitTarget(label *Label, base int) {
	at := len(b.bytes)
	b.bytes = append(b.bytes, 0, 0, 0)
	if label.resolved {
		putS24(b.bytes[at:], int32(label.position-base))
		return
	}
	label.refs = append(label.refs, labelRef{at: at, base: base})
}

// ---------------------------------------------------------------------------
// Encoding helpers
// ---------------------------------------------------------------------------

func appendU30(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

func putS24(dst []byte, v int32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}
