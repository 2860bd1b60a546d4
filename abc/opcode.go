package abc

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies an AVM2 instruction.
//
// Values below 0x100 are the byte encodings used in ABC method bodies. The
// synthetic opcodes at 0x100 and above only exist in optimized code; the
// decoder never produces them.
type Opcode uint16

// Control and debugging
const (
	OpBkpt         Opcode = 0x01
	OpNop          Opcode = 0x02
	OpThrow        Opcode = 0x03
	OpGetSuper     Opcode = 0x04 // u30 multiname
	OpSetSuper     Opcode = 0x05 // u30 multiname
	OpDxns         Opcode = 0x06 // u30 string
	OpDxnsLate     Opcode = 0x07
	OpKill         Opcode = 0x08 // u30 register
	OpLabel        Opcode = 0x09
	OpIfNlt        Opcode = 0x0C // s24 offset
	OpIfNle        Opcode = 0x0D
	OpIfNgt        Opcode = 0x0E
	OpIfNge        Opcode = 0x0F
	OpJump         Opcode = 0x10
	OpIfTrue       Opcode = 0x11
	OpIfFalse      Opcode = 0x12
	OpIfEq         Opcode = 0x13
	OpIfNe         Opcode = 0x14
	OpIfLt         Opcode = 0x15
	OpIfLe         Opcode = 0x16
	OpIfGt         Opcode = 0x17
	OpIfGe         Opcode = 0x18
	OpIfStrictEq   Opcode = 0x19
	OpIfStrictNe   Opcode = 0x1A
	OpLookupSwitch Opcode = 0x1B // s24 default, u30 count, s24 * (count+1)
	OpPushWith     Opcode = 0x1C
	OpPopScope     Opcode = 0x1D
	OpNextName     Opcode = 0x1E
	OpHasNext      Opcode = 0x1F
)

// Push constants
const (
	OpPushNull      Opcode = 0x20
	OpPushUndefined Opcode = 0x21
	OpNextValue     Opcode = 0x23
	OpPushByte      Opcode = 0x24 // u8, sign-extended
	OpPushShort     Opcode = 0x25 // u30, sign-extended from 16 bits
	OpPushTrue      Opcode = 0x26
	OpPushFalse     Opcode = 0x27
	OpPushNaN       Opcode = 0x28
	OpPop           Opcode = 0x29
	OpDup           Opcode = 0x2A
	OpSwap          Opcode = 0x2B
	OpPushString    Opcode = 0x2C // u30 string
	OpPushInt       Opcode = 0x2D // u30 int pool
	OpPushUint      Opcode = 0x2E // u30 uint pool
	OpPushDouble    Opcode = 0x2F // u30 double pool
	OpPushScope     Opcode = 0x30
	OpPushNamespace Opcode = 0x31 // u30 namespace
	OpHasNext2      Opcode = 0x32 // u30 object register, u30 index register
)

// Domain memory
const (
	OpLi8  Opcode = 0x35
	OpLi16 Opcode = 0x36
	OpLi32 Opcode = 0x37
	OpLf32 Opcode = 0x38
	OpLf64 Opcode = 0x39
	OpSi8  Opcode = 0x3A
	OpSi16 Opcode = 0x3B
	OpSi32 Opcode = 0x3C
	OpSf32 Opcode = 0x3D
	OpSf64 Opcode = 0x3E
)

// Calls and object creation
const (
	OpNewFunction    Opcode = 0x40 // u30 method
	OpCall           Opcode = 0x41 // u30 argc
	OpConstruct      Opcode = 0x42 // u30 argc
	OpCallMethod     Opcode = 0x43 // u30 disp id, u30 argc
	OpCallStatic     Opcode = 0x44 // u30 method, u30 argc
	OpCallSuper      Opcode = 0x45 // u30 multiname, u30 argc
	OpCallProperty   Opcode = 0x46 // u30 multiname, u30 argc
	OpReturnVoid     Opcode = 0x47
	OpReturnValue    Opcode = 0x48
	OpConstructSuper Opcode = 0x49 // u30 argc
	OpConstructProp  Opcode = 0x4A // u30 multiname, u30 argc
	OpCallPropLex    Opcode = 0x4C // u30 multiname, u30 argc
	OpCallSuperVoid  Opcode = 0x4E // u30 multiname, u30 argc
	OpCallPropVoid   Opcode = 0x4F // u30 multiname, u30 argc
	OpSxi1           Opcode = 0x50
	OpSxi8           Opcode = 0x51
	OpSxi16          Opcode = 0x52
	OpApplyType      Opcode = 0x53 // u30 type count
	OpNewObject      Opcode = 0x55 // u30 property count
	OpNewArray       Opcode = 0x56 // u30 element count
	OpNewActivation  Opcode = 0x57
	OpNewClass       Opcode = 0x58 // u30 class
	OpGetDescendants Opcode = 0x59 // u30 multiname
	OpNewCatch       Opcode = 0x5A // u30 exception index
)

// Property and scope access
const (
	OpFindPropStrict Opcode = 0x5D // u30 multiname
	OpFindProperty   Opcode = 0x5E // u30 multiname
	OpFindDef        Opcode = 0x5F // u30 multiname
	OpGetLex         Opcode = 0x60 // u30 multiname
	OpSetProperty    Opcode = 0x61 // u30 multiname
	OpGetLocal       Opcode = 0x62 // u30 register (also getlocal_0..3)
	OpSetLocal       Opcode = 0x63 // u30 register (also setlocal_0..3)
	OpGetGlobalScope Opcode = 0x64
	OpGetScopeObject Opcode = 0x65 // u8 index
	OpGetProperty    Opcode = 0x66 // u30 multiname
	OpGetOuterScope  Opcode = 0x67 // u30 index
	OpInitProperty   Opcode = 0x68 // u30 multiname
	OpDeleteProperty Opcode = 0x6A // u30 multiname
	OpGetSlot        Opcode = 0x6C // u30 slot id
	OpSetSlot        Opcode = 0x6D // u30 slot id
	OpGetGlobalSlot  Opcode = 0x6E // u30 slot id
	OpSetGlobalSlot  Opcode = 0x6F // u30 slot id
)

// Conversions and coercions
const (
	OpConvertS    Opcode = 0x70
	OpEscXElem    Opcode = 0x71
	OpEscXAttr    Opcode = 0x72
	OpConvertI    Opcode = 0x73
	OpConvertU    Opcode = 0x74
	OpConvertD    Opcode = 0x75
	OpConvertB    Opcode = 0x76
	OpConvertO    Opcode = 0x77
	OpCheckFilter Opcode = 0x78
	OpCoerce      Opcode = 0x80 // u30 multiname
	OpCoerceB     Opcode = 0x81
	OpCoerceA     Opcode = 0x82
	OpCoerceI     Opcode = 0x83
	OpCoerceD     Opcode = 0x84
	OpCoerceS     Opcode = 0x85
	OpAsType      Opcode = 0x86 // u30 multiname
	OpAsTypeLate  Opcode = 0x87
	OpCoerceU     Opcode = 0x88
	OpCoerceO     Opcode = 0x89
)

// Arithmetic, bitwise and comparison
const (
	OpNegate        Opcode = 0x90
	OpIncrement     Opcode = 0x91
	OpIncLocal      Opcode = 0x92 // u30 register
	OpDecrement     Opcode = 0x93
	OpDecLocal      Opcode = 0x94 // u30 register
	OpTypeOf        Opcode = 0x95
	OpNot           Opcode = 0x96
	OpBitNot        Opcode = 0x97
	OpAdd           Opcode = 0xA0
	OpSubtract      Opcode = 0xA1
	OpMultiply      Opcode = 0xA2
	OpDivide        Opcode = 0xA3
	OpModulo        Opcode = 0xA4
	OpLShift        Opcode = 0xA5
	OpRShift        Opcode = 0xA6
	OpURShift       Opcode = 0xA7
	OpBitAnd        Opcode = 0xA8
	OpBitOr         Opcode = 0xA9
	OpBitXor        Opcode = 0xAA
	OpEquals        Opcode = 0xAB
	OpStrictEquals  Opcode = 0xAC
	OpLessThan      Opcode = 0xAD
	OpLessEquals    Opcode = 0xAE
	OpGreaterThan   Opcode = 0xAF
	OpGreaterEquals Opcode = 0xB0
	OpInstanceOf    Opcode = 0xB1
	OpIsType        Opcode = 0xB2 // u30 multiname
	OpIsTypeLate    Opcode = 0xB3
	OpIn            Opcode = 0xB4
	OpIncrementI    Opcode = 0xC0
	OpDecrementI    Opcode = 0xC1
	OpIncLocalI     Opcode = 0xC2 // u30 register
	OpDecLocalI     Opcode = 0xC3 // u30 register
	OpNegateI       Opcode = 0xC4
	OpAddI          Opcode = 0xC5
	OpSubtractI     Opcode = 0xC6
	OpMultiplyI     Opcode = 0xC7
)

// Debugging
const (
	OpDebug     Opcode = 0xEF // u8 type, u30 name, u8 register, u30 extra
	OpDebugLine Opcode = 0xF0 // u30 line
	OpDebugFile Opcode = 0xF1 // u30 string
	OpBkptLine  Opcode = 0xF2 // u30 line
	OpTimestamp Opcode = 0xF3
)

// Compact register forms. The decoder folds these into OpGetLocal/OpSetLocal.
const (
	opGetLocal0 byte = 0xD0
	opGetLocal3 byte = 0xD3
	opSetLocal0 byte = 0xD4
	opSetLocal3 byte = 0xD7
)

// Optimizer-only forms. These have no byte encoding.
const (
	OpSetSlotNoCoerce     Opcode = 0x100 // slot write that skips the declared-type coercion
	OpReturnValueNoCoerce Opcode = 0x101 // return without coercing to the declared return type
	OpGetScriptGlobals    Opcode = 0x102 // push the globals object of a fixed script
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OperandKind describes the encoded operand layout of an opcode.
type OperandKind uint8

const (
	OperandsNone    OperandKind = iota
	OperandU8                   // one unsigned byte
	OperandS8                   // one signed byte (pushbyte)
	OperandU30                  // one variable-length u30
	OperandU30U30               // two u30 operands
	OperandS24                  // one 24-bit branch offset
	OperandSwitch               // lookupswitch case table
	OperandDebug                // u8, u30, u8, u30
	OperandSynthetic            // optimizer-only, not encodable
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name     string
	Operands OperandKind
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpBkpt:         {"bkpt", OperandsNone},
	OpNop:          {"nop", OperandsNone},
	OpThrow:        {"throw", OperandsNone},
	OpGetSuper:     {"getsuper", OperandU30},
	OpSetSuper:     {"setsuper", OperandU30},
	OpDxns:         {"dxns", OperandU30},
	OpDxnsLate:     {"dxnslate", OperandsNone},
	OpKill:         {"kill", OperandU30},
	OpLabel:        {"label", OperandsNone},
	OpIfNlt:        {"ifnlt", OperandS24},
	OpIfNle:        {"ifnle", OperandS24},
	OpIfNgt:        {"ifngt", OperandS24},
	OpIfNge:        {"ifnge", OperandS24},
	OpJump:         {"jump", OperandS24},
	OpIfTrue:       {"iftrue", OperandS24},
	OpIfFalse:      {"iffalse", OperandS24},
	OpIfEq:         {"ifeq", OperandS24},
	OpIfNe:         {"ifne", OperandS24},
	OpIfLt:         {"iflt", OperandS24},
	OpIfLe:         {"ifle", OperandS24},
	OpIfGt:         {"ifgt", OperandS24},
	OpIfGe:         {"ifge", OperandS24},
	OpIfStrictEq:   {"ifstricteq", OperandS24},
	OpIfStrictNe:   {"ifstrictne", OperandS24},
	OpLookupSwitch: {"lookupswitch", OperandSwitch},
	OpPushWith:     {"pushwith", OperandsNone},
	OpPopScope:     {"popscope", OperandsNone},
	OpNextName:     {"nextname", OperandsNone},
	OpHasNext:      {"hasnext", OperandsNone},

	OpPushNull:      {"pushnull", OperandsNone},
	OpPushUndefined: {"pushundefined", OperandsNone},
	OpNextValue:     {"nextvalue", OperandsNone},
	OpPushByte:      {"pushbyte", OperandS8},
	OpPushShort:     {"pushshort", OperandU30},
	OpPushTrue:      {"pushtrue", OperandsNone},
	OpPushFalse:     {"pushfalse", OperandsNone},
	OpPushNaN:       {"pushnan", OperandsNone},
	OpPop:           {"pop", OperandsNone},
	OpDup:           {"dup", OperandsNone},
	OpSwap:          {"swap", OperandsNone},
	OpPushString:    {"pushstring", OperandU30},
	OpPushInt:       {"pushint", OperandU30},
	OpPushUint:      {"pushuint", OperandU30},
	OpPushDouble:    {"pushdouble", OperandU30},
	OpPushScope:     {"pushscope", OperandsNone},
	OpPushNamespace: {"pushnamespace", OperandU30},
	OpHasNext2:      {"hasnext2", OperandU30U30},

	OpLi8:  {"li8", OperandsNone},
	OpLi16: {"li16", OperandsNone},
	OpLi32: {"li32", OperandsNone},
	OpLf32: {"lf32", OperandsNone},
	OpLf64: {"lf64", OperandsNone},
	OpSi8:  {"si8", OperandsNone},
	OpSi16: {"si16", OperandsNone},
	OpSi32: {"si32", OperandsNone},
	OpSf32: {"sf32", OperandsNone},
	OpSf64: {"sf64", OperandsNone},

	OpNewFunction:    {"newfunction", OperandU30},
	OpCall:           {"call", OperandU30},
	OpConstruct:      {"construct", OperandU30},
	OpCallMethod:     {"callmethod", OperandU30U30},
	OpCallStatic:     {"callstatic", OperandU30U30},
	OpCallSuper:      {"callsuper", OperandU30U30},
	OpCallProperty:   {"callproperty", OperandU30U30},
	OpReturnVoid:     {"returnvoid", OperandsNone},
	OpReturnValue:    {"returnvalue", OperandsNone},
	OpConstructSuper: {"constructsuper", OperandU30},
	OpConstructProp:  {"constructprop", OperandU30U30},
	OpCallPropLex:    {"callproplex", OperandU30U30},
	OpCallSuperVoid:  {"callsupervoid", OperandU30U30},
	OpCallPropVoid:   {"callpropvoid", OperandU30U30},
	OpSxi1:           {"sxi1", OperandsNone},
	OpSxi8:           {"sxi8", OperandsNone},
	OpSxi16:          {"sxi16", OperandsNone},
	OpApplyType:      {"applytype", OperandU30},
	OpNewObject:      {"newobject", OperandU30},
	OpNewArray:       {"newarray", OperandU30},
	OpNewActivation:  {"newactivation", OperandsNone},
	OpNewClass:       {"newclass", OperandU30},
	OpGetDescendants: {"getdescendants", OperandU30},
	OpNewCatch:       {"newcatch", OperandU30},

	OpFindPropStrict: {"findpropstrict", OperandU30},
	OpFindProperty:   {"findproperty", OperandU30},
	OpFindDef:        {"finddef", OperandU30},
	OpGetLex:         {"getlex", OperandU30},
	OpSetProperty:    {"setproperty", OperandU30},
	OpGetLocal:       {"getlocal", OperandU30},
	OpSetLocal:       {"setlocal", OperandU30},
	OpGetGlobalScope: {"getglobalscope", OperandsNone},
	OpGetScopeObject: {"getscopeobject", OperandU8},
	OpGetProperty:    {"getproperty", OperandU30},
	OpGetOuterScope:  {"getouterscope", OperandU30},
	OpInitProperty:   {"initproperty", OperandU30},
	OpDeleteProperty: {"deleteproperty", OperandU30},
	OpGetSlot:        {"getslot", OperandU30},
	OpSetSlot:        {"setslot", OperandU30},
	OpGetGlobalSlot:  {"getglobalslot", OperandU30},
	OpSetGlobalSlot:  {"setglobalslot", OperandU30},

	OpConvertS:    {"convert_s", OperandsNone},
	OpEscXElem:    {"esc_xelem", OperandsNone},
	OpEscXAttr:    {"esc_xattr", OperandsNone},
	OpConvertI:    {"convert_i", OperandsNone},
	OpConvertU:    {"convert_u", OperandsNone},
	OpConvertD:    {"convert_d", OperandsNone},
	OpConvertB:    {"convert_b", OperandsNone},
	OpConvertO:    {"convert_o", OperandsNone},
	OpCheckFilter: {"checkfilter", OperandsNone},
	OpCoerce:      {"coerce", OperandU30},
	OpCoerceB:     {"coerce_b", OperandsNone},
	OpCoerceA:     {"coerce_a", OperandsNone},
	OpCoerceI:     {"coerce_i", OperandsNone},
	OpCoerceD:     {"coerce_d", OperandsNone},
	OpCoerceS:     {"coerce_s", OperandsNone},
	OpAsType:      {"astype", OperandU30},
	OpAsTypeLate:  {"astypelate", OperandsNone},
	OpCoerceU:     {"coerce_u", OperandsNone},
	OpCoerceO:     {"coerce_o", OperandsNone},

	OpNegate:        {"negate", OperandsNone},
	OpIncrement:     {"increment", OperandsNone},
	OpIncLocal:      {"inclocal", OperandU30},
	OpDecrement:     {"decrement", OperandsNone},
	OpDecLocal:      {"declocal", OperandU30},
	OpTypeOf:        {"typeof", OperandsNone},
	OpNot:           {"not", OperandsNone},
	OpBitNot:        {"bitnot", OperandsNone},
	OpAdd:           {"add", OperandsNone},
	OpSubtract:      {"subtract", OperandsNone},
	OpMultiply:      {"multiply", OperandsNone},
	OpDivide:        {"divide", OperandsNone},
	OpModulo:        {"modulo", OperandsNone},
	OpLShift:        {"lshift", OperandsNone},
	OpRShift:        {"rshift", OperandsNone},
	OpURShift:       {"urshift", OperandsNone},
	OpBitAnd:        {"bitand", OperandsNone},
	OpBitOr:         {"bitor", OperandsNone},
	OpBitXor:        {"bitxor", OperandsNone},
	OpEquals:        {"equals", OperandsNone},
	OpStrictEquals:  {"strictequals", OperandsNone},
	OpLessThan:      {"lessthan", OperandsNone},
	OpLessEquals:    {"lessequals", OperandsNone},
	OpGreaterThan:   {"greaterthan", OperandsNone},
	OpGreaterEquals: {"greaterequals", OperandsNone},
	OpInstanceOf:    {"instanceof", OperandsNone},
	OpIsType:        {"istype", OperandU30},
	OpIsTypeLate:    {"istypelate", OperandsNone},
	OpIn:            {"in", OperandsNone},
	OpIncrementI:    {"increment_i", OperandsNone},
	OpDecrementI:    {"decrement_i", OperandsNone},
	OpIncLocalI:     {"inclocal_i", OperandU30},
	OpDecLocalI:     {"declocal_i", OperandU30},
	OpNegateI:       {"negate_i", OperandsNone},
	OpAddI:          {"add_i", OperandsNone},
	OpSubtractI:     {"subtract_i", OperandsNone},
	OpMultiplyI:     {"multiply_i", OperandsNone},

	OpDebug:     {"debug", OperandDebug},
	OpDebugLine: {"debugline", OperandU30},
	OpDebugFile: {"debugfile", OperandU30},
	OpBkptLine:  {"bkptline", OperandU30},
	OpTimestamp: {"timestamp", OperandsNone},

	OpSetSlotNoCoerce:     {"setslotnocoerce", OperandSynthetic},
	OpReturnValueNoCoerce: {"returnvaluenocoerce", OperandSynthetic},
	OpGetScriptGlobals:    {"getscriptglobals", OperandSynthetic},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("unknown_%02x", uint16(op))}
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// Known reports whether op has an entry in the opcode table.
func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Encodable reports whether op may appear in a method body's byte code.
func (op Opcode) Encodable() bool {
	info, ok := opcodeTable[op]
	return ok && info.Operands != OperandSynthetic
}

// ---------------------------------------------------------------------------
// Opcode classes
// ---------------------------------------------------------------------------

// IsConditionalBranch reports whether op is one of the if* instructions.
func (op Opcode) IsConditionalBranch() bool {
	switch op {
	case OpIfNlt, OpIfNle, OpIfNgt, OpIfNge, OpIfTrue, OpIfFalse,
		OpIfEq, OpIfNe, OpIfLt, OpIfLe, OpIfGt, OpIfGe,
		OpIfStrictEq, OpIfStrictNe:
		return true
	}
	return false
}

// IsBranch reports whether op carries a single s24 branch offset.
func (op Opcode) IsBranch() bool {
	return op == OpJump || op.IsConditionalBranch()
}

// IsTerminal reports whether control never falls through op.
func (op Opcode) IsTerminal() bool {
	switch op {
	case OpJump, OpLookupSwitch, OpThrow, OpReturnVoid, OpReturnValue, OpReturnValueNoCoerce:
		return true
	}
	return false
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// OpcodeByName looks up an opcode by mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}
