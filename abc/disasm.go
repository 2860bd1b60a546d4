package abc

import (
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble writes one line per instruction of verified code. Branch
// targets are shown as instruction indices.
func Disassemble(w io.Writer, code []Instruction, pool *ConstantPool) error {
	for i := range code {
		if _, err := fmt.Fprintln(w, FormatInstruction(i, &code[i], pool)); err != nil {
			return err
		}
	}
	return nil
}

// DisassembleString returns the disassembly as a string.
func DisassembleString(code []Instruction, pool *ConstantPool) string {
	var sb strings.Builder
	_ = Disassemble(&sb, code, pool)
	return sb.String()
}

// FormatInstruction renders the instruction at index i of verified code.
func FormatInstruction(i int, in *Instruction, pool *ConstantPool) string {
	name := in.Op.Name()
	prefix := fmt.Sprintf("%04d  %s", i, name)

	switch in.Op {
	case OpPushByte, OpPushShort, OpPushInt, OpPushUint:
		return fmt.Sprintf("%s %d", prefix, in.Int)

	case OpPushDouble:
		if v, ok := pool.Double(in.Index); ok {
			return fmt.Sprintf("%s %g", prefix, v)
		}
	case OpPushString, OpDebugFile, OpDxns:
		if s, ok := pool.StringAt(in.Index); ok {
			return fmt.Sprintf("%s %q", prefix, s)
		}

	case OpLookupSwitch:
		var sb strings.Builder
		sb.WriteString(prefix)
		fmt.Fprintf(&sb, " default->%04d [", i+1+int(in.Offset))
		for n, c := range in.Cases {
			if n > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%04d", i+1+int(c))
		}
		sb.WriteString("]")
		return sb.String()

	case OpHasNext2:
		return fmt.Sprintf("%s obj=%d idx=%d", prefix, in.Index, in.Index2)

	case OpDebug:
		return fmt.Sprintf("%s type=%d name=%d reg=%d", prefix, in.Int, in.Index2, in.Index)

	case OpCallMethod:
		if in.Void {
			return fmt.Sprintf("%s disp=%d argc=%d void", prefix, in.Index, in.ArgCount)
		}
		return fmt.Sprintf("%s disp=%d argc=%d", prefix, in.Index, in.ArgCount)

	case OpCallStatic:
		return fmt.Sprintf("%s method=%d argc=%d", prefix, in.Index, in.ArgCount)

	case OpGetScriptGlobals:
		return fmt.Sprintf("%s script=%d", prefix, in.Index)
	}

	if in.Op.IsBranch() {
		return fmt.Sprintf("%s %d (-> %04d)", prefix, in.Offset, i+1+int(in.Offset))
	}

	if usesMultiname(in.Op) {
		mn := "*"
		if m, ok := pool.Multiname(in.Index); ok {
			mn = m.String()
		} else if in.Index != 0 {
			mn = fmt.Sprintf("#%d", in.Index)
		}
		if in.Op.Info().Operands == OperandU30U30 {
			return fmt.Sprintf("%s %s argc=%d", prefix, mn, in.ArgCount)
		}
		return fmt.Sprintf("%s %s", prefix, mn)
	}

	switch in.Op.Info().Operands {
	case OperandU8, OperandU30:
		return fmt.Sprintf("%s %d", prefix, in.Index)
	case OperandU30U30:
		return fmt.Sprintf("%s %d %d", prefix, in.Index, in.ArgCount)
	case OperandSynthetic:
		if in.Op == OpReturnValueNoCoerce {
			return prefix
		}
		return fmt.Sprintf("%s %d", prefix, in.Index)
	}
	return prefix
}

// usesMultiname reports whether the first operand of op is a multiname index.
func usesMultiname(op Opcode) bool {
	switch op {
	case OpGetSuper, OpSetSuper, OpCallSuper, OpCallProperty, OpConstructProp,
		OpCallPropLex, OpCallSuperVoid, OpCallPropVoid, OpGetDescendants,
		OpFindPropStrict, OpFindProperty, OpFindDef, OpGetLex, OpSetProperty,
		OpGetProperty, OpInitProperty, OpDeleteProperty, OpCoerce, OpAsType,
		OpIsType:
		return true
	}
	return false
}
