package abc

import (
	"errors"
	"fmt"
)

// Decode errors. They are wrapped in a *DecodeError carrying the offset.
var (
	ErrIllegalOpcode      = errors.New("illegal opcode")
	ErrConstantOutOfRange = errors.New("constant pool index out of range")

	errTruncated = errors.New("truncated instruction")
)

// DecodeError reports where decoding stopped.
type DecodeError struct {
	Offset int
	Opcode byte
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("abc: offset %d: opcode 0x%02x: %v", e.Offset, e.Opcode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoded is a linear instruction list with the byte offset of every
// instruction boundary.
type Decoded struct {
	Code []Instruction

	// Offsets[i] is the byte offset of Code[i]; Offsets[len(Code)] is the
	// offset just past the last complete instruction.
	Offsets []int

	// Truncated is set when the code ended in the middle of an instruction.
	// The partial instruction is not part of Code.
	Truncated bool
}

// IndexOf returns the instruction index that starts at byte offset off. The
// end offset maps to len(Code).
func (d *Decoded) IndexOf(off int) (int, bool) {
	lo, hi := 0, len(d.Offsets)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case d.Offsets[mid] == off:
			return mid, true
		case d.Offsets[mid] < off:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}

// Decode reads every instruction in code. Branch offsets are kept in their
// byte-relative form; pushint and pushuint immediates are resolved through
// pool.
func Decode(code []byte, pool *ConstantPool) (*Decoded, error) {
	r := &codeReader{code: code}
	d := &Decoded{
		Code:    make([]Instruction, 0, len(code)/2),
		Offsets: make([]int, 1, len(code)/2+1),
	}

	for r.hasMore() {
		start := r.pos
		in, err := r.readInstruction(pool)
		if err != nil {
			if errors.Is(err, errTruncated) {
				d.Truncated = true
				break
			}
			return nil, &DecodeError{Offset: start, Opcode: code[start], Err: err}
		}
		d.Code = append(d.Code, in)
		d.Offsets = append(d.Offsets, r.pos)
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Byte-level reader
// ---------------------------------------------------------------------------

type codeReader struct {
	code []byte
	pos  int
}

func (r *codeReader) hasMore() bool {
	return r.pos < len(r.code)
}

func (r *codeReader) readU8() (byte, error) {
	if r.pos >= len(r.code) {
		return 0, errTruncated
	}
	b := r.code[r.pos]
	r.pos++
	return b, nil
}

// readU30 reads a variable-length unsigned integer of up to five bytes.
func (r *codeReader) readU30() (uint32, error) {
	var v uint32
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := r.readU8()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
	}
	return v, nil
}

// readS24 reads a three-byte little-endian signed offset.
func (r *codeReader) readS24() (int32, error) {
	if r.pos+3 > len(r.code) {
		r.pos = len(r.code)
		return 0, errTruncated
	}
	b := r.code[r.pos:]
	v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
	r.pos += 3
	return v, nil
}

func (r *codeReader) readInstruction(pool *ConstantPool) (Instruction, error) {
	raw, err := r.readU8()
	if err != nil {
		return Instruction{}, err
	}

	switch {
	case raw >= opGetLocal0 && raw <= opGetLocal3:
		return Instruction{Op: OpGetLocal, Index: uint32(raw - opGetLocal0)}, nil
	case raw >= opSetLocal0 && raw <= opSetLocal3:
		return Instruction{Op: OpSetLocal, Index: uint32(raw - opSetLocal0)}, nil
	}

	op := Opcode(raw)
	info, ok := opcodeTable[op]
	if !ok {
		return Instruction{}, ErrIllegalOpcode
	}
	in := Instruction{Op: op}

	switch info.Operands {
	case OperandsNone:
	case OperandU8:
		b, err := r.readU8()
		if err != nil {
			return in, err
		}
		in.Index = uint32(b)
	case OperandS8:
		b, err := r.readU8()
		if err != nil {
			return in, err
		}
		in.Int = int64(int8(b))
	case OperandU30:
		v, err := r.readU30()
		if err != nil {
			return in, err
		}
		in.Index = v
	case OperandU30U30:
		if in.Index, err = r.readU30(); err != nil {
			return in, err
		}
		if op == OpHasNext2 {
			in.Index2, err = r.readU30()
		} else {
			in.ArgCount, err = r.readU30()
		}
		if err != nil {
			return in, err
		}
	case OperandS24:
		if in.Offset, err = r.readS24(); err != nil {
			return in, err
		}
	case OperandSwitch:
		if in.Offset, err = r.readS24(); err != nil {
			return in, err
		}
		count, err := r.readU30()
		if err != nil {
			return in, err
		}
		if int(count) >= len(r.code)-r.pos {
			// Each case needs three bytes; a count this large cannot fit.
			r.pos = len(r.code)
			return in, errTruncated
		}
		in.Cases = make([]int32, count+1)
		for i := range in.Cases {
			if in.Cases[i], err = r.readS24(); err != nil {
				return in, err
			}
		}
	case OperandDebug:
		typ, err := r.readU8()
		if err != nil {
			return in, err
		}
		in.Int = int64(typ)
		if in.Index2, err = r.readU30(); err != nil {
			return in, err
		}
		reg, err := r.readU8()
		if err != nil {
			return in, err
		}
		in.Index = uint32(reg)
		if in.ArgCount, err = r.readU30(); err != nil {
			return in, err
		}
	default:
		return in, ErrIllegalOpcode
	}

	return in, resolveImmediate(&in, pool)
}

// resolveImmediate fills Int for instructions whose immediate lives in the
// constant pool or needs sign extension.
func resolveImmediate(in *Instruction, pool *ConstantPool) error {
	switch in.Op {
	case OpPushShort:
		in.Int = int64(int16(in.Index))
	case OpPushInt:
		v, ok := pool.Int(in.Index)
		if !ok {
			return ErrConstantOutOfRange
		}
		in.Int = int64(v)
	case OpPushUint:
		v, ok := pool.Uint(in.Index)
		if !ok {
			return ErrConstantOutOfRange
		}
		in.Int = int64(v)
	}
	return nil
}
