// Package verify statically validates AVM2 method bodies and rewrites their
// branch offsets into instruction-index form.
//
// Verification decodes the body, walks every reachable block depth first,
// remaps the exception table, and finally rewrites each branch and switch
// offset so that the target of the instruction at i is i + 1 + offset.
// Failure is fatal for the method: no partially verified code is returned.
package verify

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/avmprep/abc"
)

var log = commonlog.GetLogger("avmprep.verify")

// Method is a verified method body. Code is index-addressed and is treated
// as immutable once published.
type Method struct {
	Body        *abc.MethodBody
	Code        []abc.Instruction
	Exceptions  []abc.Exception
	JumpTargets JumpTargets
	Graph       *Graph

	// Reached marks the instructions the walk visited.
	Reached []bool
}

// Pool returns the constant pool the code refers to.
func (m *Method) Pool() *abc.ConstantPool {
	return m.Body.Pool
}

// Verifier verifies method bodies. It holds no per-method state and is safe
// for concurrent use.
type Verifier struct{}

// New creates a Verifier.
func New() *Verifier {
	return &Verifier{}
}

// Verify verifies a single method body.
func Verify(body *abc.MethodBody) (*Method, error) {
	return New().Verify(body)
}

// Verify validates body and returns its index-addressed form.
func (v *Verifier) Verify(body *abc.MethodBody) (*Method, error) {
	m, err := v.verify(body)
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			verr.Method = body.Name
		}
		log.Infof("%s: %s", body.Name, err)
		return nil, err
	}
	log.Debugf("%s: verified %d instructions, %d blocks", body.Name, len(m.Code), len(m.Graph.Blocks))
	return m, nil
}

func (v *Verifier) verify(body *abc.MethodBody) (*Method, error) {
	if len(body.Code) == 0 {
		return nil, errZeroLengthCode()
	}

	dec, err := abc.Decode(body.Code, body.Pool)
	if err != nil {
		var de *abc.DecodeError
		if errors.As(err, &de) && errors.Is(err, abc.ErrConstantOutOfRange) {
			return nil, errConstant(de.Offset)
		}
		if errors.As(err, &de) {
			return nil, errIllegalOpcode(de.Opcode, de.Offset)
		}
		return nil, err
	}

	w := newWalker(body, dec)
	if err := w.walk(0, unbounded, 0, true); err != nil {
		return nil, err
	}

	exceptions := make([]abc.Exception, len(body.Exceptions))
	for n, e := range body.Exceptions {
		remapped, err := remapException(dec, e)
		if err != nil {
			return nil, err
		}
		exceptions[n] = remapped
		if err := w.walk(int(remapped.Target), unbounded, 0, true); err != nil {
			return nil, err
		}
	}

	code := make([]abc.Instruction, len(dec.Code))
	for i := range dec.Code {
		code[i] = dec.Code[i].Clone()
		remapOffsets(dec, code, i)
	}

	return newMethod(body, code, exceptions, w.reached), nil
}

func newMethod(body *abc.MethodBody, code []abc.Instruction, exceptions []abc.Exception, reached []bool) *Method {
	return &Method{
		Body:        body,
		Code:        code,
		Exceptions:  exceptions,
		JumpTargets: buildJumpTargets(code, exceptions),
		Graph:       buildGraph(code, reached, exceptions),
		Reached:     reached,
	}
}

// Restore rebuilds a verified method from previously verified parts, as
// stored by a cache. It checks only that the parts are consistent with each
// other, not that they verify.
func Restore(body *abc.MethodBody, code []abc.Instruction, exceptions []abc.Exception, reached []bool) (*Method, error) {
	if len(code) == 0 || len(reached) != len(code) {
		return nil, fmt.Errorf("verify: restore %s: %d instructions, %d reach marks", body.Name, len(code), len(reached))
	}
	for _, e := range exceptions {
		if int(e.Target) >= len(code) || int(e.To) > len(code) || e.From > e.To {
			return nil, fmt.Errorf("verify: restore %s: exception range out of bounds", body.Name)
		}
	}
	for i := range code {
		for _, t := range Targets(code, i) {
			if t < 0 || t >= len(code) {
				return nil, fmt.Errorf("verify: restore %s: branch at %d targets %d", body.Name, i, t)
			}
		}
	}
	return newMethod(body, code, exceptions, reached), nil
}

// remapException converts a handler's byte offsets to instruction indices.
func remapException(dec *abc.Decoded, e abc.Exception) (abc.Exception, error) {
	from, ok1 := dec.IndexOf(int(e.From))
	to, ok2 := dec.IndexOf(int(e.To))
	target, ok3 := dec.IndexOf(int(e.Target))
	if !ok1 || !ok2 || !ok3 || from > to || target >= len(dec.Code) {
		return e, errExceptionRange()
	}
	e.From, e.To, e.Target = uint32(from), uint32(to), uint32(target)
	return e, nil
}

// remapOffsets rewrites the byte-relative offsets of code[i] into index
// form. Targets that are not instruction boundaries can only belong to
// unreachable code; they are pointed at index 0.
func remapOffsets(dec *abc.Decoded, code []abc.Instruction, i int) {
	n := len(code)
	resolve := func(base int, rel int32) int32 {
		idx, ok := dec.IndexOf(base + int(rel))
		if !ok || idx >= n {
			idx = 0
		}
		return int32(idx - i - 1)
	}

	in := &code[i]
	switch {
	case in.Op.IsBranch():
		in.Offset = resolve(dec.Offsets[i+1], in.Offset)
	case in.Op == abc.OpLookupSwitch:
		base := dec.Offsets[i]
		in.Offset = resolve(base, in.Offset)
		for c := range in.Cases {
			in.Cases[c] = resolve(base, in.Cases[c])
		}
	}
}
