package optimize

import (
	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/meta"
)

// step applies the abstract effect of the instruction at i and rewrites it
// when the tracked types allow.
func (p *pass) step(i int, in *abc.Instruction) {
	b := p.builtins

	switch in.Op {
	// Coercions

	case abc.OpCoerceA:
		p.stack.Pop()
		p.pushAny()

	case abc.OpCoerceB, abc.OpConvertB:
		v := p.stack.PopOrAny()
		if v.Class == b.Boolean {
			p.elide(i, v)
			return
		}
		p.push(b.Boolean)

	case abc.OpCoerceD, abc.OpConvertD:
		v := p.stack.PopOrAny()
		if b.IsNumeric(v.Class) {
			p.elide(i, v)
			return
		}
		p.push(b.Number)

	case abc.OpCoerceI, abc.OpConvertI:
		v := p.stack.PopOrAny()
		if v.ValidInt {
			p.elide(i, v)
			return
		}
		p.stack.Push(OptValue{Class: b.Int, ValidInt: true})

	case abc.OpCoerceU, abc.OpConvertU:
		v := p.stack.PopOrAny()
		if v.ValidUint {
			p.elide(i, v)
			return
		}
		p.stack.Push(OptValue{Class: b.Uint, ValidUint: true})

	case abc.OpCoerceS:
		// coerce_s leaves null and strings unchanged.
		v := p.stack.PopOrAny()
		if v.Null || v.Class == b.String {
			p.elide(i, v)
			return
		}
		p.push(b.String)

	case abc.OpConvertS:
		p.stack.Pop()
		p.push(b.String)

	case abc.OpCoerceO:
		// coerce_o only changes undefined.
		v := p.stack.PopOrAny()
		if v.Null || (v.Class != nil && v.Class != b.Void) {
			p.elide(i, v)
			return
		}
		p.push(b.Object)

	case abc.OpConvertO:
		// Either the value passes through or the instruction throws.

	case abc.OpCoerce:
		v := p.stack.PopOrAny()
		t, ok := p.resolveType(in.Index)
		if !ok {
			p.pushAny()
			return
		}
		if v.Null && !b.IsPrimitive(t) {
			p.elide(i, v)
			return
		}
		if v.Class == t {
			p.elide(i, v)
			return
		}
		p.push(t)

	case abc.OpAsType:
		v := p.stack.PopOrAny()
		t, ok := p.resolveType(in.Index)
		if !ok {
			p.pushAny()
			return
		}
		if v.Null {
			p.elide(i, v)
			return
		}
		switch {
		case v.Class == t:
			p.stack.Push(v)
		case b.IsPrimitive(t):
			p.pushAny()
		default:
			p.push(t)
		}

	case abc.OpAsTypeLate:
		p.stack.PopN(2)
		p.pushAny()

	// Comparisons and type tests

	case abc.OpEquals, abc.OpStrictEquals, abc.OpLessEquals, abc.OpLessThan,
		abc.OpGreaterThan, abc.OpGreaterEquals, abc.OpIsTypeLate, abc.OpInstanceOf, abc.OpIn:
		p.stack.PopN(2)
		p.push(b.Boolean)

	case abc.OpNot, abc.OpIsType:
		p.stack.Pop()
		p.push(b.Boolean)

	case abc.OpTypeOf, abc.OpEscXAttr, abc.OpEscXElem:
		p.stack.Pop()
		p.push(b.String)

	// Constants

	case abc.OpPushTrue, abc.OpPushFalse:
		p.push(b.Boolean)
	case abc.OpPushNull:
		p.stack.Push(Null())
	case abc.OpPushUndefined:
		p.push(b.Void)
	case abc.OpPushNaN, abc.OpPushDouble:
		p.push(b.Number)
	case abc.OpPushByte, abc.OpPushShort, abc.OpPushInt:
		p.pushInt(in.Int)
	case abc.OpPushUint:
		val := OfType(b.Uint)
		if in.Int < intAtomMax {
			val.ValidUint = true
			val.ValidInt = true
		}
		p.stack.Push(val)
	case abc.OpPushString:
		p.push(b.String)
	case abc.OpPushNamespace:
		p.push(b.Namespace)

	// Arithmetic

	case abc.OpAdd:
		v2 := p.stack.PopOrAny()
		v1 := p.stack.PopOrAny()
		if b.IsNumeric(v1.Class) && b.IsNumeric(v2.Class) {
			p.push(b.Number)
		} else {
			p.pushAny()
		}

	case abc.OpSubtract, abc.OpMultiply, abc.OpDivide, abc.OpModulo:
		p.stack.PopN(2)
		p.push(b.Number)

	case abc.OpNegate, abc.OpIncrement, abc.OpDecrement:
		p.stack.Pop()
		p.push(b.Number)

	case abc.OpAddI, abc.OpSubtractI, abc.OpMultiplyI,
		abc.OpBitAnd, abc.OpBitOr, abc.OpBitXor, abc.OpLShift, abc.OpRShift, abc.OpURShift:
		p.stack.PopN(2)
		p.pushAny()

	case abc.OpNegateI, abc.OpIncrementI, abc.OpDecrementI, abc.OpBitNot:
		p.stack.Pop()
		p.pushAny()

	case abc.OpIncLocal, abc.OpDecLocal:
		p.locals.Set(in.Index, OfType(b.Number))
	case abc.OpIncLocalI, abc.OpDecLocalI, abc.OpKill:
		p.locals.SetAny(in.Index)

	// Domain memory

	case abc.OpSi8, abc.OpSi16, abc.OpSi32, abc.OpSf32, abc.OpSf64:
		p.stack.PopN(2)
	case abc.OpLi8, abc.OpLi16, abc.OpSxi1, abc.OpSxi8, abc.OpSxi16:
		p.stack.Pop()
		p.stack.Push(OptValue{Class: b.Int, ValidInt: true})
	case abc.OpLi32:
		p.stack.Pop()
		p.push(b.Int)
	case abc.OpLf32, abc.OpLf64:
		p.stack.Pop()
		p.push(b.Number)

	// Stack and registers

	case abc.OpPop:
		p.stack.Pop()
	case abc.OpDup:
		v := p.stack.PopOrAny()
		p.stack.Push(v)
		p.stack.Push(v)
	case abc.OpSwap:
		first := p.stack.PopOrAny()
		second := p.stack.PopOrAny()
		p.stack.Push(first)
		p.stack.Push(second)
	case abc.OpGetLocal:
		p.stack.Push(p.locals.At(in.Index))
	case abc.OpSetLocal:
		p.locals.Set(in.Index, p.stack.PopOrAny())

	// Scopes

	case abc.OpPushScope, abc.OpPushWith:
		p.scopeStack.Push(p.stack.PopOrAny())
	case abc.OpPopScope:
		p.scopeStack.Pop()
	case abc.OpGetScopeObject:
		p.stack.Push(p.scopeValue(in.Index))
	case abc.OpGetOuterScope:
		if scope, ok := p.scopes.At(int(in.Index)); ok {
			p.push(scope.Values)
		} else {
			p.pushAny()
		}
	case abc.OpGetGlobalScope:
		p.push(p.globalClass())
	case abc.OpGetScriptGlobals:
		if s, ok := p.scopes.Script(in.Index); ok {
			p.push(s.Globals)
		} else {
			p.pushAny()
		}
	case abc.OpGetGlobalSlot:
		p.pushSlot(p.globalClass(), in.Index)
	case abc.OpSetGlobalSlot:
		p.stack.Pop()

	case abc.OpFindPropStrict, abc.OpFindProperty:
		p.findProperty(i, in)
	case abc.OpFindDef, abc.OpGetLex, abc.OpNewActivation, abc.OpNewCatch:
		p.pushAny()

	// Iteration

	case abc.OpNextName, abc.OpNextValue, abc.OpHasNext:
		p.stack.PopN(2)
		p.pushAny()
	case abc.OpHasNext2:
		p.push(b.Boolean)
		p.locals.SetAny(in.Index)
		p.locals.SetAny(in.Index2)

	// Properties and slots

	case abc.OpGetSlot:
		v := p.stack.PopOrAny()
		p.pushSlot(v.Class, in.Index)
	case abc.OpSetSlot, abc.OpSetSlotNoCoerce:
		p.stack.PopN(2)

	case abc.OpGetProperty:
		p.getProperty(i, in)
	case abc.OpSetProperty, abc.OpInitProperty:
		p.setProperty(i, in)
	case abc.OpDeleteProperty:
		p.stack.PopForMultiname(p.multiname(in.Index))
		p.stack.Pop()
		p.push(b.Boolean)
	case abc.OpGetDescendants, abc.OpGetSuper:
		p.stack.PopForMultiname(p.multiname(in.Index))
		p.stack.Pop()
		p.pushAny()
	case abc.OpSetSuper:
		p.stack.Pop()
		p.stack.PopForMultiname(p.multiname(in.Index))
		p.stack.Pop()
	case abc.OpCheckFilter:
		p.stack.Pop()
		p.pushAny()

	// Calls and construction

	case abc.OpCallProperty, abc.OpCallPropVoid:
		p.callProperty(i, in)
	case abc.OpCallPropLex, abc.OpCallSuper, abc.OpConstructProp:
		p.stack.PopN(in.ArgCount)
		p.stack.PopForMultiname(p.multiname(in.Index))
		p.stack.Pop()
		p.pushAny()
	case abc.OpCallSuperVoid:
		p.stack.PopN(in.ArgCount)
		p.stack.PopForMultiname(p.multiname(in.Index))
		p.stack.Pop()
	case abc.OpCallMethod:
		p.stack.PopN(in.ArgCount)
		p.stack.Pop()
		if !in.Void {
			p.pushAny()
		}
	case abc.OpCallStatic, abc.OpConstruct:
		p.stack.PopN(in.ArgCount)
		p.stack.Pop()
		p.pushAny()
	case abc.OpConstructSuper:
		p.stack.PopN(in.ArgCount)
		p.stack.Pop()
	case abc.OpCall:
		p.stack.PopN(in.ArgCount)
		p.stack.PopN(2)
		p.pushAny()
	case abc.OpApplyType:
		p.stack.PopN(in.Index)
		p.stack.Pop()
		p.pushAny()

	case abc.OpNewArray:
		p.stack.PopN(in.Index)
		p.push(b.Array)
	case abc.OpNewObject:
		p.stack.PopN(in.Index * 2)
		p.push(b.Object)
	case abc.OpNewFunction:
		p.push(b.Function)
	case abc.OpNewClass:
		p.stack.Pop()
		p.push(b.Class)

	case abc.OpDxnsLate:
		p.stack.Pop()

	case abc.OpNop, abc.OpLabel, abc.OpDxns, abc.OpDebug, abc.OpDebugLine,
		abc.OpDebugFile, abc.OpBkpt, abc.OpBkptLine, abc.OpTimestamp:

	// Control flow

	case abc.OpIfTrue, abc.OpIfFalse:
		p.stack.Pop()
		p.states[i] = p.locals.Clone()
	case abc.OpIfEq, abc.OpIfNe, abc.OpIfLt, abc.OpIfLe, abc.OpIfGt, abc.OpIfGe,
		abc.OpIfNlt, abc.OpIfNle, abc.OpIfNgt, abc.OpIfNge, abc.OpIfStrictEq, abc.OpIfStrictNe:
		p.stack.PopN(2)
		p.states[i] = p.locals.Clone()
	case abc.OpJump:
		p.states[i] = p.locals.Clone()
		p.endBlock()
	case abc.OpLookupSwitch, abc.OpThrow, abc.OpReturnVoid, abc.OpReturnValueNoCoerce:
		p.endBlock()
	case abc.OpReturnValue:
		v := p.stack.PopOrAny()
		if p.returnType == nil || v.Class == p.returnType {
			p.rewrite(i, abc.Instruction{Op: abc.OpReturnValueNoCoerce})
		}
		p.endBlock()

	default:
		// Unmodelled stack effect.
		p.stack.Clear()
	}
}

func (p *pass) globalClass() *meta.Class {
	if p.scopes.IsEmpty() {
		return nil
	}
	c, _ := p.scopes.GlobalClass()
	return c
}

func (p *pass) getProperty(i int, in *abc.Instruction) {
	mn := p.multiname(in.Index)
	p.stack.PopForMultiname(mn)
	recv := p.stack.PopOrAny()

	if c, prop, ok := p.lookupTrait(recv, mn); ok {
		switch {
		case prop.Kind == meta.PropertySlot || prop.Kind == meta.PropertyConstSlot:
			p.rewrite(i, abc.Instruction{Op: abc.OpGetSlot, Index: prop.Slot})
			p.pushSlot(c, prop.Slot)
			return
		case prop.HasGetter():
			p.rewrite(i, abc.Instruction{Op: abc.OpCallMethod, Index: prop.Get})
		}
	}
	p.pushAny()
}

// setProperty handles setproperty and initproperty. Only initproperty may
// write a const slot.
func (p *pass) setProperty(i int, in *abc.Instruction) {
	val := p.stack.PopOrAny()
	mn := p.multiname(in.Index)
	p.stack.PopForMultiname(mn)
	recv := p.stack.PopOrAny()

	c, prop, ok := p.lookupTrait(recv, mn)
	if !ok {
		return
	}
	switch {
	case prop.Kind == meta.PropertySlot,
		prop.Kind == meta.PropertyConstSlot && in.Op == abc.OpInitProperty:
		p.storeSlot(i, c, prop.Slot, val)
	case prop.HasSetter():
		p.rewrite(i, abc.Instruction{Op: abc.OpCallMethod, Index: prop.Set, ArgCount: 1, Void: true})
	}
}

func (p *pass) callProperty(i int, in *abc.Instruction) {
	p.stack.PopN(in.ArgCount)
	mn := p.multiname(in.Index)
	p.stack.PopForMultiname(mn)
	recv := p.stack.PopOrAny()

	void := in.Op == abc.OpCallPropVoid
	if _, prop, ok := p.lookupTrait(recv, mn); ok && prop.Kind == meta.PropertyMethod {
		p.rewrite(i, abc.Instruction{Op: abc.OpCallMethod, Index: prop.Disp, ArgCount: in.ArgCount, Void: void})
	}
	if !void {
		p.pushAny()
	}
}

// findProperty resolves a findpropstrict or findproperty statically. Under
// simple scoping the receiver is checked first, then the captured outer
// scopes, then the script that defines the name. The receiver is the
// innermost entry of the scope chain, so it shadows the outer scopes.
func (p *pass) findProperty(i int, in *abc.Instruction) {
	mn := p.multiname(in.Index)
	p.stack.PopForMultiname(mn)

	if mn == nil || mn.HasLazyComponent() || !p.simple {
		p.pushAny()
		return
	}

	if !p.scopes.IsEmpty() {
		if p.receiver == nil {
			// The receiver might define the name.
			p.pushAny()
			return
		}
		if _, ok := p.classes.LookupTrait(p.receiver, mn); ok {
			p.rewrite(i, abc.Instruction{Op: abc.OpGetScopeObject, Index: 0})
			p.push(p.receiver)
			return
		}
	}

	switch binding := p.scopes.Lookup(mn); binding.Kind {
	case meta.BindingOuter:
		p.rewrite(i, abc.Instruction{Op: abc.OpGetOuterScope, Index: binding.Depth})
		p.push(binding.Class)
		return
	case meta.BindingDynamic:
		p.pushAny()
		return
	}

	if s, ok := p.scopes.DefiningScript(mn); ok {
		p.rewrite(i, abc.Instruction{Op: abc.OpGetScriptGlobals, Index: s.Index})
		p.push(s.Globals)
		return
	}
	p.pushAny()
}
