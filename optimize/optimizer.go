// Package optimize specializes verified AVM2 method bodies.
//
// The optimizer runs one forward abstract interpretation over the operand
// stack, scope stack and local registers of a method, tracking what class
// each value is known to have. With that knowledge it rewrites instructions
// in place: coercions that cannot change their operand become nop, named
// property accesses on receivers of a known class become slot accesses or
// calls through a fixed dispatch id, and scope lookups become fixed-depth
// scope reads. The instruction count never changes, so the index-relative
// branch offsets the verifier produced stay valid.
//
// The pass is best effort. Anything it cannot prove is left in its generic
// form, and it never fails.
package optimize

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/meta"
	"github.com/chazu/avmprep/verify"
)

var log = commonlog.GetLogger("avmprep.optimize")

// Values outside this range are stored as Number by the VM, so pushint and
// pushuint only guarantee an integer inside it.
const (
	intAtomMin = -(1 << 28)
	intAtomMax = 1 << 28
)

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSimpleScoping enables or disables the scope-based name resolution
// rewrites. They are enabled by default.
func WithSimpleScoping(enabled bool) Option {
	return func(o *Optimizer) {
		o.simpleScoping = enabled
	}
}

// Optimizer rewrites verified methods. It keeps no per-method state and is
// safe for concurrent use as long as its resolvers are.
type Optimizer struct {
	classes       ClassResolver
	scopes        ScopeResolver
	simpleScoping bool
}

// New creates an optimizer. scopes is the default outer scope for methods
// whose Input does not carry one; it may be nil.
func New(classes ClassResolver, scopes ScopeResolver, opts ...Option) *Optimizer {
	if scopes == nil {
		scopes = emptyScope{}
	}
	o := &Optimizer{
		classes:       classes,
		scopes:        scopes,
		simpleScoping: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Input is a verified method together with its resolved signature.
type Input struct {
	Method *verify.Method

	// Receiver is the class of register 0, nil when unknown.
	Receiver *meta.Class
	// Params are the declared parameter classes in order; nil entries are
	// untyped.
	Params []*meta.Class
	// ReturnType is the declared return class; nil means "*".
	ReturnType *meta.Class

	// Scopes overrides the optimizer's outer scope for this method.
	Scopes ScopeResolver
}

// SlotKey identifies one slot of one class.
type SlotKey struct {
	Class *meta.Class
	Slot  uint32
}

// Result is the optimized code of one method.
type Result struct {
	Code          []abc.Instruction
	Rewrites      int
	SimpleScoping bool

	// SlotTypes records the slot types resolved during the pass. A nil
	// class is an untyped slot.
	SlotTypes map[SlotKey]*meta.Class
}

// Optimize rewrites a copy of the method's code. The verified method is not
// modified.
func (o *Optimizer) Optimize(in Input) *Result {
	m := in.Method
	code := make([]abc.Instruction, len(m.Code))
	for i := range m.Code {
		code[i] = m.Code[i].Clone()
	}

	scopes := in.Scopes
	if scopes == nil {
		scopes = o.scopes
	}

	p := &pass{
		classes:    o.classes,
		builtins:   o.classes.Builtins(),
		scopes:     scopes,
		pool:       m.Pool(),
		code:       code,
		receiver:   in.Receiver,
		returnType: in.ReturnType,
		simple:     o.simpleScoping && hasSimpleScoping(m),
		states:     make(map[int]Locals),
		slotCache:  make(map[SlotKey]slotEntry),
	}
	p.initial = initialLocals(m, in.Receiver, in.Params)
	p.run(m.JumpTargets)

	result := &Result{
		Code:          code,
		Rewrites:      p.rewrites,
		SimpleScoping: p.simple,
		SlotTypes:     make(map[SlotKey]*meta.Class),
	}
	for k, e := range p.slotCache {
		if e.ok {
			result.SlotTypes[k] = e.class
		}
	}
	log.Debugf("%s: %d rewrites (simple scoping %t)", m.Body.Name, p.rewrites, p.simple)
	return result
}

// initialLocals seeds register 0 with the receiver and the parameter
// registers with their declared classes. A register that any instruction
// mutates is never seeded: the linear pass cannot see every path that
// writes it.
func initialLocals(m *verify.Method, receiver *meta.Class, params []*meta.Class) Locals {
	locals := NewLocals(int(m.Body.NumLocals))
	if receiver != nil {
		locals.Set(0, OfType(receiver))
	}
	for i, c := range params {
		if c != nil {
			locals.Set(uint32(i+1), OfType(c))
		}
	}
	for i := range m.Code {
		for _, reg := range m.Code[i].MutatedRegisters() {
			locals.SetAny(reg)
		}
	}
	return locals
}

// hasSimpleScoping reports whether the method pushes its receiver as the only
// scope, first thing, and never touches the scope stack again. Only then is
// scope index 0 known to be the receiver everywhere in the body.
func hasSimpleScoping(m *verify.Method) bool {
	code := m.Code
	if len(code) < 2 || len(m.Exceptions) > 0 {
		return false
	}
	if m.JumpTargets.IsTarget(0) || m.JumpTargets.IsTarget(1) {
		return false
	}
	if code[0].Op != abc.OpGetLocal || code[0].Index != 0 || code[1].Op != abc.OpPushScope {
		return false
	}
	for i := 2; i < len(code); i++ {
		switch code[i].Op {
		case abc.OpPushScope, abc.OpPushWith, abc.OpPopScope:
			return false
		}
	}
	return true
}

type slotEntry struct {
	class *meta.Class
	ok    bool
}

// pass is the working state of one Optimize call.
type pass struct {
	classes  ClassResolver
	builtins *meta.Builtins
	scopes   ScopeResolver
	pool     *abc.ConstantPool
	code     []abc.Instruction

	receiver   *meta.Class
	returnType *meta.Class
	simple     bool

	initial    Locals
	locals     Locals
	stack      Stack
	scopeStack Stack
	// scopeExact is false once the abstract scope stack has been cleared at
	// a join, after which its indices no longer match the real stack.
	scopeExact bool
	terminated bool

	// states holds the locals recorded when leaving each branch.
	states    map[int]Locals
	slotCache map[SlotKey]slotEntry
	rewrites  int
}

func (p *pass) run(targets verify.JumpTargets) {
	p.locals = p.initial.Clone()
	p.scopeExact = true

	for i := range p.code {
		if sources, ok := targets[i]; ok {
			p.locals = p.enter(sources)
			p.stack.Clear()
			p.scopeStack.Clear()
			p.scopeExact = false
		}
		p.terminated = false
		p.step(i, &p.code[i])
	}
}

// enter computes the locals at a jump target. Only a target with exactly
// one known source whose state has already been recorded keeps any
// knowledge; everything else, loop headers included, starts over from the
// seeded state.
func (p *pass) enter(sources *verify.JumpSources) Locals {
	if sources.Unknown || len(sources.Known) != 1 {
		return p.initial.Clone()
	}
	state, ok := p.states[sources.Known[0]]
	if !ok {
		return p.initial.Clone()
	}
	if p.terminated {
		// Control cannot fall into the target, the branch is its only entry.
		return state.Clone()
	}
	return p.locals.merge(state)
}

func (p *pass) rewrite(i int, in abc.Instruction) {
	p.code[i] = in
	p.rewrites++
}

// elide turns the coercion at i into a nop. The operand is left as it was.
func (p *pass) elide(i int, v OptValue) {
	p.rewrite(i, abc.Instruction{Op: abc.OpNop})
	p.stack.Push(v)
}

// endBlock models a terminal instruction.
func (p *pass) endBlock() {
	p.stack.Clear()
	p.scopeStack.Clear()
	p.locals = p.initial.Clone()
	p.terminated = true
}

func (p *pass) push(c *meta.Class) {
	p.stack.Push(OfType(c))
}

func (p *pass) pushAny() {
	p.stack.Push(Any())
}

func (p *pass) pushInt(v int64) {
	val := OfType(p.builtins.Int)
	if v >= intAtomMin && v < intAtomMax {
		val.ValidInt = true
		val.ValidUint = v >= 0
	}
	p.stack.Push(val)
}

func (p *pass) multiname(index uint32) *abc.Multiname {
	mn, ok := p.pool.Multiname(index)
	if !ok {
		return nil
	}
	return mn
}

// specializable returns the class a member access on v can be bound
// against, or nil.
func (p *pass) specializable(v OptValue, mn *abc.Multiname) *meta.Class {
	if mn == nil || mn.HasLazyComponent() {
		return nil
	}
	if v.Class == nil || v.Class.Interface {
		return nil
	}
	return v.Class
}

func (p *pass) lookupTrait(v OptValue, mn *abc.Multiname) (*meta.Class, meta.Property, bool) {
	c := p.specializable(v, mn)
	if c == nil {
		return nil, meta.Property{}, false
	}
	prop, ok := p.classes.LookupTrait(c, mn)
	return c, prop, ok
}

func (p *pass) slotType(c *meta.Class, slot uint32) (*meta.Class, bool) {
	key := SlotKey{Class: c, Slot: slot}
	if e, ok := p.slotCache[key]; ok {
		return e.class, e.ok
	}
	t, ok := p.classes.SlotType(c, slot)
	p.slotCache[key] = slotEntry{class: t, ok: ok}
	return t, ok
}

// pushSlot pushes the declared type of slot on class c.
func (p *pass) pushSlot(c *meta.Class, slot uint32) {
	if c == nil || c.Interface {
		p.pushAny()
		return
	}
	t, _ := p.slotType(c, slot)
	p.push(t)
}

// storeSlot rewrites a property write at i into a slot write, skipping the
// coercion when the stored value already has the slot's type.
func (p *pass) storeSlot(i int, c *meta.Class, slot uint32, val OptValue) {
	op := abc.OpSetSlot
	if t, ok := p.slotType(c, slot); ok {
		switch {
		case t == nil:
			op = abc.OpSetSlotNoCoerce
		case val.Class == t:
			op = abc.OpSetSlotNoCoerce
		case val.Null && !p.builtins.IsPrimitive(t):
			op = abc.OpSetSlotNoCoerce
		}
	}
	p.rewrite(i, abc.Instruction{Op: op, Index: slot})
}

func (p *pass) resolveType(index uint32) (*meta.Class, bool) {
	mn := p.multiname(index)
	if mn == nil {
		return nil, false
	}
	return p.classes.ResolveType(mn)
}

// scopeValue returns what is known about the local scope entry at index.
// Under simple scoping entry 0 is always the receiver.
func (p *pass) scopeValue(index uint32) OptValue {
	if p.simple && index == 0 {
		return OfType(p.receiver)
	}
	if p.scopeExact {
		if v, ok := p.scopeStack.At(int(index)); ok {
			return v
		}
	}
	return Any()
}
