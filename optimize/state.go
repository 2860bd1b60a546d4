package optimize

import "github.com/chazu/avmprep/abc"

// Locals is the abstract state of a method's local registers. Register 0
// holds the receiver.
type Locals []OptValue

// NewLocals creates n registers about which nothing is known.
func NewLocals(n int) Locals {
	return make(Locals, n)
}

// At returns the value in register i. Out-of-range registers are unknown.
func (l Locals) At(i uint32) OptValue {
	if int(i) >= len(l) {
		return Any()
	}
	return l[i]
}

// Set stores v in register i.
func (l Locals) Set(i uint32, v OptValue) {
	if int(i) < len(l) {
		l[i] = v
	}
}

// SetAny forgets what is known about register i.
func (l Locals) SetAny(i uint32) {
	l.Set(i, Any())
}

// Clone returns an independent copy.
func (l Locals) Clone() Locals {
	return append(Locals(nil), l...)
}

// merge joins l with the state recorded at a predecessor, register by
// register.
func (l Locals) merge(other Locals) Locals {
	merged := make(Locals, len(l))
	for i := range l {
		if i < len(other) {
			merged[i] = join(l[i], other[i])
		}
	}
	return merged
}

// Stack is an abstract operand or scope stack. Popping an empty stack yields
// an unknown value: the optimizer does not track stacks across blocks.
type Stack struct {
	values []OptValue
}

// Push pushes v.
func (s *Stack) Push(v OptValue) {
	s.values = append(s.values, v)
}

// Pop removes the top value, reporting whether there was one.
func (s *Stack) Pop() (OptValue, bool) {
	if len(s.values) == 0 {
		return Any(), false
	}
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, true
}

// PopOrAny removes the top value, or returns Any when the stack is empty.
func (s *Stack) PopOrAny() OptValue {
	v, _ := s.Pop()
	return v
}

// PopN discards n values.
func (s *Stack) PopN(n uint32) {
	for ; n > 0; n-- {
		s.Pop()
	}
}

// PopForMultiname discards the runtime name and namespace operands a lazy
// multiname takes from the stack.
func (s *Stack) PopForMultiname(mn *abc.Multiname) {
	if mn == nil {
		return
	}
	if mn.HasLazyName() {
		s.Pop()
	}
	if mn.HasLazyNS() {
		s.Pop()
	}
}

// At returns the value at index i counted from the bottom.
func (s *Stack) At(i int) (OptValue, bool) {
	if i < 0 || i >= len(s.values) {
		return Any(), false
	}
	return s.values[i], true
}

// Len returns the stack depth.
func (s *Stack) Len() int {
	return len(s.values)
}

// Clear empties the stack.
func (s *Stack) Clear() {
	s.values = s.values[:0]
}
