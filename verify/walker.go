package verify

import (
	"github.com/chazu/avmprep/abc"
)

// ---------------------------------------------------------------------------
// Block walker
// ---------------------------------------------------------------------------

// unbounded marks a block walk that runs until a terminal instruction.
const unbounded = -1

// blockKey identifies a walked block. Each distinct (start, end) pair is
// verified once, whatever the entry scope depth.
type blockKey struct {
	start, end int
}

type resumeKind uint8

const (
	resumeNone resumeKind = iota
	// resumeBranch continues a block after the bounded walk of a
	// conditional branch's skipped region.
	resumeBranch
	// resumeSwitch walks the next lookupswitch target.
	resumeSwitch
)

// frame is one block walk in progress. The frame stack replaces recursion so
// adversarial nesting cannot exhaust the goroutine stack, while visiting
// blocks and reporting errors in depth-first order.
type frame struct {
	start, end int
	depth      uint32
	initial    uint32
	topLevel   bool
	i          int

	resume resumeKind
	target int // resumeBranch: the instruction before the branch target
	next   int // resumeSwitch: 0 for the default target, n+1 for case n
}

type walker struct {
	body     *abc.MethodBody
	dec      *abc.Decoded
	code     []abc.Instruction
	maxScope uint32

	visited map[blockKey]struct{}
	reached []bool
	stack   []*frame
}

func newWalker(body *abc.MethodBody, dec *abc.Decoded) *walker {
	return &walker{
		body:     body,
		dec:      dec,
		code:     dec.Code,
		maxScope: body.ScopeCapacity(),
		visited:  make(map[blockKey]struct{}),
		reached:  make([]bool, len(dec.Code)),
	}
}

// branchTarget resolves the index targeted by the branch at i. Branch
// offsets are relative to the following instruction.
func (w *walker) branchTarget(i int) (int, error) {
	off := w.dec.Offsets[i+1] + int(w.code[i].Offset)
	idx, ok := w.dec.IndexOf(off)
	if !ok {
		return 0, errMisaligned()
	}
	return idx, nil
}

// switchTarget resolves target n of the lookupswitch at i: 0 is the default,
// n+1 is case n. Switch offsets are relative to the switch itself.
func (w *walker) switchTarget(i, n int) (int, error) {
	in := &w.code[i]
	rel := in.Offset
	if n > 0 {
		rel = in.Cases[n-1]
	}
	idx, ok := w.dec.IndexOf(w.dec.Offsets[i] + int(rel))
	if !ok {
		return 0, errMisaligned()
	}
	return idx, nil
}

// push starts a block walk unless the block was already verified.
func (w *walker) push(start, end int, depth uint32, topLevel bool) {
	key := blockKey{start, end}
	if _, ok := w.visited[key]; ok {
		return
	}
	w.visited[key] = struct{}{}
	w.stack = append(w.stack, &frame{
		start:    start,
		end:      end,
		depth:    depth,
		initial:  depth,
		topLevel: topLevel,
		i:        start,
	})
}

func (w *walker) pop() {
	w.stack = w.stack[:len(w.stack)-1]
}

// walk verifies the block starting at start and everything reachable from
// it.
func (w *walker) walk(start, end int, depth uint32, topLevel bool) error {
	w.push(start, end, depth, topLevel)
	for len(w.stack) > 0 {
		if err := w.step(w.stack[len(w.stack)-1]); err != nil {
			w.stack = w.stack[:0]
			return err
		}
	}
	return nil
}

// step advances the top frame until it finishes or starts a nested walk.
func (w *walker) step(f *frame) error {
	switch f.resume {
	case resumeBranch:
		f.resume = resumeNone
		if f.target > f.i {
			f.i = f.target
		}
		if w.blockEnds(f) {
			return w.finish(f)
		}
		f.i++

	case resumeSwitch:
		in := &w.code[f.i]
		if f.next > len(in.Cases) {
			w.pop()
			return nil
		}
		target, err := w.switchTarget(f.i, f.next)
		if err != nil {
			return err
		}
		f.next++
		w.push(target, unbounded, f.depth, false)
		return nil
	}

	for f.i < len(w.code) {
		i := f.i
		in := &w.code[i]
		w.reached[i] = true

		switch {
		case in.Op.IsBranch():
			target, err := w.branchTarget(i)
			if err != nil {
				return err
			}
			opIdx := target - 1
			if opIdx != i {
				start, end := i+1, opIdx
				backward := start > end
				if backward {
					// The loop body precedes the branch.
					start, end = opIdx+1, i
				}
				if in.Op == abc.OpJump {
					// Terminal: the walk continues after the skipped region.
					// A backward jump also walks its target, which may only
					// be reachable through this jump.
					depth := f.depth
					w.pop()
					if backward {
						w.push(target, unbounded, depth, false)
					}
					if !backward || end+1 < len(w.code) {
						w.push(end+1, unbounded, depth, false)
					}
					return nil
				}
				if !backward {
					// The target is walked on its own too: an enclosing
					// bounded walk may end, or hit a terminal, before it
					// resumes there.
					w.push(target, unbounded, f.depth, false)
				}
				f.resume = resumeBranch
				f.target = opIdx
				w.push(start, end, f.depth, false)
				return nil
			}

		case in.Op == abc.OpLookupSwitch:
			f.resume = resumeSwitch
			f.next = 0
			return nil

		case in.Op == abc.OpThrow, in.Op == abc.OpReturnValue, in.Op == abc.OpReturnVoid:
			w.pop()
			return nil

		default:
			if err := w.check(f, in); err != nil {
				return err
			}
		}

		if w.blockEnds(f) {
			return w.finish(f)
		}
		f.i++
	}

	return errFallsOffEnd()
}

// blockEnds reports whether a bounded walk has reached its last instruction.
func (w *walker) blockEnds(f *frame) bool {
	return f.end != unbounded && f.i >= f.end
}

// finish closes a bounded walk, enforcing scope balance.
func (w *walker) finish(f *frame) error {
	if !f.topLevel && f.depth != f.initial {
		return errUnbalanced(f.depth, f.initial)
	}
	w.pop()
	return nil
}

// check applies the static per-instruction rules.
func (w *walker) check(f *frame, in *abc.Instruction) error {
	switch in.Op {
	case abc.OpGetLocal, abc.OpSetLocal, abc.OpKill, abc.OpDecLocal, abc.OpDecLocalI,
		abc.OpIncLocal, abc.OpIncLocalI, abc.OpHasNext2, abc.OpDebug:
		for _, reg := range in.Registers() {
			if reg >= w.body.NumLocals {
				return errRegister(reg)
			}
		}

	case abc.OpPushWith, abc.OpPushScope:
		f.depth++
		if f.depth > w.maxScope {
			return errScopeOverflow()
		}

	case abc.OpPopScope:
		if f.depth == 0 {
			return errScopeUnderflow()
		}
		f.depth--

	case abc.OpGetScopeObject:
		if in.Index+1 > f.depth {
			return errScopeIndex(in.Index)
		}

	case abc.OpCallMethod:
		return errEarlyBinding(in.Index)
	}
	return nil
}
