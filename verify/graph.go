package verify

import (
	"fmt"
	"io"
	"sort"

	"github.com/chazu/avmprep/abc"
)

// ---------------------------------------------------------------------------
// Jump targets
// ---------------------------------------------------------------------------

// JumpSources lists the positions that transfer control to a jump target.
// Exception handler targets are entered from anywhere in their range and are
// marked Unknown.
type JumpSources struct {
	Unknown bool
	Known   []int
}

// JumpTargets maps a target instruction index to its sources.
type JumpTargets map[int]*JumpSources

func (jt JumpTargets) addKnown(target, source int) {
	s := jt[target]
	if s == nil {
		s = &JumpSources{}
		jt[target] = s
	}
	for _, k := range s.Known {
		if k == source {
			return
		}
	}
	s.Known = append(s.Known, source)
}

func (jt JumpTargets) addUnknown(target int) {
	s := jt[target]
	if s == nil {
		s = &JumpSources{}
		jt[target] = s
	}
	s.Unknown = true
}

// IsTarget reports whether index is the target of any jump or handler.
func (jt JumpTargets) IsTarget(index int) bool {
	_, ok := jt[index]
	return ok
}

// Targets returns the index-space targets of the branch or switch at i in
// verified code.
func Targets(code []abc.Instruction, i int) []int {
	in := &code[i]
	switch {
	case in.Op.IsBranch():
		return []int{i + 1 + int(in.Offset)}
	case in.Op == abc.OpLookupSwitch:
		targets := make([]int, 0, len(in.Cases)+1)
		targets = append(targets, i+1+int(in.Offset))
		for _, c := range in.Cases {
			targets = append(targets, i+1+int(c))
		}
		return targets
	}
	return nil
}

func buildJumpTargets(code []abc.Instruction, exceptions []abc.Exception) JumpTargets {
	jt := make(JumpTargets)
	// Unreached branches count as sources too, so a target never looks
	// like it has fewer predecessors than it does.
	for i := range code {
		for _, t := range Targets(code, i) {
			jt.addKnown(t, i)
		}
	}
	for _, e := range exceptions {
		jt.addUnknown(int(e.Target))
	}
	return jt
}

// ---------------------------------------------------------------------------
// Basic-block graph
// ---------------------------------------------------------------------------

// EdgeKind labels a control-flow edge.
type EdgeKind uint8

const (
	EdgeFallthrough EdgeKind = iota
	EdgeBranch
	EdgeSwitch
	EdgeHandler
)

var edgeKindNames = [...]string{"fallthrough", "branch", "switch", "handler"}

func (k EdgeKind) String() string {
	if int(k) < len(edgeKindNames) {
		return edgeKindNames[k]
	}
	return "unknown"
}

// Edge connects two blocks.
type Edge struct {
	To   int
	Kind EdgeKind
}

// Block is a maximal straight-line run of instructions [Start, End).
type Block struct {
	Start, End int
	Reachable  bool
	Succs      []Edge
}

// Graph is the basic-block graph of a verified method.
type Graph struct {
	Blocks []*Block
	// blockOf maps an instruction index to its block index.
	blockOf []int
}

// Index returns the block index containing instruction i, or -1.
func (g *Graph) Index(i int) int {
	if i < 0 || i >= len(g.blockOf) {
		return -1
	}
	return g.blockOf[i]
}

func buildGraph(code []abc.Instruction, reached []bool, exceptions []abc.Exception) *Graph {
	n := len(code)
	leaders := map[int]bool{0: true}
	for i := range code {
		op := code[i].Op
		if op.IsBranch() || op.IsTerminal() {
			if i+1 < n {
				leaders[i+1] = true
			}
			for _, t := range Targets(code, i) {
				if t >= 0 && t < n {
					leaders[t] = true
				}
			}
		}
	}
	for _, e := range exceptions {
		for _, off := range []uint32{e.From, e.To, e.Target} {
			if int(off) < n {
				leaders[int(off)] = true
			}
		}
	}

	starts := make([]int, 0, len(leaders))
	for l := range leaders {
		starts = append(starts, l)
	}
	sort.Ints(starts)

	g := &Graph{blockOf: make([]int, n)}
	for bi, start := range starts {
		end := n
		if bi+1 < len(starts) {
			end = starts[bi+1]
		}
		b := &Block{Start: start, End: end}
		for i := start; i < end; i++ {
			g.blockOf[i] = bi
			if reached[i] {
				b.Reachable = true
			}
		}
		g.Blocks = append(g.Blocks, b)
	}

	for _, b := range g.Blocks {
		last := b.End - 1
		op := code[last].Op
		switch {
		case op == abc.OpLookupSwitch:
			for _, t := range Targets(code, last) {
				g.addEdge(b, t, EdgeSwitch)
			}
		case op.IsBranch():
			g.addEdge(b, Targets(code, last)[0], EdgeBranch)
		}
		if !op.IsTerminal() && b.End < n {
			g.addEdge(b, b.End, EdgeFallthrough)
		}
	}

	for _, e := range exceptions {
		for _, b := range g.Blocks {
			if b.Start < int(e.To) && b.End > int(e.From) {
				g.addEdge(b, int(e.Target), EdgeHandler)
			}
		}
	}
	return g
}

func (g *Graph) addEdge(from *Block, target int, kind EdgeKind) {
	to := g.Index(target)
	if to < 0 {
		return
	}
	for _, e := range from.Succs {
		if e.To == to && e.Kind == kind {
			return
		}
	}
	from.Succs = append(from.Succs, Edge{To: to, Kind: kind})
}

// Format writes a text rendering of the graph, one block per line.
func (g *Graph) Format(w io.Writer) error {
	for bi, b := range g.Blocks {
		mark := ""
		if !b.Reachable {
			mark = " unreachable"
		}
		if _, err := fmt.Fprintf(w, "B%d [%04d-%04d)%s", bi, b.Start, b.End, mark); err != nil {
			return err
		}
		for i, e := range b.Succs {
			sep := " ->"
			if i > 0 {
				sep = ","
			}
			if _, err := fmt.Fprintf(w, "%s B%d(%s)", sep, e.To, e.Kind); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
