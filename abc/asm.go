package abc

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Text assembler
// ---------------------------------------------------------------------------

// AsmError reports a problem in assembly source.
type AsmError struct {
	Line int
	Msg  string
}

func (e *AsmError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Assemble appends the instructions described by src to b.
//
// Each line holds a label ("name:"), an instruction, or both. Text after
// ';' is a comment. Operands depend on the opcode:
//
//	getlocal 1              registers and other integers
//	getproperty x           multinames, see ParseMultiname
//	callproperty push 1     multiname and argument count
//	pushstring "text"       quoted strings
//	iflt loop               labels for branches
//	lookupswitch def a b    default label, then one label per case
//
// getlocal0..3 and setlocal0..3 are accepted as aliases. The byte offset of
// every label is returned.
func Assemble(b *Builder, src string) (map[string]int, error) {
	a := &assembler{b: b, labels: make(map[string]*Label)}
	for n, line := range strings.Split(src, "\n") {
		if err := a.line(line); err != nil {
			return nil, &AsmError{Line: n + 1, Msg: err.Error()}
		}
	}
	offsets := make(map[string]int, len(a.labels))
	for name, l := range a.labels {
		if !l.resolved {
			return nil, &AsmError{Line: a.refLine[name], Msg: fmt.Sprintf("undefined label %q", name)}
		}
		offsets[name] = l.position
	}
	return offsets, nil
}

type assembler struct {
	b       *Builder
	labels  map[string]*Label
	refLine map[string]int
	lineNo  int
}

func (a *assembler) label(name string) *Label {
	l, ok := a.labels[name]
	if !ok {
		l = a.b.NewLabel()
		a.labels[name] = l
		if a.refLine == nil {
			a.refLine = make(map[string]int)
		}
		a.refLine[name] = a.lineNo
	}
	return l
}

func (a *assembler) line(line string) error {
	a.lineNo++
	if i := strings.IndexByte(line, ';'); i >= 0 && !strings.Contains(line[:i], `"`) {
		line = line[:i]
	}
	line = strings.TrimSpace(line)

	if i := strings.IndexByte(line, ':'); i > 0 && !strings.ContainsAny(line[:i], " \t\"") && !strings.HasPrefix(line[i:], "::") {
		l := a.label(line[:i])
		if l.resolved {
			return fmt.Errorf("label %q defined twice", line[:i])
		}
		a.b.Mark(l)
		line = strings.TrimSpace(line[i+1:])
	}
	if line == "" {
		return nil
	}

	mnemonic, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	return a.instruction(mnemonic, rest)
}

func (a *assembler) instruction(mnemonic, rest string) error {
	if len(mnemonic) == len("getlocal0") && (strings.HasPrefix(mnemonic, "getlocal") || strings.HasPrefix(mnemonic, "setlocal")) {
		reg := mnemonic[len(mnemonic)-1]
		if reg >= '0' && reg <= '3' {
			if mnemonic[0] == 'g' {
				a.b.GetLocal(uint32(reg - '0'))
			} else {
				a.b.SetLocal(uint32(reg - '0'))
			}
			return expectNone(rest)
		}
	}

	op, ok := OpcodeByName(mnemonic)
	if !ok || !op.Encodable() {
		return fmt.Errorf("unknown instruction %q", mnemonic)
	}

	if op.IsBranch() {
		name, err := single(rest)
		if err != nil {
			return err
		}
		a.b.Branch(op, a.label(name))
		return nil
	}

	switch op {
	case OpLookupSwitch:
		names := strings.Fields(rest)
		if len(names) < 2 {
			return fmt.Errorf("lookupswitch needs a default and at least one case")
		}
		cases := make([]*Label, len(names)-1)
		for i, n := range names[1:] {
			cases[i] = a.label(n)
		}
		a.b.LookupSwitch(a.label(names[0]), cases...)
		return nil

	case OpGetLocal, OpSetLocal:
		reg, err := a.u30(rest)
		if err != nil {
			return err
		}
		if op == OpGetLocal {
			a.b.GetLocal(reg)
		} else {
			a.b.SetLocal(reg)
		}
		return nil

	case OpPushByte:
		v, err := strconv.ParseInt(rest, 0, 8)
		if err != nil {
			return fmt.Errorf("pushbyte: %w", err)
		}
		a.b.PushByte(int8(v))
		return nil

	case OpPushShort:
		v, err := strconv.ParseInt(rest, 0, 16)
		if err != nil {
			return fmt.Errorf("pushshort: %w", err)
		}
		a.b.PushShort(int16(v))
		return nil

	case OpPushInt:
		v, err := strconv.ParseInt(rest, 0, 32)
		if err != nil {
			return fmt.Errorf("pushint: %w", err)
		}
		a.b.PushInt(int32(v))
		return nil

	case OpPushUint:
		v, err := strconv.ParseUint(rest, 0, 32)
		if err != nil {
			return fmt.Errorf("pushuint: %w", err)
		}
		a.b.PushUint(uint32(v))
		return nil

	case OpPushDouble:
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return fmt.Errorf("pushdouble: %w", err)
		}
		a.b.PushDouble(v)
		return nil

	case OpPushString, OpDebugFile, OpDxns:
		s, err := strconv.Unquote(rest)
		if err != nil {
			return fmt.Errorf("%s expects a quoted string", op)
		}
		a.b.EmitU30(op, a.b.Pool().AddString(s))
		return nil

	case OpDebug:
		f := strings.Fields(rest)
		if len(f) != 4 {
			return fmt.Errorf("debug expects type, name, register and extra")
		}
		var v [4]uint64
		for i := range f {
			n, err := strconv.ParseUint(f[i], 0, 32)
			if err != nil {
				return fmt.Errorf("debug: %w", err)
			}
			v[i] = n
		}
		a.b.Debug(byte(v[0]), uint32(v[1]), byte(v[2]), uint32(v[3]))
		return nil
	}

	if usesMultiname(op) {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return fmt.Errorf("%s expects a name", op)
		}
		mn, err := ParseMultiname(fields[0])
		if err != nil {
			return err
		}
		if op.Info().Operands == OperandU30U30 {
			if len(fields) != 2 {
				return fmt.Errorf("%s expects a name and an argument count", op)
			}
			argc, err := a.u30(fields[1])
			if err != nil {
				return err
			}
			a.b.EmitCall(op, mn, argc)
			return nil
		}
		if len(fields) != 1 {
			return fmt.Errorf("%s expects one name", op)
		}
		a.b.EmitName(op, mn)
		return nil
	}

	switch op.Info().Operands {
	case OperandsNone:
		a.b.Emit(op)
		return expectNone(rest)
	case OperandU8:
		v, err := strconv.ParseUint(rest, 0, 8)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		a.b.EmitU8(op, byte(v))
	case OperandU30:
		v, err := a.u30(rest)
		if err != nil {
			return err
		}
		a.b.EmitU30(op, v)
	case OperandU30U30:
		f := strings.Fields(rest)
		if len(f) != 2 {
			return fmt.Errorf("%s expects two operands", op)
		}
		first, err := a.u30(f[0])
		if err != nil {
			return err
		}
		second, err := a.u30(f[1])
		if err != nil {
			return err
		}
		a.b.EmitU30U30(op, first, second)
	default:
		return fmt.Errorf("cannot assemble %s", op)
	}
	return nil
}

func (a *assembler) u30(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 30)
	if err != nil {
		return 0, fmt.Errorf("bad operand %q", s)
	}
	return uint32(v), nil
}

func single(rest string) (string, error) {
	f := strings.Fields(rest)
	if len(f) != 1 {
		return "", fmt.Errorf("expected one operand, got %q", rest)
	}
	return f[0], nil
}

func expectNone(rest string) error {
	if rest != "" {
		return fmt.Errorf("unexpected operand %q", rest)
	}
	return nil
}

// ParseMultiname parses the textual multiname forms used by the assembler
// and fixtures:
//
//	name            public QName
//	uri::name       QName in a package namespace
//	kind:uri::name  QName in a namespace of another kind (private:, protected:, ...)
//	{a,b}::name     namespace set; an empty entry is the public namespace
//	{a,b}::?        namespace set with the name taken from the stack
//	?::name         namespace taken from the stack
//	?::?            namespace and name taken from the stack
func ParseMultiname(s string) (*Multiname, error) {
	i := strings.LastIndex(s, "::")
	if i < 0 {
		if s == "" {
			return nil, fmt.Errorf("empty name")
		}
		return NewQName(Public, s), nil
	}
	nsPart, name := s[:i], s[i+2:]
	if name == "" {
		return nil, fmt.Errorf("empty name in %q", s)
	}

	switch {
	case nsPart == "?":
		if name == "?" {
			return &Multiname{Kind: RTQNameL}, nil
		}
		return &Multiname{Kind: RTQName, Name: name}, nil

	case strings.HasPrefix(nsPart, "{") && strings.HasSuffix(nsPart, "}"):
		var set []Namespace
		for _, part := range strings.Split(nsPart[1:len(nsPart)-1], ",") {
			ns, err := parseNamespace(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			set = append(set, ns)
		}
		if name == "?" {
			return &Multiname{Kind: MultinameL, Namespaces: set}, nil
		}
		return NewMultiname(name, set...), nil
	}

	ns, err := parseNamespace(nsPart)
	if err != nil {
		return nil, err
	}
	return NewQName(ns, name), nil
}

func parseNamespace(s string) (Namespace, error) {
	kindName, uri, found := strings.Cut(s, ":")
	if !found {
		return Namespace{Kind: NamespacePackage, URI: s}, nil
	}
	kind, ok := ParseNamespaceKind(kindName)
	if !ok {
		return Namespace{}, fmt.Errorf("unknown namespace kind %q", kindName)
	}
	return Namespace{Kind: kind, URI: uri}, nil
}
