package abc

// ConstantPool holds the constants an ABC file shares between its method
// bodies. Index 0 of every table is reserved and never refers to a value;
// for Multinames it stands for the any-name "*".
type ConstantPool struct {
	Ints       []int32
	Uints      []uint32
	Doubles    []float64
	Strings    []string
	Multinames []*Multiname
}

// NewConstantPool returns a pool with the reserved zero entries in place.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		Ints:       []int32{0},
		Uints:      []uint32{0},
		Doubles:    []float64{0},
		Strings:    []string{""},
		Multinames: []*Multiname{nil},
	}
}

// AddInt appends v to the int table and returns its index.
func (p *ConstantPool) AddInt(v int32) uint32 {
	for i := 1; i < len(p.Ints); i++ {
		if p.Ints[i] == v {
			return uint32(i)
		}
	}
	p.Ints = append(p.Ints, v)
	return uint32(len(p.Ints) - 1)
}

// AddUint appends v to the uint table and returns its index.
func (p *ConstantPool) AddUint(v uint32) uint32 {
	for i := 1; i < len(p.Uints); i++ {
		if p.Uints[i] == v {
			return uint32(i)
		}
	}
	p.Uints = append(p.Uints, v)
	return uint32(len(p.Uints) - 1)
}

// AddDouble appends v to the double table and returns its index.
func (p *ConstantPool) AddDouble(v float64) uint32 {
	p.Doubles = append(p.Doubles, v)
	return uint32(len(p.Doubles) - 1)
}

// AddString interns s and returns its index.
func (p *ConstantPool) AddString(s string) uint32 {
	for i := 1; i < len(p.Strings); i++ {
		if p.Strings[i] == s {
			return uint32(i)
		}
	}
	p.Strings = append(p.Strings, s)
	return uint32(len(p.Strings) - 1)
}

// AddMultiname appends m and returns its index.
func (p *ConstantPool) AddMultiname(m *Multiname) uint32 {
	p.Multinames = append(p.Multinames, m)
	return uint32(len(p.Multinames) - 1)
}

// Int returns the int constant at index.
func (p *ConstantPool) Int(index uint32) (int32, bool) {
	if p == nil || index == 0 || int(index) >= len(p.Ints) {
		return 0, false
	}
	return p.Ints[index], true
}

// Uint returns the uint constant at index.
func (p *ConstantPool) Uint(index uint32) (uint32, bool) {
	if p == nil || index == 0 || int(index) >= len(p.Uints) {
		return 0, false
	}
	return p.Uints[index], true
}

// Double returns the double constant at index.
func (p *ConstantPool) Double(index uint32) (float64, bool) {
	if p == nil || index == 0 || int(index) >= len(p.Doubles) {
		return 0, false
	}
	return p.Doubles[index], true
}

// StringAt returns the string constant at index.
func (p *ConstantPool) StringAt(index uint32) (string, bool) {
	if p == nil || index == 0 || int(index) >= len(p.Strings) {
		return "", false
	}
	return p.Strings[index], true
}

// Multiname returns the multiname at index. Index 0 and out-of-range indices
// return false.
func (p *ConstantPool) Multiname(index uint32) (*Multiname, bool) {
	if p == nil || index == 0 || int(index) >= len(p.Multinames) {
		return nil, false
	}
	m := p.Multinames[index]
	return m, m != nil
}
