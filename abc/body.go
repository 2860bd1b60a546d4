package abc

// Exception is one entry of a method body's exception table.
//
// From, To and Target are byte offsets into Code as read from the file. The
// verifier produces a copy in which they are instruction indices; To may then
// equal the instruction count.
type Exception struct {
	From    uint32
	To      uint32
	Target  uint32
	Type    uint32 // multiname index of the caught type, 0 for any
	VarName uint32 // multiname index of the catch variable
}

// MethodBody is the undecoded body of one method.
type MethodBody struct {
	// Name identifies the method in logs and diagnostics.
	Name string

	MaxStack       uint32
	NumLocals      uint32
	InitScopeDepth uint32
	MaxScopeDepth  uint32

	Code       []byte
	Exceptions []Exception
	Pool       *ConstantPool
}

// ScopeCapacity returns the number of scope entries the body may push on top
// of its initial scope depth.
func (b *MethodBody) ScopeCapacity() uint32 {
	if b.MaxScopeDepth < b.InitScopeDepth {
		return 0
	}
	return b.MaxScopeDepth - b.InitScopeDepth
}
