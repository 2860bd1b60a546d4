package verify

import "fmt"

// Kind classifies a verification failure.
//
// Kind implements error so callers can test for a failure class with
// errors.Is(err, verify.ScopeOverflow).
type Kind int

const (
	IllegalOpcode Kind = iota + 1
	ZeroLengthCode
	CodeFallsOffEnd
	BranchTargetMisaligned
	RegisterOutOfRange
	ScopeOverflow
	ScopeUnderflow
	UnbalancedScopeDepth
	ScopeIndexOutOfBounds
	EarlyBindingDisallowed
	DispIDZero
	InvalidExceptionRange
	ConstantOutOfRange
)

type kindInfo struct {
	name string
	code int
}

var kinds = map[Kind]kindInfo{
	IllegalOpcode:          {"IllegalOpcode", 1011},
	ZeroLengthCode:         {"ZeroLengthCode", 1043},
	CodeFallsOffEnd:        {"CodeFallsOffEnd", 1020},
	BranchTargetMisaligned: {"BranchTargetMisaligned", 1021},
	RegisterOutOfRange:     {"RegisterOutOfRange", 1025},
	ScopeOverflow:          {"ScopeOverflow", 1017},
	ScopeUnderflow:         {"ScopeUnderflow", 1018},
	UnbalancedScopeDepth:   {"UnbalancedScopeDepth", 1031},
	ScopeIndexOutOfBounds:  {"ScopeIndexOutOfBounds", 1019},
	EarlyBindingDisallowed: {"EarlyBindingDisallowed", 1051},
	DispIDZero:             {"DispIDZero", 1072},
	InvalidExceptionRange:  {"InvalidExceptionRange", 1054},
	ConstantOutOfRange:     {"ConstantOutOfRange", 1032},
}

// Code returns the VerifyError number reported for the kind.
func (k Kind) Code() int {
	return kinds[k].code
}

// String returns the kind's name.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) Error() string {
	return k.String()
}

// Error is a structured verification failure.
type Error struct {
	Kind    Kind
	Code    int
	Message string

	// Method names the method body that failed, when known.
	Method string
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Code:    kind.Code(),
		Message: fmt.Sprintf(format, args...),
	}
}

// Error renders the failure the way the VM surfaces it.
func (e *Error) Error() string {
	return fmt.Sprintf("VerifyError: Error #%d: %s", e.Code, e.Message)
}

// Is matches a Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func errIllegalOpcode(op byte, offset int) *Error {
	return newError(IllegalOpcode, "Method contained illegal opcode 0x%02x at offset %d.", op, offset)
}

func errZeroLengthCode() *Error {
	return newError(ZeroLengthCode, "Invalid code_length=0.")
}

func errFallsOffEnd() *Error {
	return newError(CodeFallsOffEnd, "Code cannot fall off the end of a method.")
}

func errMisaligned() *Error {
	return newError(BranchTargetMisaligned, "At least one branch target was not on a valid instruction in the method.")
}

func errRegister(reg uint32) *Error {
	return newError(RegisterOutOfRange, "An invalid register %d was accessed.", reg)
}

func errScopeOverflow() *Error {
	return newError(ScopeOverflow, "Scope stack overflow occurred.")
}

func errScopeUnderflow() *Error {
	return newError(ScopeUnderflow, "Scope stack underflow occurred.")
}

func errUnbalanced(depth, initial uint32) *Error {
	return newError(UnbalancedScopeDepth, "Scope depth unbalanced. %d != %d.", depth, initial)
}

func errScopeIndex(index uint32) *Error {
	return newError(ScopeIndexOutOfBounds, "Getscopeobject %d is out of bounds.", index)
}

func errEarlyBinding(disp uint32) *Error {
	if disp == 0 {
		return newError(DispIDZero, "Disp_id 0 is illegal.")
	}
	return newError(EarlyBindingDisallowed, "Illegal early binding access.")
}

func errExceptionRange() *Error {
	return newError(InvalidExceptionRange, "Illegal range or target offsets in exception handler.")
}

func errConstant(offset int) *Error {
	return newError(ConstantOutOfRange, "Cpool index out of range at offset %d.", offset)
}
