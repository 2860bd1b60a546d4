package optimize

import (
	"fmt"

	"github.com/chazu/avmprep/meta"
)

// OptValue is the optimizer's compile-time knowledge about one value.
//
// A non-nil Class means the value is a possible value of a variable typed
// with that class: primitive classes exclude null and undefined, other
// classes exclude undefined but admit null. A nil Class is the untyped "*".
type OptValue struct {
	Class *meta.Class

	// ValidInt is set when the value is guaranteed to be an integer in the
	// int range. Only meaningful for numeric classes.
	ValidInt bool
	// ValidUint is set when the value is guaranteed to be a non-negative
	// integer in the uint range. Only meaningful for numeric classes.
	ValidUint bool

	// Null is set when the value is guaranteed to be null.
	Null bool
}

// Any returns the value nothing is known about.
func Any() OptValue {
	return OptValue{}
}

// Null returns the guaranteed-null value.
func Null() OptValue {
	return OptValue{Null: true}
}

// OfType returns a value known to be of class c. A nil class gives Any.
func OfType(c *meta.Class) OptValue {
	return OptValue{Class: c}
}

// IsAny reports whether nothing is known about the value.
func (v OptValue) IsAny() bool {
	return v == OptValue{}
}

func (v OptValue) String() string {
	switch {
	case v.Null:
		return "null"
	case v.ValidInt && v.ValidUint:
		return fmt.Sprintf("%s(int,uint)", v.Class)
	case v.ValidInt:
		return fmt.Sprintf("%s(int)", v.Class)
	case v.ValidUint:
		return fmt.Sprintf("%s(uint)", v.Class)
	}
	return v.Class.String()
}

// join merges the values two predecessors leave in a register. The result
// keeps a class only when both agree on it.
func join(a, b OptValue) OptValue {
	if a == b {
		return a
	}
	if a.Class != nil && a.Class == b.Class {
		return OfType(a.Class)
	}
	return Any()
}
