package stringquery

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrMissingBinding classifies placeholders whose value the accessor cannot supply.
	ErrMissingBinding = errors.New("missing query parameter binding")
	// ErrUnconvertibleValue classifies bound values that have no textual query form.
	ErrUnconvertibleValue = errors.New("unconvertible query parameter value")
	// ErrIndexOutOfRange is returned by the supplied accessors for unknown positions.
	ErrIndexOutOfRange = errors.New("parameter index out of range")
)

// MissingBindingError reports a placeholder that could not be bound.
// Name is empty for positional placeholders; Index is -1 for undeclared named tokens.
type MissingBindingError struct {
	Index int
	Name  string
	Err   error
}

func (e *MissingBindingError) Error() string {
	var msg string
	if e.Name != "" {
		msg = fmt.Sprintf("%s: parameter %q (index %d)", ErrMissingBinding, e.Name, e.Index)
	} else {
		msg = fmt.Sprintf("%s: parameter index %d", ErrMissingBinding, e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingBindingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMissingBinding.
func (e *MissingBindingError) Is(target error) bool { return target == ErrMissingBinding }

// UnconvertibleValueError reports a value the resolver refused or failed to stringify.
type UnconvertibleValueError struct {
	Type reflect.Type
	Err  error
}

func (e *UnconvertibleValueError) Error() string {
	msg := fmt.Sprintf("%s: %v", ErrUnconvertibleValue, e.Type)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnconvertibleValueError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUnconvertibleValue.
func (e *UnconvertibleValueError) Is(target error) bool { return target == ErrUnconvertibleValue }
