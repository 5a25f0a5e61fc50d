package ncd

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModuleNotFound is returned when a statement names a module type
	// that is not registered.
	ErrModuleNotFound = errors.New(`ncd: module not found`)

	// ErrTemplateNotFound is returned when a sub-process names a template
	// that the program does not define.
	ErrTemplateNotFound = errors.New(`ncd: template not found`)

	// ErrInterpRunning is returned when Run is called on an interpreter
	// that is already running or has finished.
	ErrInterpRunning = errors.New(`ncd: interpreter already started`)
)

// ResolveError reports that a named variable or object could not be
// resolved. Depending on the call site it is treated as absence or as a
// construction failure of the resolving statement.
type ResolveError struct {
	Path []string
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("ncd: cannot resolve %q", strings.Join(e.Path, "."))
}

// ArgumentError reports wrong arity, a wrong element type, or an
// out-of-range index in a statement's arguments. Modules report it by
// setting the error flag and going dead.
type ArgumentError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	if e.Message == "" {
		return "ncd: argument error"
	}
	return "ncd: " + e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and
// [errors.As].
func (e *ArgumentError) Unwrap() error {
	return e.Cause
}
