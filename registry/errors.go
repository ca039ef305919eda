package registry

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrRegistryClosed   = errors.New("mapping registry is closed")
	ErrUnknownFieldType = errors.New("unknown field type")
)

// TypeNameError reports a type name that may not be registered.
type TypeNameError struct {
	Type   string
	Reason string
}

func (e *TypeNameError) Error() string {
	return e.Reason
}

func typeNameError(typeName, format string, args ...interface{}) *TypeNameError {
	return &TypeNameError{Type: typeName, Reason: fmt.Sprintf(format, args...)}
}

// TypeMissingError is returned when a type is needed but neither exists nor
// may be created.
type TypeMissingError struct {
	Index  string
	Type   string
	Reason string
}

func (e *TypeMissingError) Error() string {
	return fmt.Sprintf("[%s] type[[%s]] missing: %s", e.Index, e.Type, e.Reason)
}

// InvariantViolationError is raised when an admitted mapping does not
// serialize back to the same source.
type InvariantViolationError struct {
	Type   string
	Source string
	Result string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("mapping [%s] serialized to [%s] but reparsed to [%s]", e.Type, e.Source, e.Result)
}
