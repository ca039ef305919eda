package mapper

import (
	"fmt"
	"strings"
)

// MappingParseError reports a mapping source that could not be turned into
// a mapping tree.
type MappingParseError struct {
	Type   string
	Reason string
	Cause  error
}

func newParseError(typeName string, cause error, format string, args ...interface{}) *MappingParseError {
	return &MappingParseError{Type: typeName, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *MappingParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to parse mapping [%s]: %s: %v", e.Type, e.Reason, e.Cause)
	}
	return fmt.Sprintf("failed to parse mapping [%s]: %s", e.Type, e.Reason)
}

func (e *MappingParseError) Unwrap() error {
	return e.Cause
}

// FieldConflictError reports fields or objects that cannot coexist, either
// inside one type or across the types of an index.
type FieldConflictError struct {
	Type      string
	Field     string
	Conflicts []string
}

func NewFieldConflictError(typeName, field string, conflicts ...string) *FieldConflictError {
	return &FieldConflictError{Type: typeName, Field: field, Conflicts: conflicts}
}

func (e *FieldConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		return e.Conflicts[0]
	}
	return fmt.Sprintf("merge of mapping [%s] failed with conflicts {%s}", e.Type, strings.Join(e.Conflicts, "], ["))
}
