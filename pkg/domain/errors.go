package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrTypeMismatch is returned when a stored value cannot be decoded into the requested type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnsupportedType is returned when a native value has no registered mapping.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrInvalidFilter is returned for a malformed predicate tree.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidUpdate is returned for a malformed update.
	ErrInvalidUpdate = errors.New("invalid update")
	// ErrInvalidPipeline is returned for a malformed aggregation pipeline.
	ErrInvalidPipeline = errors.New("invalid pipeline")
	// ErrInvalidIndex is returned for a malformed or conflicting index definition.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrNotFound is returned when a single-document lookup matches nothing.
	ErrNotFound = errors.New("document not found")
	// ErrCollectionDropped is returned when a handle is used after its collection was dropped.
	ErrCollectionDropped = errors.New("collection dropped")
	// ErrInvalidOptions is returned for malformed collection or command options.
	ErrInvalidOptions = errors.New("invalid options")
)

// Error carries the taxonomy kind together with the offending field path or key.
type Error struct {
	Kind   error
	Path   string
	Detail string
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, path, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " at '" + e.Path + "'"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// PathOf returns the field path recorded in err, if err wraps an *Error.
func PathOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Path
	}
	return ""
}
