package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a coarse-grained categorization for errors.
type ErrorKind string

const (
	KindInvalidConfig ErrorKind = "invalid_config"
	KindNotFound      ErrorKind = "not_found"
	KindConnection    ErrorKind = "connection"
	KindQuery         ErrorKind = "query"
	KindUnsupported   ErrorKind = "unsupported"
)

// OpError wraps an underlying error with the operation that failed and a kind.
type OpError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err, or anything it wraps, is an OpError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}
