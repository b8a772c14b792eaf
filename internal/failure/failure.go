// Package failure holds the error kinds a pipeline run can fail with.
//
// Every error carries the kind and, when known, the parameter that caused it,
// so the CLI can report "kind (parameter): message" and exit non-zero.
package failure

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	DataUnavailable
	ResourceExceeded
	GridMismatch
	InsufficientArea
	SchemaMismatch
	ScaleFactorMissing
	InvalidConfig
)

var kindNames = map[Kind]string{
	Unknown:            "Unknown",
	DataUnavailable:    "DataUnavailable",
	ResourceExceeded:   "ResourceExceeded",
	GridMismatch:       "GridMismatch",
	InsufficientArea:   "InsufficientArea",
	SchemaMismatch:     "SchemaMismatch",
	ScaleFactorMissing: "ScaleFactorMissing",
	InvalidConfig:      "InvalidConfig",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error lets a bare Kind be used as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

type Error struct {
	Kind  Kind
	Param string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Param != "" {
		msg += " (" + e.Param + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error or a bare Kind with the same kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind && (t.Param == "" || t.Param == e.Param)
	}
	return false
}

func New(kind Kind, param string, format string, args ...any) error {
	return &Error{Kind: kind, Param: param, Err: fmt.Errorf(format, args...)}
}

func Wrap(kind Kind, param string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Param: param, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// ParamOf returns the offending parameter of the first *Error in err's chain.
func ParamOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Param
	}
	return ""
}
