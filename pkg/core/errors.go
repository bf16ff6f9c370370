package core

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a failure so callers can build messages from the error kind
// and the affected record.
type Code string

const (
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodeStorage    Code = "storage"
	CodeSync       Code = "sync"
	CodeEngine     Code = "engine"
)

// Error is the coded error raised by the domain and its adapters.
type Error struct {
	Code Code
	Op   string
	Kind Kind
	ID   string
	Err  error
}

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrStorage    = &Error{Code: CodeStorage}
	ErrSync       = &Error{Code: CodeSync}
	ErrEngine     = &Error{Code: CodeEngine}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != "" || e.ID != "" {
		fmt.Fprintf(&b, "%s/%s: ", e.Kind, e.ID)
	}
	b.WriteString(string(e.Code))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == "" && t.ID == "" && t.Err == nil && t.Code == e.Code
}

// Validation reports a record that is missing required identity.
func Validation(op string, kind Kind, id, msg string) error {
	return &Error{Code: CodeValidation, Op: op, Kind: kind, ID: id, Err: errors.New(msg)}
}

// NotFound reports a missing row.
func NotFound(op string, kind Kind, id string) error {
	return &Error{Code: CodeNotFound, Op: op, Kind: kind, ID: id}
}

// StorageFault wraps a backend I/O failure. The cause stays reachable with
// errors.Is and errors.As.
func StorageFault(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Code == CodeStorage {
		return err
	}
	return &Error{Code: CodeStorage, Op: op, Err: err}
}

// SyncFault wraps a per-record remote failure.
func SyncFault(op string, kind Kind, id string, err error) error {
	return &Error{Code: CodeSync, Op: op, Kind: kind, ID: id, Err: err}
}

// EngineFault wraps a failure that aborts a whole synchronization run.
func EngineFault(op string, err error) error {
	return &Error{Code: CodeEngine, Op: op, Err: err}
}

// KindOf returns the code of the outermost *Error in err's chain, or "".
func KindOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
