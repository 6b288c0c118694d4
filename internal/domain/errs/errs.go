package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies pipeline failures. The set is closed: every structural
// failure raised by the ingester maps to exactly one Kind.
type Kind int

const (
	// KindUnknown is reported for errors that carry no Kind (I/O, driver errors).
	KindUnknown Kind = iota
	// KindFormat marks an asset or payload string that does not follow the canonical grammar.
	KindFormat
	// KindMalformedAction marks a routed action missing required fields.
	KindMalformedAction
	// KindDataAbsent marks a lookup of a global (vesting stat, system balance) that does not exist yet.
	KindDataAbsent
	// KindAlreadyFinished marks use of the genesis importer after completion.
	KindAlreadyFinished
)

// String returns the kind name used in logs
func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "format"
	case KindMalformedAction:
		return "malformed_action"
	case KindDataAbsent:
		return "data_absent"
	case KindAlreadyFinished:
		return "already_finished"
	default:
		return "unknown"
	}
}

// Error is a structured pipeline error
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "dispersal.delegate"
	Field  string // offending field, if any
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Field != "" {
		b.WriteString(": field ")
		b.WriteString(e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, errs.DataAbsent) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Field == "" && t.Detail == "" && t.Err == nil
}

// Sentinels for errors.Is matching by kind
var (
	Format          = &Error{Kind: KindFormat}
	MalformedAction = &Error{Kind: KindMalformedAction}
	DataAbsent      = &Error{Kind: KindDataAbsent}
	AlreadyFinished = &Error{Kind: KindAlreadyFinished}
)

// New creates an error of the given kind
func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Newf creates an error of the given kind with a formatted detail
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Missing reports a required field absent on an action or payload
func Missing(op, field string) *Error {
	return &Error{Kind: KindMalformedAction, Op: op, Field: field, Detail: "required field is missing"}
}

// Wrap attaches a kind to an underlying error
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
