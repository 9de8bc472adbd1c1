package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBind     Phase = "bind"     // type registration
	PhaseOffer    Phase = "offer"    // host value crossing into the environment
	PhaseRetrieve Phase = "retrieve" // script value crossing back to the host
	PhaseCall     Phase = "call"     // script evaluation and function calls
	PhaseCollect  Phase = "collect"  // collection sweeps
	PhaseTeardown Phase = "teardown" // environment destruction
)

// Kind categorizes the error
type Kind string

const (
	KindDuplicateType Kind = "duplicate_type"
	KindUnknownType   Kind = "unknown_type"
	KindUnknownName   Kind = "unknown_name"
	KindTypeMismatch  Kind = "type_mismatch"
	KindInvalidInput  Kind = "invalid_input"
	KindRegistration  Kind = "registration"
	KindClosed        Kind = "closed"
	KindScript        Kind = "script"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Name   string
	GoType string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Name != "" {
		b.WriteString(" at ")
		b.WriteString(e.Name)
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsSetup reports whether the error is a bind-time or offer-time
// misconfiguration (a programming error in binding declarations rather
// than a runtime condition).
func (e *Error) IsSetup() bool {
	if e.Phase != PhaseBind && e.Phase != PhaseOffer {
		return false
	}
	switch e.Kind {
	case KindDuplicateType, KindUnknownType, KindRegistration, KindInvalidInput:
		return true
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Name sets the global or type name involved
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Duplicate creates a duplicate type registration error
func Duplicate(name, goType string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindDuplicateType,
		Name:   name,
		GoType: goType,
		Detail: "name already bound to a different host type",
	}
}

// UnknownType creates an unknown type error
func UnknownType(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownType,
		GoType: goType,
		Detail: "host type has no descriptor in this environment",
	}
}

// UnknownName creates an unknown global name error
func UnknownName(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownName,
		Name:   name,
		Detail: "no such global in the environment",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, name, got, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Name:   name,
		GoType: got,
		Detail: fmt.Sprintf("want %s", want),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(name, detail string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindRegistration,
		Name:   name,
		Detail: detail,
	}
}

// Closed creates an error for operations on a torn-down environment
func Closed(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: "environment has been torn down",
	}
}

// Script wraps a script-level exception
func Script(name string, cause error) *Error {
	return &Error{
		Phase: PhaseCall,
		Kind:  KindScript,
		Name:  name,
		Cause: cause,
	}
}
