package core

import (
	"fmt"
)

// ErrorKind classifies locator parse failures.
type ErrorKind int

const (
	ErrKindEmpty           ErrorKind = iota + 1 // Empty or whitespace-only input
	ErrKindSyntax                               // Malformed grammar, unbalanced brackets or quotes
	ErrKindUnknownPseudo                        // Pseudo-class outside the supported set
	ErrKindInvalidArgument                      // Malformed argument or shorthand value
	ErrKindUnsupportedForm                      // Valid grammar that cannot become a single locator
)

// String returns the machine-readable code of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindEmpty:
		return "empty"
	case ErrKindSyntax:
		return "syntax"
	case ErrKindUnknownPseudo:
		return "unknown_pseudo"
	case ErrKindInvalidArgument:
		return "invalid_argument"
	case ErrKindUnsupportedForm:
		return "unsupported_form"
	default:
		return "unknown"
	}
}

// NoPosition marks a ParseError that is not tied to a character offset.
const NoPosition = -1

// ParseError represents a structured locator parse failure.
type ParseError struct {
	Kind     ErrorKind
	Code     string // Machine-readable code, same as Kind.String()
	Message  string // Human-readable message
	Input    string // Full locator string being parsed
	Position int    // Byte offset into Input, NoPosition when unknown
	Fragment string // Offending substring, if any
	Name     string // Pseudo-class name for UnknownPseudo
	Cause    error  // Underlying error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	msg := e.Message
	if e.Fragment != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Fragment)
	}
	if e.Position >= 0 {
		msg = fmt.Sprintf("%s at position %d", msg, e.Position)
	}
	if e.Input != "" {
		msg = fmt.Sprintf("%s in locator %q", msg, e.Input)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ParseError of the same kind.
// This lets callers write errors.Is(err, core.ErrSyntax).
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithCause returns a copy of the error with the given cause
func (e *ParseError) WithCause(cause error) *ParseError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of the error with a custom message
func (e *ParseError) WithMessage(msg string) *ParseError {
	c := *e
	c.Message = msg
	return &c
}

// WithInput returns a copy of the error bound to the input being parsed.
func (e *ParseError) WithInput(input string) *ParseError {
	c := *e
	c.Input = input
	return &c
}

// At returns a copy of the error positioned at pos with the offending fragment.
func (e *ParseError) At(pos int, fragment string) *ParseError {
	c := *e
	c.Position = pos
	c.Fragment = fragment
	return &c
}

// Predefined errors. Compare with errors.Is; build concrete errors with the
// With* helpers or NewParseError.
var (
	ErrEmpty = &ParseError{
		Kind:     ErrKindEmpty,
		Code:     ErrKindEmpty.String(),
		Message:  "locator cannot be empty",
		Position: NoPosition,
	}
	ErrSyntax = &ParseError{
		Kind:     ErrKindSyntax,
		Code:     ErrKindSyntax.String(),
		Message:  "syntax error",
		Position: NoPosition,
	}
	ErrUnknownPseudo = &ParseError{
		Kind:     ErrKindUnknownPseudo,
		Code:     ErrKindUnknownPseudo.String(),
		Message:  "unknown pseudo-class",
		Position: NoPosition,
	}
	ErrInvalidArgument = &ParseError{
		Kind:     ErrKindInvalidArgument,
		Code:     ErrKindInvalidArgument.String(),
		Message:  "invalid argument",
		Position: NoPosition,
	}
	ErrUnsupportedForm = &ParseError{
		Kind:     ErrKindUnsupportedForm,
		Code:     ErrKindUnsupportedForm.String(),
		Message:  "unsupported locator form",
		Position: NoPosition,
	}
)

// NewParseError creates a new ParseError with the given parameters
func NewParseError(kind ErrorKind, message string, pos int) *ParseError {
	return &ParseError{
		Kind:     kind,
		Code:     kind.String(),
		Message:  message,
		Position: pos,
	}
}

// UnknownPseudoError reports an unsupported pseudo-class name.
func UnknownPseudoError(name string, pos int) *ParseError {
	e := ErrUnknownPseudo.At(pos, ":"+name)
	e.Name = name
	return e
}
