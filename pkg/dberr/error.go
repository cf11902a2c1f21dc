// Package dberr defines the structured error type returned across the
// storage core. Every operation that can fail returns a *DBError tagged
// with one of a small, fixed set of Kinds, so callers can branch on
// classification (retry a transient conflict, surface a hard failure)
// without string-matching messages.
package dberr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies an error into one of the outcomes a caller of the
// storage core needs to distinguish.
type Kind string

const (
	// TransactionAborted means the transaction was chosen as a victim by
	// deadlock detection or a lock-acquisition timeout. The transaction is
	// not rolled back yet: the caller runs the abort path, and may then
	// retry in a new transaction.
	TransactionAborted Kind = "TransactionAborted"

	// DbError is a generic operational failure: a bad argument, an
	// unregistered table, a malformed log record. Not retryable as-is.
	DbError Kind = "DbError"

	// IoError wraps a failure from the underlying filesystem: a short
	// read, a write past a permission boundary, a missing file.
	IoError Kind = "IoError"

	// OutOfBufferSpace means the buffer pool could not evict a clean page
	// to make room for the requested one because every resident page is
	// dirty. The caller must flush or retry later.
	OutOfBufferSpace Kind = "OutOfBufferSpace"
)

// Category groups Kinds by how a caller should generally react: retry,
// surface to an operator, or treat as a data-integrity concern.
type Category int

const (
	CategorySystem Category = iota
	CategoryTransient
	CategoryConcurrency
)

func (k Kind) category() Category {
	switch k {
	case TransactionAborted:
		return CategoryConcurrency
	case OutOfBufferSpace:
		return CategoryTransient
	default:
		return CategorySystem
	}
}

// DBError is a structured error carrying a Kind, human-readable context,
// and an optional wrapped cause.
type DBError struct {
	Kind      Kind
	Message   string
	Operation string
	Component string
	Cause     error
	Stack     []uintptr
}

// New creates a DBError of the given kind.
func New(kind Kind, message string) *DBError {
	return &DBError{Kind: kind, Message: message, Stack: captureStack()}
}

// Newf creates a DBError of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *DBError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches operation/component context to err. If err is already a
// DBError its Kind is preserved; otherwise it is wrapped as an IoError,
// since nearly every non-DBError failure reaching this layer originates
// from the filesystem.
func Wrap(err error, operation, component string) *DBError {
	if err == nil {
		return nil
	}
	var existing *DBError
	if errors.As(err, &existing) {
		if existing.Operation == "" {
			existing.Operation = operation
		}
		if existing.Component == "" {
			existing.Component = component
		}
		return existing
	}
	return &DBError{
		Kind:      IoError,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the error interface.
func (e *DBError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Message))
	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}
	return b.String()
}

// Unwrap enables errors.Is/errors.As chain traversal.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Category classifies this error for retry/alerting logic.
func (e *DBError) Category() Category {
	return e.Kind.category()
}

// Is reports whether err is a DBError of the given kind, walking the
// standard error chain.
func Is(err error, kind Kind) bool {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Kind == kind
	}
	return false
}

// FormatStack renders the captured call stack for debugging.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)
	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}
