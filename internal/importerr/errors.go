// Package importerr defines the failure taxonomy of an import run.
package importerr

import (
	"errors"
	"fmt"
)

// Kind classifies an import failure by its blast radius.
type Kind string

const (
	// Whole-file aborts, raised before any write.
	Format     Kind = "format"
	Structure  Kind = "structure"
	Mapping    Kind = "mapping"
	Validation Kind = "validation"

	// Single-row aborts.
	Row         Kind = "row"
	Persistence Kind = "persistence"

	// Unexpected failure after the session started.
	Catastrophic Kind = "catastrophic"
)

// Error is an import failure with its Kind and, for row-level kinds, the
// 1-based row it belongs to.
type Error struct {
	Kind  Kind
	Row   int
	Sheet string
	Msg   string
	Hint  string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Row > 0 {
		return fmt.Sprintf("%s error at row %d: %s", e.Kind, e.Row, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of kind k.
func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind k to err. A nil err yields nil.
func Wrap(err error, k Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: msg, Err: err}
}

// RowErr builds a row-level error for row of sheet.
func RowErr(row int, sheet, msg string) *Error {
	return &Error{Kind: Row, Row: row, Sheet: sheet, Msg: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// Catastrophic when none is found.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return Catastrophic
}

// IsAbort reports whether k aborts the whole file before any write.
func IsAbort(k Kind) bool {
	switch k {
	case Format, Structure, Mapping, Validation:
		return true
	}
	return false
}

// Message returns the user-facing text of err without the kind prefix.
func Message(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		if ie.Msg != "" {
			return ie.Msg
		}
		if ie.Err != nil {
			return ie.Err.Error()
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HintOf returns the correction hint attached to err, if any.
func HintOf(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Hint
	}
	return ""
}
