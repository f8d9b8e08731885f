package phpserialize

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every parse failure wraps exactly one of these, so callers
// can classify with errors.Is.
var (
	ErrUnexpectedEof           = errors.New("phpserialize: unexpected end of input")
	ErrUnexpectedByte          = errors.New("phpserialize: unexpected byte")
	ErrInvalidType             = errors.New("phpserialize: unknown type tag")
	ErrInvalidNumber           = errors.New("phpserialize: invalid integer")
	ErrInvalidFloat            = errors.New("phpserialize: invalid float")
	ErrInvalidLength           = errors.New("phpserialize: invalid length")
	ErrLengthMismatch          = errors.New("phpserialize: string length mismatch")
	ErrUnterminatedString      = errors.New("phpserialize: unterminated string")
	ErrMissingSeparator        = errors.New("phpserialize: missing separator")
	ErrInvalidEnum             = errors.New("phpserialize: invalid enum literal")
	ErrInvalidReference        = errors.New("phpserialize: invalid reference index")
	ErrMaxDepthExceeded        = errors.New("phpserialize: max depth exceeded")
	ErrAllocationLimitExceeded = errors.New("phpserialize: allocation limit exceeded")

	// ErrTrailingBytes is reserved. The parser accepts trailing bytes
	// silently; callers that reject them (see Deserializer.Rest) can use
	// this kind for their own reporting.
	ErrTrailingBytes = errors.New("phpserialize: trailing bytes after value")
)

// ParseError is the error type returned by the parser. It carries the
// error kind, the byte offset into the (post-preprocess) input at which
// the failure was detected, and optional human-readable context.
type ParseError struct {
	// Err is one of the package Err* kinds.
	Err error
	// Pos is the byte offset of the first offending byte.
	Pos int
	// Context describes what was being parsed, if known.
	Context string

	preview string
}

// Error renders "kind at position N (context)" with an optional input
// preview on the following lines.
func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v at position %d", e.Err, e.Pos)
	if e.Context != "" {
		fmt.Fprintf(&b, " (%s)", e.Context)
	}
	if e.preview != "" {
		b.WriteByte('\n')
		b.WriteString(e.preview)
	}
	return b.String()
}

// Unwrap returns the error kind so errors.Is works against the Err* vars.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(kind error, pos int) *ParseError {
	return &ParseError{Err: kind, Pos: pos}
}

func (e *ParseError) ctx(format string, args ...any) *ParseError {
	e.Context = fmt.Sprintf(format, args...)
	return e
}

// withPreview attaches up to 20 bytes of input on either side of the error
// position, with a caret marking the position itself.
func (e *ParseError) withPreview(data []byte, pos int) *ParseError {
	start := pos - 20
	if start < 0 {
		start = 0
	}
	end := pos + 20
	if end > len(data) {
		end = len(data)
	}
	if start >= end {
		return e
	}
	window := data[start:end]
	printable := make([]byte, len(window))
	for i, b := range window {
		if b < 0x20 || b >= 0x7f {
			printable[i] = '.'
		} else {
			printable[i] = b
		}
	}
	e.preview = string(printable) + "\n" + strings.Repeat(" ", pos-start) + "^"
	return e
}
