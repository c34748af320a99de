package orders

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the engine can report. Handlers map kinds to
// HTTP classes; nothing in this package knows about HTTP.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindNotFound
	KindInsufficientStock
	KindInvalidTransition
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, usually a driver error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal for anything untyped.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }

func ErrInvalidArgumentf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

func ErrNotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %s not found", entity, id)}
}

func ErrInsufficientStock(productID string, required, available int) *Error {
	return &Error{
		Kind: KindInsufficientStock,
		Msg:  fmt.Sprintf("insufficient stock for product %s: required %d, available %d", productID, required, available),
	}
}

func ErrInvalidTransitionf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Msg: fmt.Sprintf(format, args...)}
}

// ErrInternal wraps storage/transaction failures so callers only ever see the
// taxonomy above.
func ErrInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}
