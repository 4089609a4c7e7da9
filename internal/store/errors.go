package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNotFound marks lookups of an id the store does not hold.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks failures to reach the store at all.
	ErrUnavailable = errors.New("store unavailable")
)

// RequestError is a failed store round trip. The driver's message is kept verbatim.
type RequestError struct {
	Op          string
	Err         error
	Unavailable bool
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool {
	return target == ErrUnavailable && e.Unavailable
}

// InvalidFilterError is a predicate combination the store refuses.
type InvalidFilterError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s filter: %s %s", e.Kind, e.Field, e.Reason)
}

func requestError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ne net.Error
	unavailable := errors.Is(err, driver.ErrBadConn) || errors.As(err, &ne)
	return &RequestError{Op: op, Err: err, Unavailable: unavailable}
}
