package store

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ConnectionError means the store could not be reached: refused
// connections, DNS failures, TLS failures and timeouts.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: store unreachable: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ResponseError means the store answered, but with a non-success status
// or a body that could not be decoded. A missing index and a missing
// record both surface as a ResponseError.
type ResponseError struct {
	Op     string
	Status int
	Err    error
}

func (e *ResponseError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: bad response (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: bad response: %v", e.Op, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// IsTransient reports whether err belongs to the store error taxonomy.
// Both kinds are safe to retry after a delay.
func IsTransient(err error) bool {
	var connErr *ConnectionError
	var respErr *ResponseError
	return errors.As(err, &connErr) || errors.As(err, &respErr)
}

// classify wraps a client error into ConnectionError or ResponseError
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) || errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &ConnectionError{Op: op, Err: err}
	}
	return &ResponseError{Op: op, Err: err}
}
