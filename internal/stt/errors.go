package stt

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a session did not finish cleanly
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindConfiguration ErrorKind = "configuration" // missing credentials or input; no network attempt
	KindEncoding      ErrorKind = "encoding"      // unreadable audio; no network attempt
	KindTransport     ErrorKind = "transport"     // refused, rejected handshake, socket failure
	KindProtocol      ErrorKind = "protocol"      // malformed event or nonzero status code
	KindCanceled      ErrorKind = "canceled"      // caller cancellation or session deadline
)

// Error carries a kind and the operation that failed
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// ProtocolError is a nonzero status code reported by the service for one event
type ProtocolError struct {
	Code    int
	Message string
	SID     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("recognition error %d (sid=%s): %s", e.Code, e.SID, e.Message)
}
