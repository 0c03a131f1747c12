package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotHost          = errors.New("only the host can do that")
	ErrUnknownRoom      = errors.New("unknown room")
	ErrUnknownMember    = errors.New("unknown member")
	ErrRoomClosed       = errors.New("room closed")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrRateLimited      = errors.New("rate limited")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTransportFailure = errors.New("transport failure")
)

// Wire codes reported to clients in error frames.
const (
	CodeNotHost        = "NotHost"
	CodeUnknownRoom    = "UnknownRoom"
	CodeUnknownMember  = "UnknownMember"
	CodeInvalidPayload = "InvalidPayload"
	CodeRateLimited    = "RateLimited"
	CodeInternal       = "Internal"
)

// OpError ties a rejection to the operation that caused it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *OpError) Unwrap() error { return e.Err }

// Op wraps err with the originating operation. A nil err stays nil.
func Op(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// Code maps an error onto its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotHost):
		return CodeNotHost
	case errors.Is(err, ErrUnknownRoom), errors.Is(err, ErrRoomClosed):
		return CodeUnknownRoom
	case errors.Is(err, ErrUnknownMember):
		return CodeUnknownMember
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrIdentityEmpty),
		errors.Is(err, ErrIdentityTooLong),
		errors.Is(err, ErrRoomIDEmpty),
		errors.Is(err, ErrRoomIDTooLong):
		return CodeInvalidPayload
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	}
	return CodeInternal
}
