package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for callers that must map it to a response.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindUpstreamFatal Kind = "upstream_fatal"
	KindStorage       Kind = "storage"
)

// Error carries a caller-safe message alongside the wrapped internal cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func validationErrorf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func notFoundErrorf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func upstreamError(msg string, err error) error {
	return &Error{Kind: KindUpstreamFatal, Msg: msg, Err: err}
}

func storageError(msg string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}

// KindOf reports the kind of err. Unclassified errors count as storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStorage
}

// PublicMessage is the message safe to return to API clients.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if !errors.As(err, &se) || se.Kind == KindStorage {
		return "internal storage error"
	}
	return se.Msg
}
