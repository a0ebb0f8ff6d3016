package main

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so the host can decide what to do with the event
type ErrorKind string

const (
	KindMalformedEvent ErrorKind = "malformed_event"
	KindConfiguration  ErrorKind = "configuration"
	KindStorageWrite   ErrorKind = "storage_write"
	KindObjectNotFound ErrorKind = "object_not_found"
	KindFetch          ErrorKind = "fetch"
	KindDispatch       ErrorKind = "dispatch"
)

// NotifierError is the error type returned by every pipeline component
type NotifierError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *NotifierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *NotifierError) Unwrap() error {
	return e.Err
}

// Is matches any NotifierError of the same kind
func (e *NotifierError) Is(target error) bool {
	t, ok := target.(*NotifierError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newNotifierError(kind ErrorKind, message string, err error) *NotifierError {
	return &NotifierError{Kind: kind, Message: message, Err: err}
}

var (
	ErrMalformedEvent = newNotifierError(KindMalformedEvent, "malformed trigger event", nil)
	ErrConfiguration  = newNotifierError(KindConfiguration, "invalid configuration", nil)
	ErrStorageWrite   = newNotifierError(KindStorageWrite, "audit write failed", nil)
	ErrObjectNotFound = newNotifierError(KindObjectNotFound, "object not found", nil)
	ErrFetch          = newNotifierError(KindFetch, "object fetch failed", nil)
	ErrDispatch       = newNotifierError(KindDispatch, "email dispatch failed", nil)
)

// StageError is the terminal failed state of a pipeline run
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// errorKind returns the kind of the first NotifierError in the chain, or "" if there is none
func errorKind(err error) ErrorKind {
	var ne *NotifierError
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return ""
}

//
// end of file
//
