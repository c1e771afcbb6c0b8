package replay

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes replay errors.
type ErrorCode string

const (
	// ErrCodeUnknownChannel indicates a commit for a channel with no directory entry.
	ErrCodeUnknownChannel ErrorCode = "UNKNOWN_CHANNEL"

	// ErrCodeQueryFailed indicates a window query failed and the loader stopped.
	ErrCodeQueryFailed ErrorCode = "QUERY_FAILED"

	// ErrCodeObserverFailed indicates an observer returned an error or panicked.
	ErrCodeObserverFailed ErrorCode = "OBSERVER_FAILED"
)

var (
	// ErrNotInitialized is returned by commits issued before Initialize.
	ErrNotInitialized = errors.New("replay: register store not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("replay: register store already initialized")
)

// UnknownChannelError is returned when a value is committed for a channel
// that is absent from the directory. The register store is left unchanged.
type UnknownChannelError struct {
	Channel string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("%s: channel %q has no directory entry", ErrCodeUnknownChannel, e.Channel)
}

// Code returns ErrCodeUnknownChannel.
func (e *UnknownChannelError) Code() ErrorCode {
	return ErrCodeUnknownChannel
}

// QueryError is returned by the loader when a window query fails.
// Readings scheduled before the failure are still released.
type QueryError struct {
	From, To int64
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: window [%d,%d): %v", ErrCodeQueryFailed, e.From, e.To, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Code returns ErrCodeQueryFailed.
func (e *QueryError) Code() ErrorCode {
	return ErrCodeQueryFailed
}

// ObserverError wraps the failure of a single observer for a single commit.
// Observer errors are logged and counted, never propagated to the committer.
type ObserverError struct {
	Index   int
	Channel string
	Err     error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("%s: observer %d, channel %q: %v", ErrCodeObserverFailed, e.Index, e.Channel, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

// Code returns ErrCodeObserverFailed.
func (e *ObserverError) Code() ErrorCode {
	return ErrCodeObserverFailed
}

// IsUnknownChannel returns true if the error is an unknown-channel error.
// Uses errors.As to handle wrapped errors.
func IsUnknownChannel(err error) bool {
	var ue *UnknownChannelError
	return errors.As(err, &ue)
}

// IsQueryError returns true if the error is a window query failure.
// Uses errors.As to handle wrapped errors.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
