// Package errors provides error types and utilities for jobforge.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrNotConnected      = errors.New("not connected")
	ErrQueueFull         = errors.New("queue is full")
	ErrEmptyBatch        = errors.New("batch cannot be empty")
	ErrInvalidJob        = errors.New("invalid job")
	ErrTimeout           = errors.New("operation timed out")
	ErrShutdown          = errors.New("shutting down")
	ErrAlreadyStarted    = errors.New("engine already started")
	ErrNoProfiles        = errors.New("no generated profiles to drive")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedBroker = errors.New("unsupported broker type")
	ErrEmptyProfileName  = errors.New("profile name cannot be empty")
	ErrEmptyQueueName    = errors.New("queue name cannot be empty")
	ErrDuplicateProfile  = errors.New("profile already registered")
	ErrInvalidProfile    = errors.New("invalid profile")
)

// BrokerError represents broker-specific errors
type BrokerError struct {
	Op    string // operation being performed
	Queue string // queue name (if applicable)
	Err   error  // underlying error
}

func (e *BrokerError) Error() string {
	if e.Queue != "" {
		return fmt.Sprintf("broker %s on queue %s: %v", e.Op, e.Queue, e.Err)
	}
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// ProducerError ties a generation or submission failure to the profile
// whose loop produced it.
type ProducerError struct {
	Profile string
	Err     error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer %s: %v", e.Profile, e.Err)
}

func (e *ProducerError) Unwrap() error {
	return e.Err
}

// SimulatedError is the error form of a simulated transient job failure.
type SimulatedError struct {
	Message string
}

func (e *SimulatedError) Error() string {
	return e.Message
}

// Temporary reports true: simulated failures are always retryable by the backend.
func (e *SimulatedError) Temporary() bool {
	return true
}

// SerializationError represents serialization/deserialization errors
type SerializationError struct {
	Format string // serialization format
	Err    error  // underlying error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization (%s): %v", e.Format, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// ConnectionError represents connection-related errors
type ConnectionError struct {
	URI string // connection URI (may be redacted)
	Err error  // underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Temporary() bool {
	if t, ok := e.Err.(interface{ Temporary() bool }); ok {
		return t.Temporary()
	}
	return false
}

func (e *ConnectionError) Timeout() bool {
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// Helper functions for creating errors

// NewBrokerError creates a new broker error
func NewBrokerError(op, queue string, err error) error {
	return &BrokerError{Op: op, Queue: queue, Err: err}
}

// NewProducerError creates a new producer error
func NewProducerError(profile string, err error) error {
	return &ProducerError{Profile: profile, Err: err}
}

// NewSerializationError creates a new serialization error
func NewSerializationError(format string, err error) error {
	return &SerializationError{Format: format, Err: err}
}

// NewConnectionError creates a new connection error
func NewConnectionError(uri string, err error) error {
	return &ConnectionError{URI: uri, Err: err}
}

// IsTemporary checks if an error is temporary and retryable
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}

	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrQueueFull)
}

// IsTimeout checks if an error is a timeout
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return errors.Is(err, ErrTimeout)
}
