package broker

import (
	"fmt"
)

// BrokerError is the base error type for transport failures.
type BrokerError struct {
	Message string
	Cause   error
}

func (e *BrokerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BrokerError) Unwrap() error {
	return e.Cause
}

// NewBrokerError creates a BrokerError wrapping a cause.
func NewBrokerError(message string, cause error) *BrokerError {
	return &BrokerError{Message: message, Cause: cause}
}

// ClosedError is returned by operations on a closed broker.
type ClosedError struct{}

func (e *ClosedError) Error() string {
	return "broker is closed"
}

// NewClosedError creates a new ClosedError.
func NewClosedError() *ClosedError {
	return &ClosedError{}
}

// ConsumerConflictError is returned when a second consumer attaches to a
// queue that already has one. Each queue has exactly one logical consumer.
type ConsumerConflictError struct {
	Queue string
}

func (e *ConsumerConflictError) Error() string {
	return fmt.Sprintf("queue %q already has a consumer", e.Queue)
}

// NewConsumerConflictError creates a new ConsumerConflictError.
func NewConsumerConflictError(queue string) *ConsumerConflictError {
	return &ConsumerConflictError{Queue: queue}
}
