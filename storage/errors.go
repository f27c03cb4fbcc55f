package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Storage error constants
var (
	// ErrConnectTimeout is matched by a ConnectError whose attempt exceeded the connect timeout
	ErrConnectTimeout = errors.New("mongodb connection attempt timed out")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned when another user already has the email address
	ErrDuplicateEmail = errors.New("a user with this email already exists")

	// ErrInvalidID is returned when an id is not a valid ObjectID hex string
	ErrInvalidID = errors.New("invalid id")
)

// ConnectError is returned when a connection to MongoDB could not be established.
// Every failure cause (unreachable host, bad credentials, malformed target, timeout)
// is reported through this one type.
type ConnectError struct {
	// Target is the redacted connection target
	Target string
	// Op is the step that failed: "connect" or "ping"
	Op string
	// Timeout is set when the bounded wait expired
	Timeout bool
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("failed to connect to MongoDB at %s: timed out during %s: %v", e.Target, e.Op, e.Err)
	}
	return fmt.Sprintf("failed to connect to MongoDB at %s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConnectTimeout) identify timeouts
func (e *ConnectError) Is(target error) bool {
	return target == ErrConnectTimeout && e.Timeout
}

// newConnectError wraps err, marking it as a timeout when the bounded context expired
// or the driver reports one.
func newConnectError(ctx context.Context, target, op string, err error) *ConnectError {
	timeout := errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		mongo.IsTimeout(err)
	return &ConnectError{Target: target, Op: op, Timeout: timeout, Err: err}
}
