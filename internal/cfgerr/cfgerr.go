// Package cfgerr defines the error sentinels shared across the
// layout engine's packages, per the three recoverable error
// categories of the engine's error-handling design: invariant
// violations, recoverable preconditions, and data-shape warnings.
package cfgerr

import (
	"errors"
	"fmt"
)

// ErrInvariant marks an error as a broken internal invariant or a
// contract violation by the caller (e.g. an out-of-bounds slice
// position, or requesting a slice position on an SU assembly). These
// are programming bugs: callers should not attempt to recover from
// them, only report them.
var ErrInvariant = errors.New("propeller: invariant violation")

// ErrFailedPrecondition marks a single recoverable failure: a
// path-cloning candidate conflicted with already-applied clonings, or
// its evaluated score gain fell below the caller's threshold.
// Processing continues with the next candidate.
var ErrFailedPrecondition = errors.New("propeller: failed precondition")

// Invariantf wraps msg/args as an error chained to ErrInvariant.
func Invariantf(format string, args ...any) error {
	return wrapf(ErrInvariant, format, args...)
}

// Preconditionf wraps msg/args as an error chained to
// ErrFailedPrecondition.
func Preconditionf(format string, args ...any) error {
	return wrapf(ErrFailedPrecondition, format, args...)
}

func wrapf(sentinel error, format string, args ...any) error {
	return &sentinelError{sentinel: sentinel, msg: fmt.Sprintf(format, args...)}
}

type sentinelError struct {
	sentinel error
	msg      string
}

func (e *sentinelError) Error() string { return e.msg }
func (e *sentinelError) Unwrap() error { return e.sentinel }
