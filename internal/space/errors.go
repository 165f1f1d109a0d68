package space

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAxis indicates an empty axis list or an axis with no values.
	ErrInvalidAxis = errors.New("space: invalid axis")

	// ErrOverflow indicates the cross-product size does not fit in a uint64.
	ErrOverflow = errors.New("space: option count overflows uint64")

	// ErrOutOfRange indicates an identifier or index outside the space.
	ErrOutOfRange = errors.New("space: identifier out of range")
)

// AxisError wraps an error with the offending axis position.
type AxisError struct {
	Index   int
	Wrapped error
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("axis %d: %v", e.Index, e.Wrapped)
}

func (e *AxisError) Unwrap() error {
	return e.Wrapped
}
