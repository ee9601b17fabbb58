package tensor

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when two operands disagree in length
	// or shape.
	ErrDimensionMismatch = errors.New("tensor: dimension mismatch")
	// ErrInvalidArgument is returned for nil or empty operands and
	// out-of-range indices.
	ErrInvalidArgument = errors.New("tensor: invalid argument")
)

func dimError(a, b int) error {
	return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a, b)
}
