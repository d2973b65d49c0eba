package validate

import (
	"golang.org/x/exp/constraints"
)

// Number is any integer or floating point type.
type Number interface {
	constraints.Integer | constraints.Float
}

// IsGreaterThanZero returns an error if value is zero or negative.
func IsGreaterThanZero[T Number](value T, msg string, args ...any) error {
	if value > 0 {
		return nil
	}
	return createError(msg, args...)
}

// IsGreaterOrEqualToZero returns an error if value is negative.
func IsGreaterOrEqualToZero[T Number](value T, msg string, args ...any) error {
	if value >= 0 {
		return nil
	}
	return createError(msg, args...)
}
