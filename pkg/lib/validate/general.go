// Package validate holds small helpers to validate constructor params.
// Each helper returns nil or an error built from the given message.
package validate

import (
	"fmt"
	"reflect"
	"strings"
)

// NotNil returns an error if value is nil or a nil pointer, map, slice,
// channel, func or interface.
func NotNil(value any, msg string, args ...any) error {
	if value == nil {
		return createError(msg, args...)
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if v.IsNil() {
			return createError(msg, args...)
		}
	}
	return nil
}

// NotBlank returns an error if s is empty or only whitespace.
func NotBlank(s string, msg string, args ...any) error {
	if strings.TrimSpace(s) == "" {
		return createError(msg, args...)
	}
	return nil
}

func createError(msg string, args ...any) error {
	return fmt.Errorf(msg, args...)
}
