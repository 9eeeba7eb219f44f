package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every ConfigError via errors.Is.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrShapeMismatch reports arrays whose sample, mode, step or coordinate
	// extents disagree with each other or with their backing buffers.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrMalformedGroupPointer reports a group pointer that does not start at
	// 0, decreases somewhere, or does not end at the sample count.
	ErrMalformedGroupPointer = errors.New("malformed group pointer")
)

// ConfigError is returned when an enumerated option string is outside its
// legal set, e.g. an unknown reduction mode or distance criterion.
type ConfigError struct {
	// Option names the setting being parsed ("reduction", "criterion", ...).
	Option string
	// Value is the rejected input.
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%q is not a valid %s", e.Value, e.Option)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func shapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}
