package estimate

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every InputError
var ErrInvalidInput = errors.New("invalid estimation input")

// InputError reports an input that would make the estimate meaningless
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
