package domain

import "errors"

// ErrValidation marks client-side validation failures. They never mutate cart or session state.
var ErrValidation = errors.New("validation failed")
