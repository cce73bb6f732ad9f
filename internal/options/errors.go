package options

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrMissingSelection  = fmt.Errorf("%w: select all required options", domain.ErrValidation)
	ErrInvalidSelection  = fmt.Errorf("%w: invalid option values", domain.ErrValidation)
	ErrIllegalTransition = errors.New("illegal customization transition")
)
