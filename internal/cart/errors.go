package cart

import "errors"

var ErrLineNotFound = errors.New("line item not found in cart")
