package service

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MaxQuantity is the largest quantity one cart line may have.
const MaxQuantity = 99

var (
	ErrEmptyCart        = fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	ErrMissingAddress   = fmt.Errorf("%w: shipping address is required", domain.ErrValidation)
	ErrMissingPayment   = fmt.Errorf("%w: payment method is required", domain.ErrValidation)
	ErrKeyOwnedByOther  = fmt.Errorf("%w: idempotency key belongs to another user", domain.ErrValidation)
	ErrQuantityLimit    = fmt.Errorf("%w: quantity must be at most %d", domain.ErrValidation, MaxQuantity)
	ErrReceiptsDisabled = errors.New("order history is not configured")
)
