package pricing

import "github.com/fjod/go_cart/storefront/internal/domain"

// Line is the priced result for one cart line.
type Line struct {
	UnitPrice     domain.Money
	ExtendedPrice domain.Money
}

// PriceLine adds the option surcharges to the base price and multiplies by quantity.
// Quantities below 1 are clamped to 1.
func PriceLine(base domain.Money, selected []domain.OptionValue, quantity int) Line {
	unit := UnitPrice(base, selected)
	return Line{
		UnitPrice:     unit,
		ExtendedPrice: unit * domain.Money(ClampQuantity(quantity)),
	}
}

func UnitPrice(base domain.Money, selected []domain.OptionValue) domain.Money {
	unit := base
	for _, v := range selected {
		unit += v.AdditionalPrice
	}
	return unit
}

func ClampQuantity(quantity int) int {
	if quantity < 1 {
		return 1
	}
	return quantity
}
