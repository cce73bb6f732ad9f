package pricing

import (
	"math/rand"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPriceLine_LargeSizeTimesTwo(t *testing.T) {
	line := PriceLine(150000, []domain.OptionValue{{ID: 3, Value: "Large", AdditionalPrice: 40000}}, 2)

	assert.Equal(t, domain.Money(190000), line.UnitPrice)
	assert.Equal(t, domain.Money(380000), line.ExtendedPrice)
}

func TestPriceLine_NoOptions(t *testing.T) {
	line := PriceLine(120000, nil, 3)

	assert.Equal(t, domain.Money(120000), line.UnitPrice)
	assert.Equal(t, domain.Money(360000), line.ExtendedPrice)
}

func TestPriceLine_QuantityBelowOneClamped(t *testing.T) {
	for _, q := range []int{0, -1, -50} {
		line := PriceLine(1000, []domain.OptionValue{{AdditionalPrice: 250}}, q)
		assert.Equal(t, domain.Money(1250), line.ExtendedPrice, "quantity %d", q)
	}
}

func TestPriceLine_ExtendedIsUnitTimesQuantity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		base := domain.Money(rng.Int63n(1_000_000))
		n := rng.Intn(5)
		selected := make([]domain.OptionValue, n)
		sum := base
		for j := range selected {
			selected[j] = domain.OptionValue{ID: int64(j), AdditionalPrice: domain.Money(rng.Int63n(50_000))}
			sum += selected[j].AdditionalPrice
		}
		quantity := 1 + rng.Intn(20)

		line := PriceLine(base, selected, quantity)
		assert.Equal(t, sum, line.UnitPrice)
		assert.Equal(t, sum*domain.Money(quantity), line.ExtendedPrice)
	}
}
