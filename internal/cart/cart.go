package cart

import (
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/google/uuid"
)

// Cart owns the ordered line items of one session and keeps TotalPrice equal to
// the sum of PriceAtAddition × Quantity after every mutation.
//
// Cart is not safe for concurrent use; callers serialize access through the session lock.
type Cart struct {
	id        string
	userID    string
	items     []domain.CartLineItem
	total     domain.Money
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

func New(userID string) *Cart {
	now := time.Now()
	return &Cart{
		id:        uuid.New().String(),
		userID:    userID,
		createdAt: now,
		updatedAt: now,
		now:       time.Now,
	}
}

// Restore rebuilds a cart from a stored snapshot. The stored total is ignored and recomputed.
func Restore(snapshot domain.Cart) *Cart {
	c := &Cart{
		id:        snapshot.ID,
		userID:    snapshot.UserID,
		items:     make([]domain.CartLineItem, 0, len(snapshot.Items)),
		createdAt: snapshot.CreatedAt,
		updatedAt: snapshot.UpdatedAt,
		now:       time.Now,
	}
	if c.id == "" {
		c.id = uuid.New().String()
	}
	for _, item := range snapshot.Items {
		item.Quantity = pricing.ClampQuantity(item.Quantity)
		item.Options = append([]domain.OptionValue(nil), item.Options...)
		c.items = append(c.items, item)
	}
	c.recompute()
	return c
}

func (c *Cart) ID() string { return c.id }

func (c *Cart) TotalPrice() domain.Money { return c.total }

func (c *Cart) Len() int { return len(c.items) }

// Line returns a copy of the line with lineID.
func (c *Cart) Line(lineID string) (domain.CartLineItem, error) {
	i, err := c.index(lineID)
	if err != nil {
		return domain.CartLineItem{}, err
	}
	item := c.items[i]
	item.Options = append([]domain.OptionValue(nil), item.Options...)
	return item, nil
}

// AddLine prices the item with the current selections and appends a new line.
// Identical item/option combinations are not merged.
func (c *Cart) AddLine(item domain.MenuItem, selected []domain.OptionValue, quantity int) domain.CartLineItem {
	options := append([]domain.OptionValue(nil), selected...)
	line := domain.CartLineItem{
		ID:              uuid.New().String(),
		MenuItem:        item,
		Options:         options,
		Quantity:        pricing.ClampQuantity(quantity),
		PriceAtAddition: pricing.UnitPrice(item.BasePrice, options),
		AddedAt:         c.now(),
	}
	c.items = append(c.items, line)
	c.touch()
	return line
}

// UpdateQuantity sets the line quantity to max(1, quantity). It never removes the line.
func (c *Cart) UpdateQuantity(lineID string, quantity int) error {
	i, err := c.index(lineID)
	if err != nil {
		return err
	}
	c.items[i].Quantity = pricing.ClampQuantity(quantity)
	c.touch()
	return nil
}

func (c *Cart) Increment(lineID string) error {
	i, err := c.index(lineID)
	if err != nil {
		return err
	}
	return c.UpdateQuantity(lineID, c.items[i].Quantity+1)
}

// Decrement lowers the quantity by one; at 1 it is a no-op.
func (c *Cart) Decrement(lineID string) error {
	i, err := c.index(lineID)
	if err != nil {
		return err
	}
	return c.UpdateQuantity(lineID, c.items[i].Quantity-1)
}

func (c *Cart) RemoveLine(lineID string) error {
	i, err := c.index(lineID)
	if err != nil {
		return err
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.touch()
	return nil
}

func (c *Cart) Reset() {
	c.items = nil
	c.touch()
}

// Remainder returns a new cart, with a new id, holding what c has beyond ordered: lines
// added after ordered was taken, and quantity raised on ordered lines since then.
func (c *Cart) Remainder(ordered domain.Cart) *Cart {
	orderedQty := make(map[string]int, len(ordered.Items))
	for _, item := range ordered.Items {
		orderedQty[item.ID] = item.Quantity
	}

	next := New(c.userID)
	next.now = c.now
	for _, item := range c.items {
		left := item.Quantity - orderedQty[item.ID]
		if left < 1 {
			continue
		}
		item.Quantity = left
		item.Options = append([]domain.OptionValue(nil), item.Options...)
		next.items = append(next.items, item)
	}
	next.recompute()
	return next
}

// Snapshot returns a copy of the cart that shares no memory with it.
func (c *Cart) Snapshot() domain.Cart {
	items := make([]domain.CartLineItem, len(c.items))
	for i, item := range c.items {
		item.Options = append([]domain.OptionValue(nil), item.Options...)
		items[i] = item
	}
	return domain.Cart{
		ID:         c.id,
		UserID:     c.userID,
		Items:      items,
		TotalPrice: c.total,
		CreatedAt:  c.createdAt,
		UpdatedAt:  c.updatedAt,
	}
}

func (c *Cart) index(lineID string) (int, error) {
	for i := range c.items {
		if c.items[i].ID == lineID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
}

func (c *Cart) touch() {
	c.updatedAt = c.now()
	c.recompute()
}

func (c *Cart) recompute() {
	var total domain.Money
	for _, item := range c.items {
		total += item.ExtendedPrice()
	}
	c.total = total
}
