package domain

import "time"

type Cart struct {
	ID         string         `bson:"cart_id" json:"id"`
	UserID     string         `bson:"user_id" json:"userId"`
	Items      []CartLineItem `bson:"items" json:"cartItems"`
	TotalPrice Money          `bson:"total_price" json:"totalPrice"`
	CreatedAt  time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `bson:"updated_at" json:"updatedAt"`
}

// CartLineItem holds frozen copies of the menu item and options it was priced from.
type CartLineItem struct {
	ID              string        `bson:"id" json:"id"`
	MenuItem        MenuItem      `bson:"menu_item" json:"menuItem"`
	Options         []OptionValue `bson:"options" json:"options"`
	Quantity        int           `bson:"quantity" json:"quantity"`
	PriceAtAddition Money         `bson:"price_at_addition" json:"priceAtAddition"`
	AddedAt         time.Time     `bson:"added_at" json:"addedAt"`
}

// ExtendedPrice is the unit price multiplied by quantity.
func (l CartLineItem) ExtendedPrice() Money {
	return l.PriceAtAddition * Money(l.Quantity)
}
