package domain

import "time"

type PlaceOrderRequest struct {
	CartID          string `json:"cartId"`
	ShippingAddress string `json:"shippingAddress"`
	Note            string `json:"note"`
	PaymentMethod   string `json:"paymentMethod"`
	UserID          string `json:"userId"`
	BranchID        int64  `json:"branchId"`
}

type PlaceOrderResult struct {
	OrderCode string `json:"orderCode"`
}

// OrderReceipt is the local record of an order accepted by the backend.
type OrderReceipt struct {
	IdempotencyKey string    `json:"idempotencyKey"`
	UserID         string    `json:"userId"`
	CartID         string    `json:"cartId"`
	OrderCode      string    `json:"orderCode"`
	TotalPrice     Money     `json:"totalPrice"`
	ItemCount      int       `json:"itemCount"`
	CreatedAt      time.Time `json:"createdAt"`
}
