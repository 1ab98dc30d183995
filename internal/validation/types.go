package validation

import "time"

// Item represents a single order line item.
type Item struct {
	ProductID string  `json:"product_id" validate:"required"`      // catalogue product reference
	Quantity  int     `json:"quantity" validate:"required,min=1"`  // must be >= 1
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"` // price per unit
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	VendorID    string     `json:"vendor_id" validate:"required"`
	Items       []Item     `json:"items" validate:"required,min=1,dive"`
	TotalAmount float64    `json:"total_amount" validate:"required,gt=0"`
	PaymentMode string     `json:"payment_mode" validate:"required,oneof=cod online"`
	CreatedAt   *time.Time `json:"created_at,omitempty"` // optional client timestamp
}

// RejectRequest is the optional payload for POST /orders/:id/reject
type RejectRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// MarkDeliveredRequest is the payload for POST /orders/:id/deliver.
// CODCollected is checked against the order's payment mode by the order rules.
type MarkDeliveredRequest struct {
	DeliveryOTP  string `json:"delivery_otp" validate:"required,numeric,min=4,max=8"`
	CODCollected *bool  `json:"cod_collected,omitempty"`
}

// MarkFailedRequest is the payload for POST /orders/:id/fail
type MarkFailedRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
	Notes  string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ReturnRequest is the payload for POST /orders/:id/return
type ReturnRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// FieldError is one entry of a validation error detail list.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}
