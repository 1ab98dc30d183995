package orders

import (
	"time"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

// Item is one line of an order.
type Item struct {
	ProductID string  `json:"product_id" dynamodbav:"product_id"`
	Quantity  int     `json:"quantity" dynamodbav:"quantity"`
	UnitPrice float64 `json:"unit_price" dynamodbav:"unit_price"`
}

// DeliveryFailure is the last failed delivery attempt reported by the partner.
type DeliveryFailure struct {
	Reason string    `json:"reason" dynamodbav:"reason"`
	Notes  string    `json:"notes,omitempty" dynamodbav:"notes,omitempty"`
	At     time.Time `json:"at" dynamodbav:"at"`
}

// Order represents the item stored in the Orders DynamoDB table.
type Order struct {
	OrderID     string                `json:"order_id" dynamodbav:"order_id"` // PK
	BuyerID     string                `json:"buyer_id" dynamodbav:"buyer_id"`
	VendorID    string                `json:"vendor_id" dynamodbav:"vendor_id"`
	PartnerID   string                `json:"partner_id,omitempty" dynamodbav:"partner_id,omitempty"` // set on dispatch
	Status      lifecycle.Status      `json:"status" dynamodbav:"status"`
	PaymentMode lifecycle.PaymentMode `json:"payment_mode" dynamodbav:"payment_mode"`
	TotalAmount float64               `json:"total_amount" dynamodbav:"total_amount"`
	Items       []Item                `json:"items" dynamodbav:"items"`

	StageTimestamps lifecycle.StageTimestamps `json:"stage_timestamps" dynamodbav:"stage_timestamps"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty" dynamodbav:"cancelled_at,omitempty"`
	ReturnedAt      *time.Time                `json:"returned_at,omitempty" dynamodbav:"returned_at,omitempty"`

	// DeliveryOTP exists from packed until it is consumed by the delivered transition.
	DeliveryOTP      string           `json:"delivery_otp,omitempty" dynamodbav:"delivery_otp,omitempty"`
	OTPVerifiedAt    *time.Time       `json:"otp_verified_at,omitempty" dynamodbav:"otp_verified_at,omitempty"`
	CODCollected     *bool            `json:"cod_collected,omitempty" dynamodbav:"cod_collected,omitempty"`
	DeliveryAttempts int              `json:"delivery_attempts,omitempty" dynamodbav:"delivery_attempts,omitempty"`
	LastFailure      *DeliveryFailure `json:"last_failure,omitempty" dynamodbav:"last_failure,omitempty"`
	CancelReason     string           `json:"cancel_reason,omitempty" dynamodbav:"cancel_reason,omitempty"`
	ReturnReason     string           `json:"return_reason,omitempty" dynamodbav:"return_reason,omitempty"`

	Version   int64     `json:"version" dynamodbav:"version"` // optimistic concurrency
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// TransitionInput carries the optional fields an action may need.
type TransitionInput struct {
	DeliveryOTP  string
	CODCollected *bool
	Reason       string
	Notes        string
}

// Result is the outcome of a successful transition.
type Result struct {
	Order Order
	From  lifecycle.Status
}
