package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/auth"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

// Event types published to the order events queue.
const (
	EventPlaced       = "order.placed"
	EventTransitioned = "order.transitioned"
)

// Event is the payload sent from API -> SQS -> worker.
type Event struct {
	EventID      string                `json:"event_id"`
	Type         string                `json:"type"`
	OrderID      string                `json:"order_id"`
	Action       lifecycle.ActionKind  `json:"action,omitempty"`
	From         lifecycle.Status      `json:"from,omitempty"`
	To           lifecycle.Status      `json:"to"`
	ActorID      string                `json:"actor_id"`
	ActorRole    lifecycle.Role        `json:"actor_role"`
	VendorID     string                `json:"vendor_id"`
	PartnerID    string                `json:"partner_id,omitempty"`
	PaymentMode  lifecycle.PaymentMode `json:"payment_mode"`
	TotalAmount  float64               `json:"total_amount"`
	CODCollected *bool                 `json:"cod_collected,omitempty"`
	OccurredAt   time.Time             `json:"occurred_at"`
}

// PlacedEvent describes a newly created order.
func PlacedEvent(o Order, actor auth.Actor) Event {
	return newEvent(EventPlaced, o, "", "", actor)
}

// TransitionEvent describes the result of a successful action.
func TransitionEvent(r Result, kind lifecycle.ActionKind, actor auth.Actor) Event {
	return newEvent(EventTransitioned, r.Order, kind, r.From, actor)
}

func newEvent(typ string, o Order, kind lifecycle.ActionKind, from lifecycle.Status, actor auth.Actor) Event {
	return Event{
		EventID:      uuid.NewString(),
		Type:         typ,
		OrderID:      o.OrderID,
		Action:       kind,
		From:         from,
		To:           o.Status,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		VendorID:     o.VendorID,
		PartnerID:    o.PartnerID,
		PaymentMode:  o.PaymentMode,
		TotalAmount:  o.TotalAmount,
		CODCollected: o.CODCollected,
		OccurredAt:   o.UpdatedAt,
	}
}

// Attributes are the SQS message attributes for e.
func (e Event) Attributes(correlationID string) map[string]string {
	return map[string]string{
		"event_type":     e.Type,
		"order_id":       e.OrderID,
		"to_status":      string(e.To),
		"correlation_id": correlationID,
	}
}
