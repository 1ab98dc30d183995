package orders

import (
	"github.com/imrishuroy/go-marketplace-orderflow/internal/auth"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

// View is what a dashboard renders for one order and one actor.
type View struct {
	Order       Order              `json:"order"`
	Timeline    lifecycle.Timeline `json:"timeline"`
	Actions     []lifecycle.Action `json:"actions"`
	CanDispatch bool               `json:"can_dispatch,omitempty"`
}

// NewView builds the actor's view of o. The delivery OTP is only visible to
// the buyer, who reads it to the partner, and to the vendor, read-only.
func NewView(o Order, actor auth.Actor) View {
	o.Status = lifecycle.NormalizeOrDefault(string(o.Status))
	if !otpVisible(o.Status, actor.Role) {
		o.DeliveryOTP = ""
	}
	return View{
		Order:       o,
		Timeline:    lifecycle.BuildTimeline(o.Status, o.StageTimestamps),
		Actions:     lifecycle.Resolve(o.Status, actor.Role),
		CanDispatch: lifecycle.CanDispatch(o.Status, actor.Role),
	}
}

func otpVisible(s lifecycle.Status, role lifecycle.Role) bool {
	if role != lifecycle.RoleBuyer && role != lifecycle.RoleVendor {
		return false
	}
	return s == lifecycle.StatusPacked || s == lifecycle.StatusOutForDelivery
}
