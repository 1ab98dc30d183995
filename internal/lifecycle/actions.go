package lifecycle

// ActionKind names a transition an actor can request.
type ActionKind string

const (
	ActionAccept         ActionKind = "accept"
	ActionReject         ActionKind = "reject"
	ActionMarkPicked     ActionKind = "mark_picked"
	ActionMarkPacked     ActionKind = "mark_packed"
	ActionDeliver        ActionKind = "deliver"
	ActionMarkFailed     ActionKind = "mark_failed"
	ActionRetryDelivery  ActionKind = "retry_delivery"
	ActionReturnToVendor ActionKind = "return_to_vendor"

	// ActionDispatch is the partner pickup. It is not offered in any action
	// list; see CanDispatch.
	ActionDispatch ActionKind = "dispatch"
)

// Action is one permitted operation for a (status, role) pair.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Label  string     `json:"label"`
	Target Status     `json:"target"`
	// RequiresOTP actions go through the delivery confirmation flow.
	RequiresOTP bool `json:"requires_otp,omitempty"`
	// RequiresConfirmation actions are destructive and must be confirmed
	// before the request is sent.
	RequiresConfirmation bool `json:"requires_confirmation,omitempty"`
}

var (
	accept = Action{Kind: ActionAccept, Label: "Accept", Target: StatusConfirmed}
	reject = Action{Kind: ActionReject, Label: "Reject", Target: StatusCancelled, RequiresConfirmation: true}
	picked = Action{Kind: ActionMarkPicked, Label: "Mark Picked", Target: StatusPicked}
	packed = Action{Kind: ActionMarkPacked, Label: "Mark Packed", Target: StatusPacked}

	deliver      = Action{Kind: ActionDeliver, Label: "Mark Delivered", Target: StatusDelivered, RequiresOTP: true}
	markFailed   = Action{Kind: ActionMarkFailed, Label: "Mark Failed", Target: StatusOutForDelivery, RequiresConfirmation: true}
	retry        = Action{Kind: ActionRetryDelivery, Label: "Retry Delivery", Target: StatusOutForDelivery}
	returnVendor = Action{Kind: ActionReturnToVendor, Label: "Return to Vendor", Target: StatusReturned}
)

// transitions is the state x role table. A missing pair means no actions.
var transitions = map[Role]map[Status][]Action{
	RoleVendor: {
		StatusPlaced:    {accept, reject},
		StatusConfirmed: {picked},
		StatusPicked:    {packed},
	},
	RoleDeliveryPartner: {
		StatusOutForDelivery: {deliver, markFailed, retry, returnVendor},
	},
	RoleBuyer: {},
}

// Resolve returns the ordered actions role may take on an order at status.
// The returned slice is a copy.
func Resolve(status Status, role Role) []Action {
	acts := transitions[role][status]
	out := make([]Action, len(acts))
	copy(out, acts)
	return out
}

// Permits looks up a single action kind for (status, role).
func Permits(status Status, role Role, kind ActionKind) (Action, bool) {
	for _, a := range transitions[role][status] {
		if a.Kind == kind {
			return a, true
		}
	}
	return Action{}, false
}

// RoleCan reports whether role can ever perform kind, at any status.
func RoleCan(role Role, kind ActionKind) bool {
	if kind == ActionDispatch {
		return role == RoleDeliveryPartner
	}
	for _, acts := range transitions[role] {
		for _, a := range acts {
			if a.Kind == kind {
				return true
			}
		}
	}
	return false
}

// CanDispatch reports whether role may take an order at status out for
// delivery. Ownership passes to the delivery partner once it is packed.
func CanDispatch(status Status, role Role) bool {
	return role == RoleDeliveryPartner && status == StatusPacked
}

// TargetOf returns the status kind leads to, including dispatch.
func TargetOf(kind ActionKind) (Status, bool) {
	if kind == ActionDispatch {
		return StatusOutForDelivery, true
	}
	for _, byStatus := range transitions {
		for _, acts := range byStatus {
			for _, a := range acts {
				if a.Kind == kind {
					return a.Target, true
				}
			}
		}
	}
	return "", false
}
