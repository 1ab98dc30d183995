package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a canonical order status.
type Status string

const (
	StatusPlaced         Status = "placed"
	StatusConfirmed      Status = "confirmed"
	StatusPicked         Status = "picked"
	StatusPacked         Status = "packed"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusReturned       Status = "returned"
)

// ForwardStages is the canonical forward sequence, in order.
var ForwardStages = []Status{
	StatusPlaced,
	StatusConfirmed,
	StatusPicked,
	StatusPacked,
	StatusOutForDelivery,
	StatusDelivered,
}

// ErrUnknownStatus is returned by Normalize for tokens outside the known set.
var ErrUnknownStatus = errors.New("unknown status")

// legacy tokens still returned by older records and clients
var legacyAliases = map[string]Status{
	"pending":    StatusPlaced,
	"processing": StatusPicked,
	"shipped":    StatusOutForDelivery,
}

// Normalize maps a raw status token onto its canonical status.
// Applying it to its own output returns the same value.
func Normalize(raw string) (Status, error) {
	tok := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := legacyAliases[tok]; ok {
		return s, nil
	}
	s := Status(tok)
	if s.IsValid() {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// NormalizeOrDefault is Normalize with unknown tokens shown as placed.
func NormalizeOrDefault(raw string) Status {
	s, err := Normalize(raw)
	if err != nil {
		return StatusPlaced
	}
	return s
}

func (s Status) String() string { return string(s) }

// IsValid reports whether s is one of the canonical statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlaced, StatusConfirmed, StatusPicked, StatusPacked,
		StatusOutForDelivery, StatusDelivered, StatusCancelled, StatusReturned:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusReturned
}

// Index is the position of s in ForwardStages, or -1.
func (s Status) Index() int {
	for i, st := range ForwardStages {
		if st == s {
			return i
		}
	}
	return -1
}

// Label is the display name shared by every dashboard.
func (s Status) Label() string {
	switch s {
	case StatusPlaced:
		return "Order Placed"
	case StatusConfirmed:
		return "Confirmed"
	case StatusPicked:
		return "Picked"
	case StatusPacked:
		return "Packed"
	case StatusOutForDelivery:
		return "Out for Delivery"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	case StatusReturned:
		return "Returned"
	default:
		return string(s)
	}
}

// PaymentMode is how the buyer pays for an order.
type PaymentMode string

const (
	PaymentCOD    PaymentMode = "cod"
	PaymentOnline PaymentMode = "online"
)

func (m PaymentMode) IsValid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

// Role is the kind of actor looking at or acting on an order.
type Role string

const (
	RoleBuyer           Role = "buyer"
	RoleVendor          Role = "vendor"
	RoleDeliveryPartner Role = "delivery_partner"
)

// Roles lists every role the resolver knows about.
var Roles = []Role{RoleBuyer, RoleVendor, RoleDeliveryPartner}

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleVendor, RoleDeliveryPartner:
		return true
	default:
		return false
	}
}

// AllStatuses is every canonical status, forward stages first.
var AllStatuses = append(append([]Status{}, ForwardStages...), StatusCancelled, StatusReturned)
