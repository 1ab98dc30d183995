package orders

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/auth"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrForbidden            = errors.New("actor may not act on this order")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrOTPRequired          = errors.New("delivery otp is required")
	ErrInvalidOTP           = errors.New("invalid otp")
	ErrCODFlagRequired      = errors.New("cod_collected is required for cash on delivery orders")
	ErrReasonRequired       = errors.New("reason is required")
)

// NewDeliveryOTP returns a random 6 digit code.
func NewDeliveryOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// CanView reports whether actor may read o. A delivery partner sees packed
// orders nobody has picked up yet, and afterwards only their own.
func CanView(o *Order, actor auth.Actor) bool {
	switch actor.Role {
	case lifecycle.RoleBuyer:
		return o.BuyerID == actor.ID
	case lifecycle.RoleVendor:
		return o.VendorID == actor.ID
	case lifecycle.RoleDeliveryPartner:
		if o.PartnerID == "" {
			return lifecycle.NormalizeOrDefault(string(o.Status)) == lifecycle.StatusPacked
		}
		return o.PartnerID == actor.ID
	default:
		return false
	}
}

// apply checks that actor may perform kind on o and mutates o accordingly.
// otp is only used by mark_packed.
func apply(o *Order, kind lifecycle.ActionKind, actor auth.Actor, in TransitionInput, now time.Time, otp string) error {
	status := lifecycle.NormalizeOrDefault(string(o.Status))
	o.Status = status

	if !lifecycle.RoleCan(actor.Role, kind) || !CanView(o, actor) {
		return ErrForbidden
	}
	if kind == lifecycle.ActionDispatch {
		if !lifecycle.CanDispatch(status, actor.Role) {
			return fmt.Errorf("%w: %s at %s", ErrTransitionNotAllowed, kind, status)
		}
	} else if _, ok := lifecycle.Permits(status, actor.Role, kind); !ok {
		return fmt.Errorf("%w: %s at %s", ErrTransitionNotAllowed, kind, status)
	}

	now = now.UTC()
	switch kind {
	case lifecycle.ActionAccept:
		o.advance(lifecycle.StatusConfirmed, now)

	case lifecycle.ActionReject:
		o.Status = lifecycle.StatusCancelled
		o.CancelledAt = &now
		o.CancelReason = strings.TrimSpace(in.Reason)

	case lifecycle.ActionMarkPicked:
		o.advance(lifecycle.StatusPicked, now)

	case lifecycle.ActionMarkPacked:
		if otp == "" {
			return errors.New("packed transition needs a delivery otp")
		}
		o.advance(lifecycle.StatusPacked, now)
		o.DeliveryOTP = otp

	case lifecycle.ActionDispatch:
		o.advance(lifecycle.StatusOutForDelivery, now)
		o.PartnerID = actor.ID
		o.DeliveryAttempts = 1

	case lifecycle.ActionDeliver:
		given := strings.TrimSpace(in.DeliveryOTP)
		if given == "" {
			return ErrOTPRequired
		}
		if o.DeliveryOTP == "" || o.OTPVerifiedAt != nil ||
			subtle.ConstantTimeCompare([]byte(given), []byte(o.DeliveryOTP)) != 1 {
			return ErrInvalidOTP
		}
		if o.PaymentMode == lifecycle.PaymentCOD {
			if in.CODCollected == nil {
				return ErrCODFlagRequired
			}
			collected := *in.CODCollected
			o.CODCollected = &collected
		}
		o.advance(lifecycle.StatusDelivered, now)
		o.OTPVerifiedAt = &now
		o.DeliveryOTP = ""
		o.LastFailure = nil

	case lifecycle.ActionMarkFailed:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return ErrReasonRequired
		}
		o.LastFailure = &DeliveryFailure{Reason: reason, Notes: strings.TrimSpace(in.Notes), At: now}

	case lifecycle.ActionRetryDelivery:
		o.DeliveryAttempts++
		o.LastFailure = nil

	case lifecycle.ActionReturnToVendor:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return ErrReasonRequired
		}
		o.Status = lifecycle.StatusReturned
		o.ReturnedAt = &now
		o.ReturnReason = reason

	default:
		return fmt.Errorf("%w: unknown action %s", ErrTransitionNotAllowed, kind)
	}
	return nil
}

func (o *Order) advance(to lifecycle.Status, now time.Time) {
	o.Status = to
	o.StageTimestamps.Set(to, now)
}
