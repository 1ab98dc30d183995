package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// FlowState is a step of the delivery confirmation flow.
type FlowState string

const (
	FlowIdle        FlowState = "idle"
	FlowAwaitingOTP FlowState = "awaiting_otp"
	FlowAwaitingCOD FlowState = "awaiting_cod_confirmation"
	FlowSubmitting  FlowState = "submitting"
	FlowDelivered   FlowState = "delivered"
)

// OTPRejectedMessage is shown when the server rejects the entered OTP.
const OTPRejectedMessage = "Invalid OTP. Please verify with customer."

var (
	// ErrOTPRejected must be returned (or wrapped) by a Submitter when the
	// server refuses the OTP.
	ErrOTPRejected    = errors.New("delivery otp rejected")
	ErrEmptyOTP       = errors.New("delivery otp is required")
	ErrSubmitInFlight = errors.New("delivery confirmation already submitting")
	ErrFlowState      = errors.New("action not valid in current step")
)

// DeliveryConfirmation is the body of the terminal mark-delivered call.
// CODCollected is only set for cash-on-delivery orders.
type DeliveryConfirmation struct {
	DeliveryOTP  string `json:"delivery_otp"`
	CODCollected *bool  `json:"cod_collected,omitempty"`
}

// Submitter sends the terminal mark-delivered call.
type Submitter interface {
	SubmitDelivery(ctx context.Context, orderID string, c DeliveryConfirmation) error
}

// Flow walks a delivery partner from "Mark Delivered" to a delivered order:
//
//	idle -> awaiting_otp -> [awaiting_cod_confirmation] -> submitting -> delivered
//
// The entered OTP is held by the flow itself until it is submitted, so closing
// and reopening the COD step never loses it.
type Flow struct {
	mu      sync.Mutex
	orderID string
	mode    PaymentMode
	submit  Submitter

	state   FlowState
	otp     string
	message string
}

func NewFlow(orderID string, mode PaymentMode, s Submitter) *Flow {
	return &Flow{orderID: orderID, mode: mode, submit: s, state: FlowIdle}
}

func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OTP is the value currently held for submission.
func (f *Flow) OTP() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.otp
}

// Message is the error text to surface for the current step, if any.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Start opens the OTP step.
func (f *Flow) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowIdle {
		return f.stateErr("start")
	}
	f.state = FlowAwaitingOTP
	f.otp = ""
	f.message = ""
	return nil
}

// EnterOTP accepts the OTP read from the customer. Online orders are
// submitted right away; COD orders move on to the collection step.
func (f *Flow) EnterOTP(ctx context.Context, otp string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enterLocked(ctx, strings.TrimSpace(otp))
}

// Resume continues from the OTP step with the OTP already held, e.g. after
// the COD step was closed.
func (f *Flow) Resume(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enterLocked(ctx, f.otp)
}

func (f *Flow) enterLocked(ctx context.Context, otp string) error {
	if f.state == FlowSubmitting {
		return ErrSubmitInFlight
	}
	if f.state != FlowAwaitingOTP {
		return f.stateErr("enter otp")
	}
	if otp == "" {
		f.message = "Please enter the delivery OTP."
		return ErrEmptyOTP
	}
	f.otp = otp
	f.message = ""
	if f.mode == PaymentCOD {
		f.state = FlowAwaitingCOD
		return nil
	}
	return f.submitLocked(ctx, FlowAwaitingOTP, nil)
}

// ConfirmCOD submits the held OTP together with whether cash was collected.
func (f *Flow) ConfirmCOD(ctx context.Context, collected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowSubmitting {
		return ErrSubmitInFlight
	}
	if f.state != FlowAwaitingCOD {
		return f.stateErr("confirm cod")
	}
	return f.submitLocked(ctx, FlowAwaitingCOD, &collected)
}

// CloseCODDialog steps back to the OTP step, keeping the held OTP.
func (f *Flow) CloseCODDialog() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FlowAwaitingCOD {
		return f.stateErr("close cod dialog")
	}
	f.state = FlowAwaitingOTP
	return nil
}

// Cancel abandons the flow. A request already in flight is not aborted, so
// Cancel is refused while submitting.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case FlowSubmitting:
		return ErrSubmitInFlight
	case FlowDelivered:
		return f.stateErr("cancel")
	}
	f.state = FlowIdle
	f.otp = ""
	f.message = ""
	return nil
}

// submitLocked is called with f.mu held. The lock is released for the
// duration of the network call and re-acquired before returning.
func (f *Flow) submitLocked(ctx context.Context, prev FlowState, cod *bool) error {
	if f.otp == "" {
		f.state = FlowAwaitingOTP
		f.message = "Please enter the delivery OTP."
		return ErrEmptyOTP
	}
	req := DeliveryConfirmation{DeliveryOTP: f.otp, CODCollected: cod}
	f.state = FlowSubmitting

	f.mu.Unlock()
	err := f.submit.SubmitDelivery(ctx, f.orderID, req)
	f.mu.Lock()

	switch {
	case err == nil:
		f.state = FlowDelivered
		f.message = ""
	case errors.Is(err, ErrOTPRejected):
		f.state = FlowAwaitingOTP
		f.message = OTPRejectedMessage
	default:
		f.state = prev
		f.message = err.Error()
	}
	return err
}

func (f *Flow) stateErr(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrFlowState, op, f.state)
}
