package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/client"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/orders"
)

var stageMarks = map[lifecycle.StageState]string{
	lifecycle.StageCompleted: "[x]",
	lifecycle.StageCurrent:   "[>]",
	lifecycle.StagePending:   "[ ]",
}

func render(w io.Writer, v *orders.View) {
	o := v.Order
	fmt.Fprintf(w, "Order %s  %s  (%s, %.2f)\n", o.OrderID, o.Status.Label(), o.PaymentMode, o.TotalAmount)
	if v.Timeline.Terminal != "" {
		fmt.Fprintf(w, "  %s\n", v.Timeline.Banner)
	}
	for _, s := range v.Timeline.Stages {
		at := ""
		if s.At != nil {
			at = s.At.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "  %s %-18s %s\n", stageMarks[s.State], s.Label, at)
	}

	if o.DeliveryOTP != "" {
		fmt.Fprintf(w, "Delivery OTP: %s\n", o.DeliveryOTP)
	}
	if o.LastFailure != nil {
		fmt.Fprintf(w, "Last attempt failed: %s\n", o.LastFailure.Reason)
	}

	var names []string
	for _, a := range v.Actions {
		name := string(a.Kind)
		switch {
		case a.RequiresOTP:
			name += " (otp)"
		case a.RequiresConfirmation:
			name += " (confirm)"
		}
		names = append(names, name)
	}
	if v.CanDispatch {
		names = append(names, string(lifecycle.ActionDispatch))
	}
	if len(names) == 0 {
		fmt.Fprintln(w, "No actions available.")
		return
	}
	fmt.Fprintf(w, "Actions: %s\n", strings.Join(names, ", "))
}

// describe turns API errors into the message the server meant for people.
func describe(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.IsAuth():
		return fmt.Errorf("not authorized: %s", apiErr.Message())
	case apiErr.IsNotFound():
		return fmt.Errorf("not found: %s", apiErr.Message())
	default:
		return errors.New(apiErr.Message())
	}
}
