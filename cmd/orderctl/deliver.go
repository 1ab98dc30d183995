package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

func newDeliverCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver ORDER_ID",
		Short: "Confirm a delivery with the customer's OTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			v, err := c.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			flow := lifecycle.NewFlow(args[0], v.Order.PaymentMode, c)
			return runDeliver(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), flow)
		},
	}
}

// runDeliver drives flow from line based input until the order is
// delivered or the user quits.
func runDeliver(ctx context.Context, in io.Reader, out io.Writer, f *lifecycle.Flow) error {
	if err := f.Start(); err != nil {
		return err
	}
	sc := bufio.NewScanner(in)
	read := func(prompt string) (string, error) {
		if msg := f.Message(); msg != "" {
			fmt.Fprintln(out, msg)
		}
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(sc.Text()), nil
	}

	for {
		var err error
		switch f.State() {
		case lifecycle.FlowAwaitingOTP:
			prompt := "Delivery OTP (q to quit): "
			if f.OTP() != "" {
				prompt = "Delivery OTP (enter keeps " + f.OTP() + ", q to quit): "
			}
			line, rerr := read(prompt)
			if rerr != nil {
				return rerr
			}
			switch {
			case line == "q":
				_ = f.Cancel()
				fmt.Fprintln(out, "Cancelled.")
				return nil
			case line == "" && f.OTP() != "":
				err = f.Resume(ctx)
			default:
				err = f.EnterOTP(ctx, line)
			}

		case lifecycle.FlowAwaitingCOD:
			line, rerr := read("Cash collected? [y]es / [n]o / [b]ack: ")
			if rerr != nil {
				return rerr
			}
			switch strings.ToLower(line) {
			case "y", "yes":
				err = f.ConfirmCOD(ctx, true)
			case "n", "no":
				err = f.ConfirmCOD(ctx, false)
			case "b", "back":
				err = f.CloseCODDialog()
			default:
				fmt.Fprintln(out, "Please answer y, n or b.")
			}

		case lifecycle.FlowDelivered:
			fmt.Fprintln(out, "Delivered.")
			return nil

		default:
			return fmt.Errorf("delivery flow stopped in state %s", f.State())
		}

		// other failures leave a message on the flow and are shown on the next prompt
		if errors.Is(err, lifecycle.ErrFlowState) || errors.Is(err, context.Canceled) {
			return err
		}
	}
}
