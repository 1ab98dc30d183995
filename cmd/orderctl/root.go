package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/auth"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/client"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/config"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/validation"
)

var actionNames = map[string]lifecycle.ActionKind{
	"accept":   lifecycle.ActionAccept,
	"reject":   lifecycle.ActionReject,
	"pick":     lifecycle.ActionMarkPicked,
	"pack":     lifecycle.ActionMarkPacked,
	"dispatch": lifecycle.ActionDispatch,
	"fail":     lifecycle.ActionMarkFailed,
	"retry":    lifecycle.ActionRetryDelivery,
	"return":   lifecycle.ActionReturnToVendor,
}

type globalOpts struct {
	api   string
	token string
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:           "orderctl",
		Short:         "Inspect and move marketplace orders through their lifecycle",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.api, "api", envOr("ORDERCTL_API", "http://localhost:8080"), "orders API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ORDERCTL_TOKEN"), "bearer token")

	root.AddCommand(newShowCmd(opts), newActCmd(opts), newDeliverCmd(opts), newTokenCmd())
	return root
}

func (o *globalOpts) client() *client.Client {
	return client.New(strings.TrimRight(o.api, "/"), o.token)
}

func newShowCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "show ORDER_ID",
		Short: "Show an order's timeline and the actions available to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := opts.client().GetOrder(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			render(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newActCmd(opts *globalOpts) *cobra.Command {
	var (
		reason string
		notes  string
		key    string
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "act ORDER_ID ACTION",
		Short: "Perform an action: accept, reject, pick, pack, dispatch, fail, retry or return",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := actionNames[args[1]]
			if !ok {
				return fmt.Errorf("unknown action %q", args[1])
			}
			c := opts.client()
			ctx := cmd.Context()

			v, err := c.GetOrder(ctx, args[0])
			if err != nil {
				return describe(err)
			}
			if a, ok := findAction(v.Actions, kind); ok && a.RequiresConfirmation && !yes {
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("%s order %s?", a.Label, args[0])) {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}

			v, err = c.Perform(ctx, args[0], kind, payloadFor(kind, reason, notes), key)
			if err != nil {
				return describe(err)
			}
			render(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason for reject, fail or return")
	cmd.Flags().StringVar(&notes, "notes", "", "notes for a failed delivery")
	cmd.Flags().StringVar(&key, "idempotency-key", "", "Idempotency-Key to send")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func payloadFor(kind lifecycle.ActionKind, reason, notes string) interface{} {
	switch kind {
	case lifecycle.ActionReject:
		return validation.RejectRequest{Reason: reason}
	case lifecycle.ActionMarkFailed:
		return validation.MarkFailedRequest{Reason: reason, Notes: notes}
	case lifecycle.ActionReturnToVendor:
		return validation.ReturnRequest{Reason: reason}
	}
	return nil
}

func findAction(actions []lifecycle.Action, kind lifecycle.ActionKind) (lifecycle.Action, bool) {
	for _, a := range actions {
		if a.Kind == kind {
			return a, true
		}
	}
	return lifecycle.Action{}, false
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newTokenCmd() *cobra.Command {
	var (
		sub  string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			r := lifecycle.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := auth.BuildToken(cfg.JWTSecret, auth.Actor{ID: sub, Role: r}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "buyer, vendor or delivery_partner")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
