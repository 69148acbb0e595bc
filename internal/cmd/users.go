package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panelops/panelctl/internal/api"
	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/output"
)

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"user"},
	Short:   "List panel users",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParams(cmd, "role")
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			page, err := rt.client.ListUsers(ctx, params)
			if err != nil {
				return err
			}
			return render(cmd, output.UsersView(page))
		})
	},
}

var paymentsCmd = &cobra.Command{
	Use:     "payments",
	Aliases: []string{"payment"},
	Short:   "Wallet payments",
}

var paymentFilters = []string{"user-id", "method"}

var paymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List payments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParams(cmd, paymentFilters...)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			page, err := rt.client.ListPayments(ctx, params)
			if err != nil {
				return err
			}
			return render(cmd, output.PaymentsView(page))
		})
	},
}

var topUp struct {
	user   string
	amount string
	method string
	note   string
}

var paymentsTopUpCmd = &cobra.Command{
	Use:   "topup",
	Short: "Credit a user's balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(topUp.user, "user")
		if err != nil {
			return err
		}
		amount := strings.TrimSpace(topUp.amount)
		if amount == "" {
			return fmt.Errorf("--amount is required")
		}

		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			payment, err := rt.client.TopUp(ctx, api.TopUpRequest{
				UserID: userID,
				Amount: amount,
				Method: topUp.method,
				Note:   topUp.note,
			})
			metrics.RecordOperation("top_up", err == nil)
			if err != nil {
				return err
			}
			return render(cmd, output.PaymentView(payment))
		})
	},
}

func init() {
	rootCmd.AddCommand(usersCmd, paymentsCmd)
	paymentsCmd.AddCommand(paymentsListCmd, paymentsTopUpCmd)

	addListFlags(usersCmd, "role")
	addListFlags(paymentsListCmd, paymentFilters...)

	paymentsTopUpCmd.Flags().StringVar(&topUp.user, "user", "", "user id to credit")
	paymentsTopUpCmd.Flags().StringVar(&topUp.amount, "amount", "", "amount, e.g. 25.00")
	paymentsTopUpCmd.Flags().StringVar(&topUp.method, "method", "manual", "payment method recorded with the top-up")
	paymentsTopUpCmd.Flags().StringVar(&topUp.note, "note", "", "note shown in the payment history")
	_ = paymentsTopUpCmd.MarkFlagRequired("user")
	_ = paymentsTopUpCmd.MarkFlagRequired("amount")
}
