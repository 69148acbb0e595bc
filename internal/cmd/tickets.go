package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/output"
)

var ticketsCmd = &cobra.Command{
	Use:     "tickets",
	Aliases: []string{"ticket"},
	Short:   "Support tickets",
}

var ticketFilters = []string{"user-id"}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := listParams(cmd, ticketFilters...)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			page, err := rt.client.ListTickets(ctx, params)
			if err != nil {
				return err
			}
			return render(cmd, output.TicketsView(page))
		})
	},
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a ticket thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "ticket")
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			ticket, err := rt.client.GetTicket(ctx, id)
			if err != nil {
				return err
			}
			return render(cmd, output.TicketView(ticket))
		})
	},
}

var ticketReplyMessage string

var ticketsReplyCmd = &cobra.Command{
	Use:   "reply <id> [message]",
	Short: "Reply to a ticket",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "ticket")
		if err != nil {
			return err
		}
		message := ticketReplyMessage
		if len(args) == 2 {
			message = args[1]
		}
		if strings.TrimSpace(message) == "" {
			return fmt.Errorf("reply message is required")
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			ticket, err := rt.client.ReplyTicket(ctx, id, message)
			metrics.RecordOperation("ticket_reply", err == nil)
			if err != nil {
				return err
			}
			return render(cmd, output.TicketView(ticket))
		})
	},
}

var ticketsCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "ticket")
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, rt *panelRuntime) error {
			ticket, err := rt.client.CloseTicket(ctx, id)
			metrics.RecordOperation("ticket_close", err == nil)
			if err != nil {
				return err
			}
			return render(cmd, output.TicketView(ticket))
		})
	},
}

func init() {
	rootCmd.AddCommand(ticketsCmd)
	ticketsCmd.AddCommand(ticketsListCmd, ticketsShowCmd, ticketsReplyCmd, ticketsCloseCmd)
	addListFlags(ticketsListCmd, ticketFilters...)
	ticketsReplyCmd.Flags().StringVarP(&ticketReplyMessage, "message", "m", "", "reply text")
}
