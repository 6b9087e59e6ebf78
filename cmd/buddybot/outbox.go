package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yungbote/buddybot-backend/internal/app"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

func (c *cli) outboxCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "outbox", Short: "Inspect and drive the event outbox"}
	cmd.AddCommand(c.outboxDispatchOnceCmd())
	cmd.AddCommand(c.outboxListCmd())
	return cmd
}

func (c *cli) outboxDispatchOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch-once",
		Short: "Claim and publish one batch of due events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				stats, err := a.Dispatcher.DispatchOnce(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(stats)
				}
				fmt.Printf("claimed=%d dispatched=%d failed=%d gave_up=%d\n", stats.Claimed, stats.Dispatched, stats.Failed, stats.GaveUp)
				return nil
			})
		},
	}
}

func (c *cli) outboxListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox rows by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := flows.OutboxStatus(status)
			switch st {
			case flows.OutboxPending, flows.OutboxDispatched, flows.OutboxFailed:
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				rows, err := a.Repos.Outbox.ListByStatus(dbctx.Context{Ctx: cmd.Context()}, st, limit)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Aggregate", "Attempts", "Next attempt", "Last error"})
				for _, r := range rows {
					tw.AppendRow(table.Row{r.ID, r.EventType, r.AggregateID, r.Attempts, r.NextAttemptAt.Format("2006-01-02 15:04:05"), r.LastError})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(flows.OutboxFailed), "pending, dispatched or failed")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}
