package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yungbote/buddybot-backend/internal/app"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

func (c *cli) assignmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assignment", Short: "Inspect assignments"}
	cmd.AddCommand(&cobra.Command{
		Use:   "progress <assignment-id>",
		Short: "Show per-step progress of an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid assignment id: %w", err)
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				view, err := a.Services.ProgressQuery.GetAssignmentProgress(dbctx.Context{Ctx: cmd.Context()}, id)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(view)
				}
				fmt.Printf("%s v%d  %s  %d%%\n", view.FlowTitle, view.FlowVersion, view.Assignment.Status, view.ProgressPercent)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Step", "Component", "Type", "Required", "Status", "Attempts", "Minutes"})
				for _, st := range view.Steps {
					label := fmt.Sprintf("%d. %s", st.Sequence, st.Title)
					if st.Locked {
						label += " (locked)"
					}
					for _, comp := range st.Components {
						tw.AppendRow(table.Row{label, comp.Title, comp.Type, comp.Required, comp.Status, comp.Attempts, comp.TimeSpentMinutes})
						label = ""
					}
				}
				tw.Render()
				return nil
			})
		},
	})
	return cmd
}
