package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yungbote/buddybot-backend/internal/app"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/flowspec"
)

func (c *cli) flowCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "flow", Short: "Manage flow definitions"}
	cmd.AddCommand(c.flowImportCmd())
	cmd.AddCommand(c.flowHistoryCmd())
	cmd.AddCommand(c.flowActivateCmd())
	return cmd
}

func (c *cli) flowImportCmd() *cobra.Command {
	var file, builtin, actor string
	var activate bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a YAML flow definition as a new draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (builtin == "") {
				return fmt.Errorf("exactly one of --file or --builtin is required (builtins: %s)", strings.Join(flowspec.BuiltinNames(), ", "))
			}
			actorID, err := parseActor(actor)
			if err != nil {
				return err
			}
			var spec *flowspec.FlowSpec
			if file != "" {
				spec, err = flowspec.LoadFile(file)
			} else {
				spec, err = flowspec.Builtin(builtin)
			}
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				res, err := flowspec.Import(cmd.Context(), a.Aggregates.Authoring, spec, actorID, activate)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(res)
				}
				fmt.Printf("imported %q as flow %s version %d (%d steps, %d components, active=%t)\n",
					res.Flow.Title, res.Flow.OriginalID, res.Flow.Version, res.Steps, res.Components, res.Activated)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a flow YAML file")
	cmd.Flags().StringVar(&builtin, "builtin", "", "name of a bundled template")
	cmd.Flags().StringVar(&actor, "actor-id", "", "author user id (random when empty)")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate the imported version")
	return cmd
}

func (c *cli) flowHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <original-id>",
		Short: "List every version of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			originalID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid original id: %w", err)
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				var versions []*flows.Flow
				for f, err := range a.FlowVersions().History(cmd.Context(), originalID) {
					if err != nil {
						return err
					}
					versions = append(versions, f)
				}
				if len(versions) == 0 {
					return fmt.Errorf("flow %s not found", originalID)
				}
				if jsonOutput(cmd) {
					return printJSON(versions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Version", "ID", "Status", "Active", "Title", "Steps", "Created"})
				for _, f := range versions {
					active := ""
					if f.IsActive {
						active = "*"
					}
					tw.AppendRow(table.Row{f.Version, f.ID, f.Status, active, f.Title, f.TotalSteps, f.CreatedAt.Format("2006-01-02 15:04")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func (c *cli) flowActivateCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "activate <version-id>",
		Short: "Activate a flow version, rolling back when it is older than the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			versionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid version id: %w", err)
			}
			actorID, err := parseActor(actor)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Aggregates.Authoring.ActivateFlowVersion(cmd.Context(), domainagg.ActivateFlowVersionInput{
					FlowVersionID: versionID,
					ActorID:       actorID,
				})
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(res)
				}
				if res.AlreadyActive {
					fmt.Printf("version %d is already active\n", res.Flow.Version)
					return nil
				}
				fmt.Printf("activated version %d of flow %s\n", res.Flow.Version, res.Flow.OriginalID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor-id", "", "acting user id")
	return cmd
}

func parseActor(raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --actor-id: %w", err)
	}
	return id, nil
}
