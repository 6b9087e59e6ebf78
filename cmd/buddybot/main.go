package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/buddybot-backend/internal/app"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

// cli carries the state shared by every subcommand.
type cli struct {
	v   *viper.Viper
	cfg app.Config
	log *logger.Logger
}

func main() {
	c := &cli{}
	root := c.rootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	var configDir string
	root := &cobra.Command{
		Use:           "buddybot",
		Short:         "BuddyBot onboarding flows",
		Long:          "BuddyBot versions onboarding flows, assigns them to new hires and tracks their progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.v = app.NewViper(configDir)
			for flag, key := range map[string]string{
				"log-mode":  "LOG_MODE",
				"db-driver": "DB_DRIVER",
				"sqlite":    "SQLITE_PATH",
				"http-addr": "HTTP_ADDR",
			} {
				if f := cmd.Flags().Lookup(flag); f != nil {
					_ = c.v.BindPFlag(key, f)
				}
			}
			cfg, err := app.LoadConfig(c.v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg
			log, err := app.NewLogger(cfg.LogMode)
			if err != nil {
				return err
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				c.log.Sync()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", ".", "directory holding an optional app.env")
	pf.String("log-mode", "", "development or production")
	pf.String("db-driver", "", "postgres or sqlite")
	pf.String("sqlite", "", "sqlite database path")
	pf.Bool("json", false, "output JSON")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.flowCmd())
	root.AddCommand(c.assignmentCmd())
	root.AddCommand(c.outboxCmd())
	return root
}

// withApp builds the full application for one command and tears it down afterwards.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, c.log, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func jsonOutput(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("json")
	return on
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
