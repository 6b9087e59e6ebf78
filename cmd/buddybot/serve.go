package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/buddybot-backend/internal/app"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox dispatcher and the event consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return a.Run(cmd.Context())
			})
		},
	}
	cmd.Flags().String("http-addr", "", "listen address")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.OpenDB(c.log, c.cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			c.log.Info("migration complete", "driver", c.cfg.DBDriver)
			return nil
		},
	}
}
