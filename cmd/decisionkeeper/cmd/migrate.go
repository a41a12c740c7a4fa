package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaannakiin/decisionkeeper/internal/core/db"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			database, err := db.Open(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			applied, err := db.MigrateUp(cmd.Context(), database)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				return nil
			}
			for _, id := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", id)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			database, err := db.Open(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			statuses, err := db.MigrateStatus(cmd.Context(), database)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT")
			for _, s := range statuses {
				state, at := "pending", "-"
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						at = s.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, state, at)
			}
			return w.Flush()
		},
	})
	return cmd
}
