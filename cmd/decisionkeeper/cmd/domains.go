package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kaannakiin/decisionkeeper/internal/domains"
)

func newDomainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "List built-in domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DOMAIN\tFIELDS")
			for _, name := range domains.Names() {
				fields, err := domains.Fields(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\n", name, len(fields))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "describe DOMAIN",
		Short: "Print the field registry of a domain as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := domains.Fields(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(fields); err != nil {
				return fmt.Errorf("encode fields: %w", err)
			}
			return enc.Close()
		},
	})
	return cmd
}
