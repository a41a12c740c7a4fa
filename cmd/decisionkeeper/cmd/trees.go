package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaannakiin/decisionkeeper/internal/core/db"
	"github.com/kaannakiin/decisionkeeper/internal/treefile"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

func newTreesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trees",
		Short: "Manage stored decision trees",
	}

	var domain, name string
	importCmd := &cobra.Command{
		Use:   "import TREE_FILE",
		Short: "Validate a tree file and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := treefile.LoadTree(args[0])
			if err != nil {
				return err
			}
			store, closeDB, err := g.treeStore(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			stored, err := store.Create(cmd.Context(), domain, name, tree)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored.ID)
			return nil
		},
	}
	importCmd.Flags().StringVarP(&domain, "domain", "d", "", "domain the tree belongs to")
	importCmd.Flags().StringVar(&name, "name", "", "tree name")
	importCmd.MarkFlagRequired("domain")
	importCmd.MarkFlagRequired("name")

	var listDomain string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored trees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := g.treeStore(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			trees, err := store.List(cmd.Context(), listDomain)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDOMAIN\tNAME\tNODES\tUPDATED")
			for _, t := range trees {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Domain, t.Name, len(t.Tree.Nodes), t.UpdatedAt)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVarP(&listDomain, "domain", "d", "", "only trees of this domain")

	exportCmd := &cobra.Command{
		Use:   "export TREE_ID",
		Short: "Print a stored tree as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := g.treeStore(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			stored, err := store.Get(cmd.Context(), types.TreeID(args[0]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stored.Tree)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete TREE_ID",
		Short: "Delete a stored tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := g.treeStore(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := store.Delete(cmd.Context(), types.TreeID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(importCmd, listCmd, exportCmd, deleteCmd)
	return cmd
}

func (g *globalFlags) treeStore(cmd *cobra.Command) (*db.TreeStore, func(), error) {
	cfg, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	database, queries, err := openDB(cmd.Context(), cfg, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db.NewTreeStore(queries, engine), func() { database.Close() }, nil
}
