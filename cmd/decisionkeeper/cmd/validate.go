package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/treefile"
)

// errInvalidTree is returned after the problems have been printed.
var errInvalidTree = errors.New("tree is invalid")

func newValidateCmd(g *globalFlags) *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "validate TREE_FILE",
		Short: "Validate a decision tree file against a domain",
		Long:  `Validate reports every structural, condition and result problem in a .json, .yaml or .yml tree file.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}

			tree, err := treefile.LoadTree(args[0])
			if err != nil {
				return err
			}

			err = engine.Validate(domain, tree)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: valid %s tree (%d nodes, %d edges)\n",
					args[0], domain, len(tree.Nodes), len(tree.Edges))
				return nil
			}

			problems := rules.Errors(err)
			if len(problems) == 1 && !isTreeProblem(problems[0]) {
				return err
			}
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", args[0], p)
			}
			return fmt.Errorf("%w: %d problem(s)", errInvalidTree, len(problems))
		},
	}

	cmd.Flags().StringVarP(&domain, "domain", "d", "", "domain the tree belongs to")
	cmd.MarkFlagRequired("domain")
	return cmd
}

func isTreeProblem(err error) bool {
	var treeErr *rules.TreeError
	var condErr *rules.ConditionError
	return errors.As(err, &treeErr) || errors.As(err, &condErr)
}
