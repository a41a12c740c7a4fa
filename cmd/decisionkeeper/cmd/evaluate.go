package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/treefile"
)

func newEvaluateCmd(g *globalFlags) *cobra.Command {
	var (
		domain      string
		contextFile string
		withTrace   bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate TREE_FILE",
		Short: "Evaluate a decision tree file against a context",
		Long:  `Evaluate validates the tree, walks it with the given context and prints the result as JSON.`,
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

			evalCtx := rules.Context{}
			if contextFile != "" {
				if evalCtx, err = treefile.LoadContext(contextFile); err != nil {
					return err
				}
			}

			result, err := engine.Evaluate(domain, tree, evalCtx)
			if err != nil {
				return err
			}
			if !withTrace {
				result.Trace = nil
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&domain, "domain", "d", "", "domain the tree belongs to")
	cmd.Flags().StringVarP(&contextFile, "context", "c", "", "context file (.json, .yaml or .yml)")
	cmd.Flags().BoolVar(&withTrace, "trace", false, "include the visited nodes in the output")
	cmd.MarkFlagRequired("domain")
	return cmd
}
