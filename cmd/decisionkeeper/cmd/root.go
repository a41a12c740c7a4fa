// Package cmd implements the decisionkeeper command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/kaannakiin/decisionkeeper/internal/core/config"
	"github.com/kaannakiin/decisionkeeper/internal/core/db"
	"github.com/kaannakiin/decisionkeeper/internal/core/logging"
	"github.com/kaannakiin/decisionkeeper/internal/domains"
	"github.com/kaannakiin/decisionkeeper/internal/rules"
)

// Version is the release version reported by the binary.
const Version = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
}

// NewRootCmd builds the command tree. Each call returns independent flag
// state, which keeps tests isolated.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "decisionkeeper",
		Short:         "decisionkeeper decision tree engine",
		Long:          `decisionkeeper validates and evaluates visual decision trees for payment routing, customer segmentation and other registered domains.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "config file path")
	root.PersistentFlags().StringVar(&g.dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format (json, text)")

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newValidateCmd(g),
		newEvaluateCmd(g),
		newDomainsCmd(),
		newAPIKeyCmd(g),
		newTreesCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads configuration and applies global flag overrides on top.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(g.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.dbURL != "" {
		cfg.Database.URL = g.dbURL
	}
	if g.logLevel != "" {
		cfg.Log.Level = strings.ToLower(g.logLevel)
	}
	if g.logFormat != "" {
		cfg.Log.Format = strings.ToLower(g.logFormat)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, w)
}

// newEngine registers the built-in domains.
func newEngine(cfg *config.Config, logger *slog.Logger) (*rules.Engine, error) {
	reg := rules.NewRegistry()
	if err := domains.Register(reg, cfg.Engine.MinResultNodes); err != nil {
		return nil, fmt.Errorf("failed to register domains: %w", err)
	}
	logger.Info("domains registered", "domains", reg.Names())
	return rules.NewEngine(reg, logger), nil
}

// openDB opens the database and loads the named queries. With migrate set,
// pending migrations are applied first.
func openDB(ctx context.Context, cfg *config.Config, migrate bool) (*sqlx.DB, *db.Queries, error) {
	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if _, err := db.MigrateUp(ctx, database); err != nil {
			database.Close()
			return nil, nil, err
		}
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, queries, nil
}
