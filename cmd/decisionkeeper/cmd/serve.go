package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaannakiin/decisionkeeper/internal/core/api"
	"github.com/kaannakiin/decisionkeeper/internal/core/auth"
	"github.com/kaannakiin/decisionkeeper/internal/core/config"
	"github.com/kaannakiin/decisionkeeper/internal/core/db"
	"github.com/kaannakiin/decisionkeeper/internal/core/server"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		host   string
		port   int
		noAuth bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC decision API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.DecisionAPI.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.DecisionAPI.Port = port
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, noAuth)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "gRPC server host")
	cmd.Flags().IntVar(&port, "port", 50061, "gRPC server port")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "serve without API key authentication (development only)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, noAuth bool) error {
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	database, queries, err := openDB(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'decisionkeeper migrate' first", s.ID)
		}
	}

	var authenticator *auth.Authenticator
	if noAuth {
		logger.Warn("API key authentication disabled")
	} else {
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		if len(secrets) == 0 {
			return fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET or pass --no-auth)", config.EnvPrefix)
		}
		authenticator = auth.NewAuthenticator(secrets, queries, logger)
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	service, err := api.NewDecisionService(engine, db.NewTreeStore(queries, engine), logger, cfg.DecisionAPI.MaxTreeBytes)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&cfg.DecisionAPI, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting decision API", "version", Version)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := grpcServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

