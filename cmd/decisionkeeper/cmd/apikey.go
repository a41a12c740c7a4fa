package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kaannakiin/decisionkeeper/internal/core/auth"
	"github.com/kaannakiin/decisionkeeper/internal/core/config"
)

func newAPIKeyCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage decision API keys",
	}

	var name, secretID string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key (printed once, only its HMAC is stored)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticator, closeDB, err := g.authenticator(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			id := secretID
			if id == "" {
				if id, err = defaultSecretID(); err != nil {
					return err
				}
			}

			key, apiKeyID, err := authenticator.Issue(cmd.Context(), id, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "api_key_id: %s\napi_key:    %s\n", apiKeyID, key)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "human-readable key name")
	create.Flags().StringVar(&secretID, "secret-id", "", "HMAC secret to bind the key to (default: the only configured secret)")
	create.MarkFlagRequired("name")

	revoke := &cobra.Command{
		Use:   "revoke API_KEY_ID",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticator, closeDB, err := g.authenticator(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := authenticator.Revoke(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("revoke %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, revoke)
	return cmd
}

func (g *globalFlags) authenticator(cmd *cobra.Command) (*auth.Authenticator, func(), error) {
	cfg, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}

	database, queries, err := openDB(cmd.Context(), cfg, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return auth.NewAuthenticator(secrets, queries, logger), func() { database.Close() }, nil
}

func defaultSecretID() (string, error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET)", config.EnvPrefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%d HMAC secrets configured, choose one with --secret-id: %v", len(ids), ids)
	}
}
