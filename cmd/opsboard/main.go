package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"opsboard/internal/config"
	"opsboard/internal/core"
	"opsboard/internal/data"
	"opsboard/internal/logger"
	"opsboard/internal/service"
)

// platformCommands is extended by OS specific files.
var platformCommands []*cobra.Command

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "opsboard",
		Short: "Operations dashboard: incidents, datasets and tickets behind a session login",
		// No subcommand starts the server.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newCreateUserCmd(),
		newResetPasswordCmd(),
	)
	root.AddCommand(platformCommands...)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.InitStdout()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", store.Dialect().Name, version)
			return nil
		},
	}
}

func newCreateUserCmd() *cobra.Command {
	var (
		username string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account (password is read interactively)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readNewPassword(cmd)
			if err != nil {
				return err
			}

			return withAuth(cmd.Context(), func(ctx context.Context, auth *service.AuthService) error {
				acc, err := auth.Register(ctx, username, password, core.Role(role))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User '%s' created with id %d and role %s.\n", acc.Username, acc.ID, acc.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username to create")
	cmd.Flags().StringVar(&role, "role", "user", "account role: user, analyst or admin")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newResetPasswordCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Reset a user's password (interactive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readNewPassword(cmd)
			if err != nil {
				return err
			}

			return withAuth(cmd.Context(), func(ctx context.Context, auth *service.AuthService) error {
				if err := auth.ResetPassword(ctx, username, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password for user '%s' has been reset successfully.\n", username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username to reset")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// withAuth opens the configured store and hands fn an AuthService over it.
func withAuth(ctx context.Context, fn func(ctx context.Context, auth *service.AuthService) error) error {
	logger.InitStdout()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	auth := service.NewAuthService(data.NewAccountRepo(store), service.NewCredentialManager(cfg.BcryptCost))
	return fn(ctx, auth)
}

func openStore(ctx context.Context, cfg *config.Config) (*data.Store, error) {
	store, err := data.Open(ctx, cfg.DBDriver, cfg.DBDSN, cfg.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}
