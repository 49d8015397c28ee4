package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/bootstrap"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/crypto"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/jwt"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
)

type createBotOptions struct {
	email     string
	url       string
	apiKey    string
	jwtExpiry time.Duration
}

func newCreateBotCmd() *cobra.Command {
	var opts createBotOptions
	cmd := &cobra.Command{
		Use:   "create-bot",
		Short: "Register an admin bot account and print its long-lived access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateBot(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "bot identity, used as the token subject")
	cmd.Flags().StringVar(&opts.url, "redmine-url", "", "Redmine base URL")
	cmd.Flags().StringVar(&opts.apiKey, "redmine-api-key", "", "Redmine API key of the bot account")
	cmd.Flags().DurationVar(&opts.jwtExpiry, "jwt-expiry", bootstrap.DefaultBotTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("redmine-url")
	_ = cmd.MarkFlagRequired("redmine-api-key")
	return cmd
}

func runCreateBot(cmd *cobra.Command, opts createBotOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	cipher, err := crypto.NewSecretBox(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	tokens, err := jwt.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	res, err := bootstrap.ProvisionBot(ctx, repository.NewPostgresCredentialStore(pool, cipher), tokens, bootstrap.BotRequest{
		Email:       opts.email,
		EndpointURL: opts.url,
		APIKey:      opts.apiKey,
		TokenTTL:    opts.jwtExpiry,
	}, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bot %s registered with admin role.\n", res.UserID)
	fmt.Fprintf(out, "Token expires at %s.\n\n", res.ExpiresAt.UTC().Format(time.RFC3339))
	fmt.Fprintln(out, res.Token)
	return nil
}
