package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voiceguard/internal/config"
	"voiceguard/pkg/utils"

	"github.com/caarlos0/env/v11"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

var (
	flagTimeout time.Duration
	flagJSON    bool
)

var rootCmd = &cobra.Command{
	Use:           "tokenctl",
	Short:         "voiceguard operator tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "timeout for database operations")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print JSON output")

	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(participantCmd)
	rootCmd.AddCommand(schemaCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// loadAuth reads only the JWT settings; the CLI does not need the full API config.
func loadAuth() (config.AuthConfig, error) {
	var c config.AuthConfig
	if err := env.Parse(&c); err != nil {
		return config.AuthConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if c.JWTSecret == "" {
		return config.AuthConfig{}, fmt.Errorf("JWT_SECRET is required")
	}
	return c, nil
}

func openDB(ctx context.Context) (*sql.DB, error) {
	var c config.Config
	if err := env.Parse(&c.DB); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return nil, fmt.Errorf("DB_HOST and DB_NAME are required")
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	return utils.OpenPostgres(ctx, "pgx", c.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), flagTimeout)
}
