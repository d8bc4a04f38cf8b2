package main

import (
	"context"
	"fmt"
	"time"

	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/crypto"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert tenants and users from a YAML file",
		Long: `Reads a tenant seed file and upserts every tenant in it. Users are created with
bcrypt-hashed passwords; users that already exist are left untouched.

Database and encryption settings are read from the environment (DATABASE_URL,
ENCRYPTION_KEY), the same way the server reads them.`,
		RunE: runSeed,
	}
	cmd.Flags().StringP("file", "f", "tenants.yaml", "Tenant seed file")
	cmd.Flags().Bool("dry-run", false, "Validate the file without writing anything")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	seed, err := config.LoadSeedFile(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(out, "%s: %d tenant(s) OK\n", path, len(seed.Tenants))
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	st := postgres.NewPostgresStore(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	box, err := crypto.NewSecretBox(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	tenants, err := services.NewTenantService(st, box, len(seed.Tenants), cfg.DefaultHotThreshold, cfg.DefaultWarmThreshold)
	if err != nil {
		return err
	}

	for _, t := range seed.Tenants {
		res, err := tenants.Seed(ctx, t)
		if err != nil {
			return fmt.Errorf("seed tenant %q: %w", t.Key, err)
		}
		fmt.Fprintf(out, "tenant %s (key %s): %d user(s) created, %d skipped\n",
			res.TenantID, res.TenantKey, res.UsersCreated, res.UsersSkipped)
	}
	return nil
}
