package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SamuelFortes/plataforma-virtual/internal/config"
	"github.com/SamuelFortes/plataforma-virtual/internal/domain/diagnosis"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/db"
	"github.com/SamuelFortes/plataforma-virtual/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ubs-server",
		Short:        "UBS situational diagnosis API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(catalogCmd())
	root.AddCommand(ubsCmd())
	return root
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// loadConfig reads and validates the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolOptions{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
}

// migrationsFS prefers an on-disk directory so schema changes can ship
// without a rebuild, and falls back to the embedded files.
func migrationsFS(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	return migrations.FS
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("to")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationsFS(cfg.MigrationsDir))
			count, err := migrator.UpTo(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsFS(cfg.MigrationsDir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status, appliedAt := "pending", "-"
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the service catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Insert the default services when the catalog is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := diagnosis.NewService(diagnosis.NewRepo(pool), db.NewTxRunner(pool))
			n, err := svc.SeedCatalog(ctx)
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d catalog service(s).\n", n)
			return nil
		},
	})
	return cmd
}

func ubsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ubs",
		Short: "Administrative UBS operations",
	}
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete a UBS with all of its records and attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetInt64("id")
			if id <= 0 {
				return fmt.Errorf("--id must be a positive UBS id")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			blobs, err := openBlobStore(ctx, cfg)
			if err != nil {
				return err
			}
			svc := diagnosis.NewService(diagnosis.NewRepo(pool), db.NewTxRunner(pool))
			svc.SetBlobStore(blobs)
			removed, err := svc.PurgeUBS(ctx, id)
			if err != nil {
				return fmt.Errorf("purge UBS %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged UBS %d (%d attachment file(s) removed).\n", id, removed)
			return nil
		},
	}
	purge.Flags().Int64("id", 0, "UBS id")
	_ = purge.MarkFlagRequired("id")
	cmd.AddCommand(purge)
	return cmd
}
