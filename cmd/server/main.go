// Command server runs the moving operations API, its background worker and
// schema migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shiva/moveops/config"
	"github.com/shiva/moveops/pkg/cache"
	"github.com/shiva/moveops/pkg/db"
	"github.com/shiva/moveops/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "moveops",
		Short:         "Moving operations platform: bookings, dispatch, payments and tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newWorkerCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInfra(cmd.Context(), "server", migrate, runServer)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the notification worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withInfra(cmd.Context(), "worker", false, runWorker)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup("migrate")
			if err != nil {
				return err
			}
			pool, err := db.NewPostgresPool(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.Migrate(cmd.Context(), pool, log)
		},
	}
}

// infra is what every long-running command shares.
type infra struct {
	cfg   *config.Config
	log   zerolog.Logger
	pool  *pgxpool.Pool
	redis *redis.Client
}

type runFunc func(ctx context.Context, in *infra) error

func setup(component string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	logger.Setup(cfg.App.LogLevel)
	return cfg, logger.New(component), nil
}

// withInfra loads config, connects to Postgres and Redis, and runs fn until
// SIGINT or SIGTERM cancels its context.
func withInfra(parent context.Context, component string, migrate bool, fn runFunc) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup(component)
	if err != nil {
		return err
	}

	// ── Connect to PostgreSQL ───────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Str("host", cfg.Postgres.Host).Msg("postgres connected")

	if migrate {
		if err := db.Migrate(ctx, pool, log); err != nil {
			return err
		}
	}

	// ── Connect to Redis ────────────────────────────────
	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.Redis.Addr()).Msg("redis connected")

	return fn(ctx, &infra{cfg: cfg, log: log, pool: pool, redis: rdb})
}
