package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "vendzz/cmd/dispatch-service/docs"
	"vendzz/internal/config"
	"vendzz/internal/constants"
	"vendzz/internal/logger"
	"vendzz/pkg/bootstrap"
	"vendzz/pkg/logging"
	"vendzz/pkg/migrations"
)

var (
	configFile string
)

// @title           Vendzz Dispatch Service API
// @version         1.0
// @description     Quiz completion intake and campaign send dispatch

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Campaign dispatch service",
		Long:  "Dispatch Service turns quiz completions into scheduled campaign sends and delivers queued campaign batches",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	earlyLog := logging.NewEarlyLog(constants.ServiceName)

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			return nil, earlyLog.Error(fmt.Errorf("config file is required: use --config or CONFIG_FILE"))
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, earlyLog.Error(fmt.Errorf("failed to load config: %w", err))
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatch service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return logging.NewEarlyLog(constants.ServiceName).Error(fmt.Errorf("failed to init logger: %w", err))
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting Dispatch Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			log.InfowCtx(ctx, "Service running")
			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", err)
				return err
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	run := func(apply func(cfg *config.Config, conns *bootstrap.Connections) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			connector := bootstrap.NewDatabaseConnector(cfg, log)
			db, err := connector.InitPostgreSQL(cmd.Context())
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("database.postgres is not configured")
			}
			conns := &bootstrap.Connections{Postgres: db}
			defer connector.Close(context.Background(), conns)

			if err := apply(cfg, conns); err != nil {
				return err
			}
			log.Info("Migrations applied")
			return nil
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: run(func(cfg *config.Config, conns *bootstrap.Connections) error {
			return migrations.UpPostgres(conns.Postgres, migrationsDir(cfg))
		}),
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: run(func(cfg *config.Config, conns *bootstrap.Connections) error {
			return migrations.DownPostgres(conns.Postgres, migrationsDir(cfg), steps)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	migrate.AddCommand(up, down)
	return migrate
}

func migrationsDir(cfg *config.Config) string {
	if cfg.Database.MigrationsDir != "" {
		return cfg.Database.MigrationsDir
	}
	return "migrations/postgres"
}
