package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	application "github.com/freitasmatheusrn/pricecompare/application"
	configs "github.com/freitasmatheusrn/pricecompare/configs"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	redisdb "github.com/freitasmatheusrn/pricecompare/internal/database/redis"
	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/cookie"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "pricecompare",
		Short:        "PriceCompare API - price comparison and affiliate tracking",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing the .env file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API with the background jobs",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := configs.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(config.LogPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := postgres.Init(config.DSN())
			if err != nil {
				return fmt.Errorf("error starting db: %w", err)
			}
			defer db.Close()

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", zap.Strings("versions", applied))
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin user or promote an existing one",
		Long: `Create an admin user or promote an existing one.

When the email already belongs to a user, the role is set to admin and the
password is left untouched.

Examples:
  pricecompare create-admin --email admin@example.com --name Admin --password 's3cret!23'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := configs.LoadConfig(configPath)
			if err != nil {
				return err
			}

			db, err := postgres.Init(config.DSN())
			if err != nil {
				return fmt.Errorf("error starting db: %w", err)
			}
			defer db.Close()

			admin, apiErr := user.NewService(repo.New(db)).EnsureAdmin(cmd.Context(), user.EnsureAdminInput{
				Name:     name,
				Email:    email,
				Password: password,
			})
			if apiErr != nil {
				return apiErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "admin ready: %s (%s)\n", admin.Email, parser.MustPgUUIDToString(admin.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Admin", "admin display name")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "password for a new admin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cookie.Secure = config.SecureCookies

	logger, err := newLogger(config.LogPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := postgres.Init(config.DSN())
	if err != nil {
		return fmt.Errorf("error starting db: %w", err)
	}
	defer db.Close()

	applied, err := postgres.Migrate(cmd.Context(), db)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}

	// Use REDIS_URL if available (Dokku), otherwise build from individual params
	var redisClient *redisdb.Client
	if config.RedisURL != "" {
		redisClient, err = redisdb.NewClientFromURL(config.RedisURL)
	} else {
		redisClient, err = redisdb.NewClient(redisdb.Config{
			Host:     config.RedisHost,
			Port:     config.RedisPort,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
	}
	if err != nil {
		return fmt.Errorf("error starting redis: %w", err)
	}
	defer redisClient.Close()

	app := application.Application{
		Config: *config,
		Logger: logger,
		DB:     db,
		Redis:  redisClient,
	}

	handler, err := app.Mount()
	if err != nil {
		logger.Error("failed to mount application", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, handler); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}
