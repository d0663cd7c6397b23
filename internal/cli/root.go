// Package cli implements chatctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/devedd/neurochat/internal/auth"
	"github.com/devedd/neurochat/internal/config"
	"github.com/devedd/neurochat/internal/db"
	"github.com/devedd/neurochat/internal/logger"
	"github.com/devedd/neurochat/internal/maintenance"
	"github.com/devedd/neurochat/internal/rbac"
	"github.com/devedd/neurochat/internal/store/rabbitmq"
	"github.com/devedd/neurochat/internal/store/redisstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type app struct {
	cfg config.Config
	log *zap.Logger
	db  *gorm.DB
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Operator tooling for the neurochat API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
				cfg.DBDSN = dsn
			}
			a.cfg = cfg
			a.log = logger.New(cfg.Env, cfg.LogLevel).Named("chatctl")

			gdb, err := db.Connect(cfg.DBDSN)
			if err != nil {
				return err
			}
			a.db = gdb
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.db != nil {
				if sqlDB, err := a.db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().String("dsn", "", "database DSN (overrides DB_DSN)")

	root.AddCommand(
		a.migrateCmd(),
		a.seedCmd(),
		a.bootstrapAdminCmd(),
		a.deactivateStaleCmd(),
	)
	return root
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.Migrate(a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-rbac",
		Short: "Create default roles and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rbac.Seed(cmd.Context(), a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rbac seeded")
			return nil
		},
	}
}

func (a *app) bootstrapAdminCmd() *cobra.Command {
	var in maintenance.BootstrapInput
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create or reset an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("CHATCTL_ADMIN_PASSWORD")
			}
			verifier, err := auth.NewPasswordVerifier(a.cfg.PasswordScheme)
			if err != nil {
				return err
			}
			u, created, err := maintenance.BootstrapAdmin(cmd.Context(), a.db, verifier, in)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s: %s (%s)\n", verb, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password (or CHATCTL_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) deactivateStaleCmd() *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "deactivate-stale",
		Short: "Deactivate users who have not logged in recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if enqueue {
				return a.enqueueSweep(ctx, cmd)
			}

			rds := redisstore.New(redisstore.Options{
				Addr:       a.cfg.RedisAddr,
				Password:   a.cfg.RedisPassword,
				DB:         a.cfg.RedisDB,
				HMACSecret: a.cfg.RedisHMACSecret,
			}, a.log)
			defer func() { _ = rds.Close() }()

			n, err := maintenance.NewSweeper(a.db, rds, a.cfg.StaleUserAfter, a.log).DeactivateStaleUsers(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d users\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "publish the job to the worker queue instead of running it here")
	return cmd
}

func (a *app) enqueueSweep(ctx context.Context, cmd *cobra.Command) error {
	pub, err := rabbitmq.NewPublisher(a.cfg.RabbitURL, a.cfg.RabbitQueue, a.log)
	if err != nil {
		return err
	}
	defer pub.Close()

	job, err := maintenance.NewJob(maintenance.KindDeactivateStaleUsers)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, job); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", job.ID)
	return nil
}
