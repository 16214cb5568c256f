// Package cmd implements the catalogctl commands.
package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"catalog-mirror/internal/clock"
	"catalog-mirror/internal/config"
	"catalog-mirror/internal/database"
	"catalog-mirror/internal/logger"
	"catalog-mirror/internal/reconcile"
	"catalog-mirror/internal/remote"
	"catalog-mirror/internal/repository"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what the subcommands share. Everything is built lazily so that
// commands such as token never open a database connection.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     database.Service
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	var verbose bool

	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Operate the local catalog mirror",
		Long: `catalogctl runs migrations and syncs against the local catalog mirror
without going through the HTTP API.

Configuration is read from the environment, .env.local and .env.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loadEnvFiles()
			a.cfg = config.Load()

			level := a.cfg.Server.LogLevel
			if verbose {
				level = "debug"
			}
			l, err := logger.New(a.cfg.Server.Env, level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = l
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newMigrateCommand(a),
		newPullCommand(a),
		newPushCommand(a),
		newPendingCommand(a),
		newPingCommand(a),
		newTokenCommand(a),
	)

	return root
}

// Execute runs the CLI until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return NewRootCommand().ExecuteContext(ctx)
}

// loadEnvFiles loads .env.local then .env. godotenv never overrides a set
// variable, so the more specific file wins.
func loadEnvFiles() {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}
}

func (a *app) database() (*sql.DB, error) {
	if a.db == nil {
		svc, err := database.New(a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = svc
	}
	return a.db.DB(), nil
}

func (a *app) engine() (*reconcile.Engine, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}

	client := remote.New(a.cfg.Remote, a.logger.Named("remote"))
	return reconcile.NewEngine(client, repository.NewRepositories(db), repository.NewUnitOfWork(db),
		clock.Real{}, a.logger.Named("reconcile"), reconcile.Options{
			PageSize:        a.cfg.Remote.PageSize,
			PushConcurrency: a.cfg.Sync.PushConcurrency,
			MaxRetries:      a.cfg.Remote.MaxRetries,
		}), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
