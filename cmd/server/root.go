package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/agenthub/internal/config"
	"github.com/rpggio/agenthub/internal/sqlite"
	"github.com/spf13/cobra"
)

// version can be overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "agenthub",
		Short:         "Activity feed service for the agent dashboard",
		Long:          "agenthub keeps each user's activity feed in sync between the dashboard, its database and the workflow engine.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if configPath != "" {
				return os.Setenv("AGENTHUB_CONFIG_PATH", configPath)
			}
			return nil
		},
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides AGENTHUB_CONFIG_PATH)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newKeysCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// setup loads configuration and builds the logger. The returned func closes the log file.
func setup() (config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("config error: %w", err)
	}

	logWriter := io.Writer(os.Stdout)
	closeLog := func() {}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			logWriter = io.MultiWriter(os.Stdout, fileWriter)
			closeLog = func() { _ = file.Close() }
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	return cfg, logger, closeLog, nil
}

// openDB opens the database and applies pending migrations.
func openDB(path string) (*sqlite.DB, error) {
	if err := ensureDBDir(path); err != nil {
		return nil, fmt.Errorf("preparing database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
