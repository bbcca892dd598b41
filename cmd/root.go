package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/config"
	applog "github.com/andresmejia3/facesignal/internal/log"
	"github.com/andresmejia3/facesignal/internal/store"
)

var (
	// DB is the recorder connection, opened on demand by openStore.
	DB *store.Store
	// Cfg is the loaded configuration shared by subcommands.
	Cfg *config.Config

	dbURL   string
	envFile string
	verbose bool
	logFile string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facesignal",
	Short:   "Eye-blink and head-pose events from face-mesh landmarks",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		Cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}

		level := Cfg.Log.Level
		if verbose {
			level = "debug"
		}
		file := Cfg.Log.File
		if logFile != "" {
			file = logFile
		}
		if _, err := applog.Setup(applog.Options{Level: level, File: file}); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
			DB = nil
		}
	},
}

// resolveDBURL picks the connection string: --db, then DATABASE_URL, then the
// POSTGRES_* variables, then a local default.
func resolveDBURL() string {
	if dbURL != "" {
		return dbURL
	}
	if Cfg != nil && Cfg.DatabaseURL != "" {
		return Cfg.DatabaseURL
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	return "postgres://localhost:5432/facesignal"
}

// openStore connects the recorder. Only commands that read or write history call it.
func openStore(ctx context.Context) (*store.Store, error) {
	if DB != nil {
		return DB, nil
	}
	s, err := store.New(ctx, resolveDBURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = s
	return DB, nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the event recorder (default: $DATABASE_URL or postgres://localhost:5432/facesignal)")
	rootCmd.PersistentFlags().StringVar(&envFile, "config-env", "", "Load environment overrides from this file instead of ./.env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every frame at debug level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
}
