// Command seibackend serves the researcher registry API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sei-platform/seibackend/config"
	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "seibackend",
	Short: "Sistema Estatal de Investigadores backend",
	Long: `seibackend serves the HTTP API of the state researcher registry: researcher
registrations, institutions, research-area statistics, search, connections and
messages. Configuration is read from the environment and an optional .env file.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Info: error loading .env: %v\n", err)
		}
	},
}

// bootstrap loads configuration, builds the logger and opens the database.
func bootstrap() (config.Config, *logger.Logger, *database.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.Sync()
		return config.Config{}, nil, nil, err
	}
	return cfg, log, db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
