package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/metalagman/pllm/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFile  string
	stateDir string
	debug    bool
	rootCmd  = &cobra.Command{
		Use:   "pllm",
		Short: "pllm drives a tmux session toward a mission with a language model",
	}
)

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file path (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with endpoint and API key")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory (default from config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Init(debug)
		return loadEnv(envFile)
	}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(keysCmd())
	return rootCmd.Execute()
}

// loadEnv loads path into the environment without overriding variables that
// are already set. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no env file")
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	log.Debug().Str("path", path).Msg("env file loaded")
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
}
