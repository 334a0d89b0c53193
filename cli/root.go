// Package cli holds the protoscan commands: the web server, database
// migrations, one-shot extraction of a protocol and the formulary builder.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/giygas/protoscan/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "protoscan",
		Short: "Clinical protocol medication analyzer",
		Long: "Extracts the medication tables of clinical protocols, enriches each drug and exports a report.\n\n" +
			"Configuration is read from the environment and the optional --env-file:\n  " +
			strings.Join(config.GetEnvVars(), "\n  "),

		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional file of environment variables")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(formularyCmd())

	return rootCmd
}

// Execute runs the root command with the process arguments
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// loadEnvFile loads variables that are not already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
