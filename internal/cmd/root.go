// Package cmd wires the command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pharmaboost/pharmaboost/internal/build"
)

var (
	configFile string
	envFile    string
)

// NewRootCommand builds the CLI entry point.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           build.Slug,
		Short:         "AI-assisted product listing content generation for pharmacy and beauty catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to the .env file")

	cmd.AddCommand(CmdServer())
	cmd.AddCommand(CmdVersion())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
