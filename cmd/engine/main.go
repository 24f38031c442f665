package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"outreach-engine/internal/config"
)

type rootOptions struct {
	dataDir       string
	defaultConfig string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config.LoadDotEnv()

	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "engine",
		Short:         "Outreach campaign workflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	// Engine data dir: use env if provided, else local folder.
	defaultDir := os.Getenv("OUTREACH_DATA_DIR")
	if defaultDir == "" {
		defaultDir = "."
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", defaultDir, "directory holding config.yml and the database")
	root.PersistentFlags().StringVar(&opts.defaultConfig, "default-config", filepath.Join("config", "config.yml"), "config copied into the data dir on first run")

	root.AddCommand(newServeCmd(opts), newSweepCmd(opts), newQuotaCmd(opts))
	return root
}
