package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newSweepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fail orphaned tasks and retry failed companies once, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := loadBootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = b.log.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := buildApp(ctx, b)
			if err != nil {
				return err
			}
			// Close waits for the queued enrichment runs.
			defer a.Close()
			return a.sweep(ctx)
		},
	}
}
