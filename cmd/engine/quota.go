package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"outreach-engine/internal/quota"
)

func newQuotaCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Print today's contact lookup usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := loadBootstrap(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := openStore(b)
			if err != nil {
				return err
			}
			defer db.Close()
			ledger, rdb, err := openLedger(ctx, b.cfg, db)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}

			u, err := quota.NewGate(ledger, b.cfg.Quota.DailyLimit).Usage(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(u)
			}
			fmt.Fprintf(out, "%s: %d/%d used, %d remaining (%s)\n", u.Day, u.Count, u.Limit, u.Remaining, b.cfg.Quota.Backend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print usage as JSON")
	return cmd
}
