package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var batchNow string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Payout batch operations",
}

var batchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one payout batch and print the result",
	Long:  `Run a single payout batch as of --now (RFC3339, default current time) and print the batch result as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().UTC()
		if batchNow != "" {
			parsed, err := time.Parse(time.RFC3339, batchNow)
			if err != nil {
				return fmt.Errorf("invalid --now: %w", err)
			}
			now = parsed.UTC()
		}

		deps, err := initializeDependencies()
		if err != nil {
			return fmt.Errorf("failed to initialize dependencies: %w", err)
		}
		defer deps.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), deps.Config.Scheduler.BatchTimeout)
		defer cancel()

		result, err := deps.Scheduler.RunBatch(ctx, now)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	batchRunCmd.Flags().StringVar(&batchNow, "now", "", "Batch clock in RFC3339 (defaults to the current time)")

	batchCmd.AddCommand(batchRunCmd)

	rootCmd.AddCommand(batchCmd)
}
