package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evanhartley/genforge/internal/config"
)

func newUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show the quota counter",
		Long:  "Print committed generation units against the configured limit. The counter never resets on its own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			stores, err := openStores(cmd, cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			snap, err := stores.ledger.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d used (%.1f%%), %d remaining\n",
				snap.Count, snap.Limit, snap.PercentUsed(), snap.Remaining())
			if snap.Exhausted() {
				fmt.Fprintln(cmd.OutOrStdout(), "quota exhausted: new jobs are blocked until `genforge usage reset`")
			}
			return nil
		},
	}

	cmd.AddCommand(newUsageResetCmd())

	return cmd
}

func newUsageResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Zero the quota counter",
		Long:  "Explicitly zero the counter, typically after the subscription period rolls over.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if !yes {
				answer, err := promptLine(cmd, "Reset the usage counter? [y/N] ")
				if err != nil || (answer != "y" && answer != "Y") {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}

			stores, err := openStores(cmd, cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			if err := stores.ledger.Reset(cmd.Context()); err != nil {
				return err
			}

			snap, err := stores.ledger.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "usage reset: %d/%d\n", snap.Count, snap.Limit)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}
