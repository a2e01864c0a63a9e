// Package cli implements the genforge command tree: a long-running daemon
// under `serve` and one-shot operator commands for credentials, quota, and
// ad-hoc generations.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "genforge",
		Short: "Resilient job orchestrator for the Layer.ai asset API",
		Long: "Genforge submits generation jobs to the Layer.ai GraphQL API, polls them to " +
			"completion, and tracks quota in a local ledger. Credentials live in an " +
			"encrypted vault; the daemon exposes a REST API and Prometheus metrics.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		newServeCmd(),
		newSetupCmd(),
		newRotateCmd(),
		newStatusCmd(),
		newUsageCmd(),
		newGenerateCmd(),
		newPromptCmd(),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("genforge %s\n", Version))

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
