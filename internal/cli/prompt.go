package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evanhartley/genforge/internal/config"
)

func newPromptCmd() *cobra.Command {
	var genType string

	cmd := &cobra.Command{
		Use:   "prompt [rough prompt]",
		Short: "Expand a rough prompt",
		Long:  "Ask the service to rewrite a rough prompt into its preferred phrasing for the given asset type.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cred, err := resolveCredential(cmd, cfg)
			if err != nil {
				return err
			}

			expanded, err := buildClient(cfg, cred).GeneratePrompt(cmd.Context(), strings.Join(args, " "), genType)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), expanded)
			return nil
		},
	}

	cmd.Flags().StringVarP(&genType, "type", "t", "CREATE", "generation type the prompt is for")

	return cmd
}
