package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	vaultadapter "github.com/evanhartley/genforge/internal/adapter/driven/vault"
	"github.com/evanhartley/genforge/internal/config"
	"github.com/evanhartley/genforge/internal/domain/model"
)

func newSetupCmd() *cobra.Command {
	var token, workspace, passphrase string
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store a credential in the encrypted vault",
		Long: "Validate an API token and workspace against the service and write them to " +
			"the vault. Prompts for anything not passed as a flag.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cred, err := collectCredential(cmd, token, workspace)
			if err != nil {
				return err
			}

			if !skipVerify {
				if err := verifyCredential(cmd, cfg, cred); err != nil {
					return err
				}
			}

			if passphrase == "" {
				passphrase, err = promptLine(cmd, "New vault passphrase: ")
				if err != nil {
					return err
				}
			}

			if err := vaultadapter.New(cfg.VaultPath).Store(cred, passphrase); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "credential %s stored in %s\n", cred.Redacted(), cfg.VaultPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token (pat_...)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace UUID")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "vault passphrase (prompted if omitted)")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "store without checking the credential against the service")

	return cmd
}

func newRotateCmd() *cobra.Command {
	var token, workspace, passphrase string
	var skipVerify bool

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the stored credential",
		Long: "Swap the vaulted credential for a new one. The current passphrase must open " +
			"the existing vault; send SIGHUP to a running daemon afterwards to pick it up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cred, err := collectCredential(cmd, token, workspace)
			if err != nil {
				return err
			}

			if !skipVerify {
				if err := verifyCredential(cmd, cfg, cred); err != nil {
					return err
				}
			}

			if passphrase == "" {
				if passphrase = cfg.VaultPassphrase; passphrase == "" {
					passphrase, err = promptLine(cmd, "Vault passphrase: ")
					if err != nil {
						return err
					}
				}
			}

			if err := vaultadapter.New(cfg.VaultPath).Rotate(cred, passphrase); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "credential rotated to %s\n", cred.Redacted())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "new API token (pat_...)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace UUID")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "current vault passphrase (prompted if omitted)")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "store without checking the credential against the service")

	return cmd
}

// collectCredential fills missing fields from stdin and validates the pair
// locally before any network call.
func collectCredential(cmd *cobra.Command, token, workspace string) (model.Credential, error) {
	var err error
	if token == "" {
		if token, err = promptLine(cmd, "API token: "); err != nil {
			return model.Credential{}, err
		}
	}
	if workspace == "" {
		if workspace, err = promptLine(cmd, "Workspace UUID: "); err != nil {
			return model.Credential{}, err
		}
	}

	cred := model.Credential{APIToken: token, WorkspaceID: workspace}
	if err := cred.Validate(); err != nil {
		return model.Credential{}, err
	}
	return cred, nil
}

// verifyCredential proves the credential works by asking the service who it
// belongs to.
func verifyCredential(cmd *cobra.Command, cfg *config.Config, cred model.Credential) error {
	account, err := buildClient(cfg, cred).WorkspaceInfo(cmd.Context())
	if err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "authenticated as %s (%d workspaces)\n", account.Email, len(account.Workspaces))
	return nil
}
