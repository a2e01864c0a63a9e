package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	vaultadapter "github.com/evanhartley/genforge/internal/adapter/driven/vault"
	"github.com/evanhartley/genforge/internal/config"
)

func newStatusCmd() *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vault and quota status",
		Long:  "Describe the vault record, the quota ledger, and optionally check the credential against the service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			st, err := vaultadapter.New(cfg.VaultPath).Status()
			if err != nil {
				return err
			}
			if st.Exists {
				fmt.Fprintf(out, "vault:     %s (version %d, %d pbkdf2 iterations)\n", st.Path, st.Version, st.Iterations)
			} else {
				fmt.Fprintf(out, "vault:     %s (not created; run `genforge setup`)\n", st.Path)
			}
			if cfg.HasEnvCredential() {
				fmt.Fprintln(out, "env:       credential pair set, vault bypassed")
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
			fmt.Fprintf(out, "usage:     %d/%d (%.1f%%), %d remaining\n",
				snap.Count, snap.Limit, snap.PercentUsed(), snap.Remaining())
			if !snap.LastResetAt.IsZero() {
				fmt.Fprintf(out, "last reset: %s\n", snap.LastResetAt.Format("2006-01-02 15:04:05 MST"))
			}

			if live {
				cred, err := resolveCredential(cmd, cfg)
				if err != nil {
					return err
				}
				account, err := buildClient(cfg, cred).WorkspaceInfo(cmd.Context())
				if err != nil {
					return fmt.Errorf("credential check failed: %w", err)
				}
				fmt.Fprintf(out, "account:   %s\n", account.Email)
				for _, ws := range account.Workspaces {
					marker := ""
					if ws.Personal {
						marker = " (personal)"
					}
					fmt.Fprintf(out, "workspace: %s %s%s\n", ws.ID, ws.Name, marker)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "verify the credential against the service")

	return cmd
}
