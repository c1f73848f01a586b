package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/narcan-finder/internal/vault"
)

// #region vault
func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the password-protected API key vault",
	}
	cmd.AddCommand(
		newVaultInitCmd(a),
		newVaultRekeyCmd(a),
		newVaultStatusCmd(a),
		newVaultVerifyCmd(a),
	)
	return cmd
}

func newVaultInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store the backend API key encrypted under a password",
		Long: `Store the backend API key encrypted under a password. The key is read from
NARCAN_API_KEY when set, otherwise prompted for. The password is read from
NARCAN_VAULT_PASSWORD when set, otherwise prompted for twice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.vault()
			if v.State() != vault.Uninitialized && !force {
				return fmt.Errorf("vault already exists at %s (use --force to replace it)", v.Path())
			}
			key, err := a.prompt.secret("API key: ", envAPIKey)
			if err != nil {
				return err
			}
			pw, err := a.prompt.newSecret("Vault password: ", envVaultPassword)
			if err != nil {
				return err
			}
			if err := v.Seal(key, pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vault sealed at %s\n", v.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing vault")
	return cmd
}

func newVaultRekeyCmd(a *app) *cobra.Command {
	var replaceKey bool
	cmd := &cobra.Command{
		Use:   "rekey",
		Short: "Change the vault password, optionally replacing the key",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.vault()
			if v.State() == vault.Uninitialized {
				return fmt.Errorf("%w: run `narcan vault init` first", vault.ErrUninitialized)
			}
			current, err := a.prompt.secret("Current password: ", envVaultPassword)
			if err != nil {
				return err
			}
			var key string
			if replaceKey {
				if key, err = a.prompt.secret("New API key: ", envAPIKey); err != nil {
					return err
				}
			}
			next, err := a.prompt.newSecret("New password: ", "")
			if err != nil {
				return err
			}
			if err := v.Rekey(current, key, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "vault rekeyed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&replaceKey, "replace-key", false, "also replace the stored API key")
	return cmd
}

func newVaultStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the vault lives and whether it exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.vault()
			fmt.Fprintf(cmd.OutOrStdout(), "path:  %s\nstate: %s\n", v.Path(), v.State())
			return nil
		},
	}
}

func newVaultVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the password without printing the key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.vault()
			pw, err := a.prompt.secret("Vault password: ", envVaultPassword)
			if err != nil {
				return err
			}
			switch err := v.Verify(pw); {
			case err == nil:
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			case errors.Is(err, vault.ErrAuthenticationFailed):
				return errors.New("wrong password or tampered vault")
			default:
				return err
			}
		},
	}
}

// #endregion vault
