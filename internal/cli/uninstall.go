package cli

import (
	"errors"
	"fmt"

	"github.com/extdeb/extdeb/internal/registry"
	"github.com/spf13/cobra"
)

var uninstallForce bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an installed extension",
	Long: `Remove an installed extension's artifacts and registry entry.

Extensions that other installed extensions depend on are refused unless
--force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallForce, "force", false, "Remove even if other extensions depend on it")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	name := args[0]

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	o, err := a.orchestrator(cmd.Context(), cmd, false)
	if err != nil {
		return err
	}

	rep, err := o.Uninstall(cmd.Context(), name, uninstallForce)
	var de *registry.DependentsError
	if errors.As(err, &de) {
		return fmt.Errorf("%w; use --force to remove it anyway", err)
	}
	if rep != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
		printUnneeded(cmd.OutOrStdout(), rep)
	}
	return err
}
