package cli

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update <source-dir>",
	Short: "Rebuild an installed extension",
	Long: `Rebuild an installed extension from <source-dir> and replace its artifacts.

Runs make clean first (failures are ignored), then installs any newly declared
distro packages and rebuilds. Distro packages the new version no longer needs
are offered for removal.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	return runBuild(cmd, args[0], true)
}
