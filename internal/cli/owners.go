package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ownersJSON bool

var ownersCmd = &cobra.Command{
	Use:   "owners [distro-package]",
	Short: "Show which extensions need each distro package",
	Long: `Show the distro package ownership table: for each apt package installed on
behalf of an extension, the extensions that still require it. With an
argument, show only that package.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOwners,
}

func init() {
	ownersCmd.Flags().BoolVar(&ownersJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(ownersCmd)
}

func runOwners(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	table := a.reg.DistroOwners()
	if len(args) == 1 {
		owners, ok := table[args[0]]
		if !ok {
			return fmt.Errorf("no installed extension requires %s", args[0])
		}
		table = map[string][]string{args[0]: owners}
	}

	if ownersJSON {
		return printJSON(cmd, table)
	}
	if len(table) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No distro packages are tracked.")
		return nil
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "DISTRO PACKAGE\tREQUIRED BY")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(table[name], ", "))
	}
	return w.Flush()
}
