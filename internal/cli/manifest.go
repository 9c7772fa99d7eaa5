package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/extdeb/extdeb/internal/activation"
	"github.com/spf13/cobra"
)

// errManifestStale is returned by manifest --check.
var errManifestStale = errors.New("activation manifest is out of date")

var manifestCheck bool

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Regenerate extensions.ini",
	Long: `Regenerate extensions.ini from packages.json and print the load order.

With --check nothing is written; the command fails if the file on disk differs
from what would be generated.`,
	Args: cobra.NoArgs,
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().BoolVar(&manifestCheck, "check", false, "Verify instead of writing")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if manifestCheck {
		want, err := a.gen.Generate()
		if err != nil {
			return err
		}
		got, err := activation.Read(a.gen.Path(), a.flavor)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", errManifestStale, a.gen.Path())
		}
		if err != nil {
			return err
		}
		if !slices.Equal(got, want) {
			return fmt.Errorf("%w: run '%s manifest'", errManifestStale, cmd.Root().Name())
		}
		fmt.Fprintf(out, "%s is up to date\n", a.gen.Path())
		return nil
	}

	paths, err := a.gen.Write()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", a.gen.Path())
	for i, p := range paths {
		fmt.Fprintf(out, "  %d. %s\n", i+1, p)
	}
	return nil
}
