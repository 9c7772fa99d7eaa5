package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extdeb/extdeb/internal/builder"
	"github.com/extdeb/extdeb/internal/lifecycle"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <source-dir>",
	Short: "Build and install an extension",
	Long: `Build the extension in <source-dir> and install it.

The source tree must contain an extension.yaml manifest. The distro packages it
declares for this system are installed with apt-get, the extension is compiled
with phpize (or hphpize for --flavor hhvm), and the resulting shared objects
are copied into the managed extension directory. extensions.ini is regenerated
afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	return runBuild(cmd, args[0], false)
}

// runBuild is shared by install and update.
func runBuild(cmd *cobra.Command, dir string, update bool) error {
	src, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	o, err := a.orchestrator(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}

	var rep *lifecycle.Report
	if update {
		rep, err = o.Update(cmd.Context(), src)
	} else {
		rep, err = o.Install(cmd.Context(), src)
	}
	var be *builder.BuildError
	if errors.As(err, &be) && be.Output != "" && !verbose {
		fmt.Fprint(cmd.ErrOrStderr(), be.Output)
	}
	if rep != nil {
		printReport(cmd.OutOrStdout(), rep, update)
	}
	return err
}

func printReport(w io.Writer, rep *lifecycle.Report, update bool) {
	switch {
	case update && rep.PreviousVersion != "" && rep.PreviousVersion != rep.Version:
		fmt.Fprintf(w, "Updated %s %s -> %s\n", rep.Name, rep.PreviousVersion, rep.Version)
	case update:
		fmt.Fprintf(w, "Rebuilt %s %s\n", rep.Name, rep.Version)
	default:
		fmt.Fprintf(w, "Installed %s %s\n", rep.Name, rep.Version)
	}
	if len(rep.Artifacts) > 0 {
		fmt.Fprintf(w, "  artifacts: %s\n", strings.Join(rep.Artifacts, ", "))
	}
	if len(rep.DistroPackages) > 0 {
		fmt.Fprintf(w, "  distro packages: %s\n", strings.Join(rep.DistroPackages, ", "))
	}
	printUnneeded(w, rep)
}

func printUnneeded(w io.Writer, rep *lifecycle.Report) {
	if len(rep.Removed) > 0 {
		fmt.Fprintf(w, "  removed distro packages: %s\n", strings.Join(rep.Removed, ", "))
	}
	var kept []string
	for _, p := range rep.Unneeded {
		if !contains(rep.Removed, p) {
			kept = append(kept, p)
		}
	}
	if len(kept) > 0 {
		fmt.Fprintf(w, "  no longer needed: %s\n", strings.Join(kept, ", "))
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
