package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/extdeb/extdeb/internal/activation"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Health check for the extdeb installation",
	Long: `Check that the build toolchain and apt tools are available, that every
recorded artifact is present, and that extensions.ini matches packages.json.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	a, err := openApp(cmd)
	if err != nil {
		fmt.Fprintf(out, "[FAIL] Cannot open registry: %v\n", err)
		return err
	}
	defer a.Close()

	failures := 0
	failures += runToolchainCheck(out, a.flavor)
	failures += runArtifactCheck(out, a)
	failures += runActivationCheck(out, a)

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	return nil
}

func toolchain(flavor activation.Flavor) []string {
	tools := []string{"sudo", "apt-get", "dpkg", "lsb_release", "make"}
	if flavor == activation.FlavorHHVM {
		return append(tools, "hphpize", "cmake")
	}
	return append(tools, "phpize")
}

func runToolchainCheck(w io.Writer, flavor activation.Flavor) int {
	fmt.Fprintf(w, "Toolchain check (%s):\n", flavor)
	missing := 0
	for _, name := range toolchain(flavor) {
		if !checkBinary(w, name) {
			missing++
		}
	}
	return missing
}

func checkBinary(w io.Writer, name string) bool {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Fprintf(w, "  [MISS] %s not found\n", name)
		return false
	}
	fmt.Fprintf(w, "  [ OK ] %s found at %s\n", name, path)
	return true
}

func runArtifactCheck(w io.Writer, a *app) int {
	fmt.Fprintf(w, "Registry check (%s):\n", a.reg.Path())
	installed := a.reg.Installed()
	if len(installed) == 0 {
		fmt.Fprintln(w, "  [INFO] No extensions installed")
		return 0
	}

	failures := 0
	for _, name := range installed {
		var missing []string
		for _, f := range a.reg.Artifacts(name) {
			if _, err := os.Stat(filepath.Join(a.reg.Dir(), f)); err != nil {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			fmt.Fprintf(w, "  [FAIL] %s: missing artifacts %v\n", name, missing)
			failures++
			continue
		}
		for _, dep := range a.reg.Dependencies(name) {
			if !a.reg.IsInstalled(dep) {
				fmt.Fprintf(w, "  [WARN] %s: depends on %s, which is not installed\n", name, dep)
			}
		}
		fmt.Fprintf(w, "  [ OK ] %s\n", name)
	}
	return failures
}

func runActivationCheck(w io.Writer, a *app) int {
	fmt.Fprintln(w, "Activation manifest check:")
	want, err := a.gen.Generate()
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}
	got, err := activation.Read(a.gen.Path(), a.flavor)
	if errors.Is(err, os.ErrNotExist) {
		if len(want) == 0 {
			fmt.Fprintln(w, "  [INFO] No manifest written yet")
			return 0
		}
		fmt.Fprintf(w, "  [FAIL] %s does not exist (run `%s manifest`)\n", a.gen.Path(), rootCmd.Name())
		return 1
	}
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return 1
	}
	if !slices.Equal(got, want) {
		fmt.Fprintf(w, "  [FAIL] %s is out of date (run `%s manifest`)\n", a.gen.Path(), rootCmd.Name())
		return 1
	}
	fmt.Fprintf(w, "  [ OK ] %s lists %d artifact(s) in dependency order\n", a.gen.Path(), len(got))
	return 0
}
