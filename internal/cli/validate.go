package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/extdeb/extdeb/internal/manifest"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <source-dir|extension.yaml>",
	Short: "Validate an extension manifest",
	Long:  `Check an extension.yaml against the manifest schema and verify its version and requirement constraints.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, manifest.FileName)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest validation: %s\n", path)

	m, err := manifest.Load(path)
	var ve *manifest.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintf(out, "  [FAIL] %d validation issue(s):\n", len(ve.Issues))
		for _, issue := range ve.Issues {
			fmt.Fprintf(out, "    - %s\n", issue)
		}
		return fmt.Errorf("manifest %s has %d validation issue(s)", path, len(ve.Issues))
	}
	if err != nil {
		fmt.Fprintf(out, "  [FAIL] %v\n", err)
		return fmt.Errorf("manifest validation failed: %w", err)
	}

	fmt.Fprintf(out, "  [ OK ] Valid extension manifest: %s (v%s)\n", m.Name, m.Version)
	return nil
}
