package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/extdeb/extdeb/internal/branding"
	"github.com/extdeb/extdeb/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` builds native PHP and HHVM extensions from source, installs the
distro packages they need, and keeps a dependency-ordered activation manifest
(extensions.ini) of everything installed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}

		flags := cmd.Root().PersistentFlags()
		for key, name := range map[string]string{
			config.KeyExtDir:    "ext-dir",
			config.KeyFlavor:    "flavor",
			config.KeyAssumeYes: "yes",
		} {
			if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("ext-dir", "", "Managed extension directory (default ~/"+branding.HomeDir()+"/ext)")
	flags.String("flavor", "", "Runtime flavor: php or hhvm (default php)")
	flags.BoolP("yes", "y", false, "Answer yes to every question")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}
