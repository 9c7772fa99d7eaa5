package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed extensions",
	Long:  `List every extension recorded in packages.json with its version, artifacts and dependencies.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

// listEntry represents an installed extension for display.
type listEntry struct {
	Name           string   `json:"name"`
	Version        string   `json:"version,omitempty"`
	Artifacts      []string `json:"artifacts"`
	Dependencies   []string `json:"dependencies"`
	DistroPackages []string `json:"distroPackages"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var entries []listEntry
	for _, name := range a.reg.Installed() {
		entries = append(entries, listEntry{
			Name:           name,
			Version:        a.reg.Version(name),
			Artifacts:      a.reg.Artifacts(name),
			Dependencies:   nonNil(a.reg.Dependencies(name)),
			DistroPackages: nonNil(a.reg.DistroPackages(name)),
		})
	}

	if listJSON {
		return printJSON(cmd, nonNilEntries(entries))
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No extensions installed yet.")
		return nil
	}
	return printListTable(cmd, entries)
}

func printListTable(cmd *cobra.Command, entries []listEntry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tARTIFACTS\tDEPENDS ON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, dash(e.Version),
			strings.Join(e.Artifacts, ","), dash(strings.Join(e.Dependencies, ",")))
	}
	return w.Flush()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilEntries(e []listEntry) []listEntry {
	if e == nil {
		return []listEntry{}
	}
	return e
}
