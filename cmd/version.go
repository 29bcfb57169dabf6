package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/respogen/respogen/internal/version"
)

var versionFormat string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	info := version.Get()

	switch versionFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "text":
		fmt.Fprintf(out, "respogen %s\n", version.Short())
		if info.Dirty {
			fmt.Fprintln(out, "  (built from a modified tree)")
		}
		if !info.BuildTime.IsZero() {
			fmt.Fprintf(out, "  built:    %s\n", info.BuildTime.Format(time.RFC3339))
		}
		fmt.Fprintf(out, "  go:       %s\n", info.GoVersion)
		fmt.Fprintf(out, "  platform: %s\n", info.Platform)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}
