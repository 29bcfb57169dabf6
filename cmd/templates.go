package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var templatesFormat string

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"t"},
	Short:   "List the available scaffold templates",
	RunE:    runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)

	templatesCmd.Flags().StringVarP(&templatesFormat, "format", "f", "table", "Output format (table, json)")
}

func runTemplates(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	list := registry.List()

	switch templatesFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "table":
		id := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.Faint)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tFILES\tDESCRIPTION")
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", id.Sprint(t.ID), t.Name, t.Files, dim.Sprint(t.Description))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", templatesFormat)
	}
}
