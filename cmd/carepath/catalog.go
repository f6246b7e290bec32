package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/carepath/internal/catalog"
	"github.com/mark3labs/carepath/internal/forms"
	"github.com/spf13/cobra"
)

var flowsFlags struct {
	schema string
}

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the available forms and their fields",
	Long: `List the available forms and their fields. Required fields carry a '*'.

Use --schema NAME to print the YAML a flow was compiled from. Copy it into
the forms_dir directory to override the built-in flow.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if flowsFlags.schema == "" {
			return printFlows(cmd.OutOrStdout(), reg)
		}
		flow, err := reg.Get(flowsFlags.schema)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), colorize(string(flow.Source), "yaml"))
		return nil
	},
}

func init() {
	flowsCmd.Flags().StringVar(&flowsFlags.schema, "schema", "", "Print the YAML schema of the named flow")
}

var providersCmd = &cobra.Command{
	Use:   "providers [query]",
	Short: "Search providers by name or specialty",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		found := catalog.SearchProviders(query)
		if len(found) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No providers match %q\n", query)
			return nil
		}
		for _, p := range found {
			fmt.Fprintf(cmd.OutOrStdout(), "%-4s %-20s %s\n", p.ID, p.Name, strings.Join(p.Specialties, ", "))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:       "list claims|rois",
	Short:     "List previously filed claims or ROI authorizations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"claims", "rois"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "claims":
			for _, c := range catalog.Claims() {
				fmt.Fprintf(w, "%-4s %-20s %s\n", c.ID, c.Provider, c.Status)
			}
		case "rois":
			for _, r := range catalog.ROIs() {
				fmt.Fprintf(w, "%-4s %-20s %s\n", r.ID, r.Purpose, r.Status)
			}
		}
		return nil
	},
}

// printFlows writes every flow with its steps and fields. Required fields
// carry a '*'.
func printFlows(w io.Writer, reg *forms.Registry) error {
	for i, name := range reg.Names() {
		flow, err := reg.Get(name)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s (%s)\n", flow.Name, flow.Title, flow.ReferencePrefix)
		for j, step := range flow.Steps() {
			fmt.Fprintf(w, "  %d. %s\n", j+1, step.Title)
			for _, f := range step.Fields {
				key := f.Key
				if f.Required {
					key += "*"
				}
				line := fmt.Sprintf("     %-18s %-13s %s", key, f.Kind, f.Label)
				if len(f.Options) > 0 {
					line += " [" + strings.Join(f.Options, ", ") + "]"
				}
				fmt.Fprintln(w, line)
			}
		}
	}
	return nil
}
