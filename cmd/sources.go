package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/microlens-cli/internal/exposure"
	"github.com/KaramelBytes/microlens-cli/internal/utils"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the recognized food-source columns and their guidance",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		sources := exposure.FoodSources()
		if sourcesJSON {
			b, err := utils.PrettyJSON(sources)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		for _, s := range sources {
			fmt.Fprintf(out, "%s (%s)\n", s.Name, s.ID)
			fmt.Fprintf(out, "  %s\n", s.Description)
			fmt.Fprintf(out, "  risk: %s\n", s.MainRisk)
			fmt.Fprintf(out, "  global: %s\n", s.GlobalSolution)
			fmt.Fprintf(out, "  country: %s\n", s.CountryAction)
		}
		fmt.Fprintf(out, "\nDefault columns: %s\n", strings.Join(exposure.DefaultColumns(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "print the registry as JSON")
}
