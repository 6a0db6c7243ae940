package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	stFormat string
	stOutput string
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Inspect and manage saved study runs",
}

var studyShowCmd = &cobra.Command{
	Use:   "show <study>",
	Short: "Show a study and a summary of its runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStudy(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Study: %s\n", s.Name)
		if s.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", s.Description)
		}
		fmt.Fprintf(out, "Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04"))
		runs := s.ListRuns()
		fmt.Fprintf(out, "Runs: %d\n", len(runs))
		for _, r := range runs {
			fmt.Fprintf(out, "- %s  %s  samples=%d clusters=%d patterns=%d avg=%.1f highest=%s\n",
				r.ID, r.Source, r.Samples, r.Clusters, r.Patterns, r.GlobalAvg, r.HighestRisk)
		}
		return nil
	},
}

var studyReportCmd = &cobra.Command{
	Use:   "report <study> <run-id>",
	Short: "Print a saved run's report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStudy(args[0])
		if err != nil {
			return err
		}
		rep, err := s.LoadReport(args[1])
		if err != nil {
			return err
		}
		return writeReport(rep, outputOptions{Format: stFormat, OutputPath: stOutput, Writer: cmd.OutOrStdout()})
	},
}

var studyRemoveRunCmd = &cobra.Command{
	Use:   "remove-run <study> <run-id>",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStudy(args[0])
		if err != nil {
			return err
		}
		if err := s.RemoveRun(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed run %s from study '%s'\n", args[1], s.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(studyCmd)
	studyCmd.AddCommand(studyShowCmd)
	studyCmd.AddCommand(studyReportCmd)
	studyCmd.AddCommand(studyRemoveRunCmd)
	studyReportCmd.Flags().StringVarP(&stFormat, "format", "f", "markdown", "report format: markdown|json")
	studyReportCmd.Flags().StringVarP(&stOutput, "output", "o", "", "optional path to write the report")
}
