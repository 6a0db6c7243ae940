package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/microlens-cli/internal/study"
)

var (
	listStudies   bool
	listRuns      bool
	listStudyName string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List studies or the runs saved in a study",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listStudies == listRuns { // either both true or both false
			return fmt.Errorf("specify exactly one of --studies or --runs")
		}
		out := cmd.OutOrStdout()
		if listStudies {
			root, err := studiesDir()
			if err != nil {
				return err
			}
			names, err := study.List(root)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "(no studies)")
				return nil
			}
			for _, n := range names {
				fmt.Fprintf(out, "- %s\n", n)
			}
			return nil
		}
		if listStudyName == "" {
			return fmt.Errorf("--study is required when using --runs")
		}
		s, err := openStudy(listStudyName)
		if err != nil {
			return err
		}
		runs := s.ListRuns()
		if len(runs) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "- %s: %s (%s, %d samples, %s)\n",
				r.ID, r.Source, r.Fidelity, r.Samples, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listStudies, "studies", false, "list studies")
	listCmd.Flags().BoolVar(&listRuns, "runs", false, "list runs in a study")
	listCmd.Flags().StringVarP(&listStudyName, "study", "s", "", "study name for --runs")
}
