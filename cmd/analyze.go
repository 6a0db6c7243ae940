package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/ingest"
	"github.com/KaramelBytes/microlens-cli/internal/render"
)

var (
	anaStudy      string
	anaOutputPath string
	anaFormat     string
	anaFidelity   string
	anaPlotPath   string
	anaIngest     ingestFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX intake table and produce an exposure report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt, err := anaIngest.options()
		if err != nil {
			return err
		}
		fidelity, err := resolveFidelity(anaFidelity)
		if err != nil {
			return err
		}
		if err := checkFormat(anaFormat); err != nil {
			return err
		}

		tbl, err := ingest.ReadFile(path, opt)
		if err != nil {
			return describeInputError(path, err)
		}
		rep, err := analysis.Analyze(cmd.Context(), tbl, analysis.Options{
			Name:     filepath.Base(path),
			Fidelity: fidelity,
			Renderer: render.New(),
			Logger:   logger().WithField("file", filepath.Base(path)),
		})
		if err != nil {
			return describeInputError(path, err)
		}

		out := cmd.OutOrStdout()
		if anaPlotPath != "" {
			if err := writePlot(rep, anaPlotPath); err != nil {
				fmt.Fprintf(out, "⚠ Warning: %v\n", err)
			} else {
				fmt.Fprintf(out, "✓ Wrote plot to %s\n", anaPlotPath)
			}
		}

		// Decide where to write: --output path, or save to study, or stdout
		written := false
		if anaOutputPath != "" {
			if err := writeReport(rep, outputOptions{Format: anaFormat, OutputPath: anaOutputPath, Writer: out}); err != nil {
				return err
			}
			written = true
		}
		if anaStudy != "" {
			s, err := openStudy(anaStudy)
			if err != nil {
				return err
			}
			run, err := s.AddRun(rep, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Saved run %s to study '%s'\n", run.ID, s.Name)
			written = true
		}
		if !written {
			return writeReport(rep, outputOptions{Format: anaFormat, Writer: out})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaStudy, "study", "s", "", "study name to save the report into")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", "markdown", "report format: markdown|json")
	analyzeCmd.Flags().StringVar(&anaFidelity, "fidelity", "", "full|basic (default from config)")
	analyzeCmd.Flags().StringVar(&anaPlotPath, "plot", "", "optional path to write the cluster scatter plot (PNG)")
	bindIngestFlags(analyzeCmd, &anaIngest)
}
