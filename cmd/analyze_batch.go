package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/ingest"
	"github.com/KaramelBytes/microlens-cli/internal/render"
	"github.com/KaramelBytes/microlens-cli/internal/study"
)

var (
	abStudy     string
	abOutputDir string
	abFormat    string
	abFidelity  string
	abJobs      int
	abQuiet     bool
	abIngest    ingestFlags
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files or dirs...>",
	Short: "Analyze multiple CSV/TSV/XLSX files concurrently with optional study attachment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}

		opt, err := abIngest.options()
		if err != nil {
			return err
		}
		fidelity, err := resolveFidelity(abFidelity)
		if err != nil {
			return err
		}
		if err := checkFormat(abFormat); err != nil {
			return err
		}

		var s *study.Study
		if abStudy != "" {
			if s, err = openStudy(abStudy); err != nil {
				return err
			}
		}
		if abOutputDir != "" {
			if err := os.MkdirAll(abOutputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}

		jobs := abJobs
		if jobs <= 0 && cfg != nil {
			jobs = cfg.BatchJobs
		}
		if jobs <= 0 {
			jobs = 1
		}

		reports := make([]*analysis.Report, len(files))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(jobs)
		for i, path := range files {
			g.Go(func() error {
				tbl, err := ingest.ReadFile(path, opt)
				if err != nil {
					return describeInputError(path, err)
				}
				rep, err := analysis.Analyze(ctx, tbl, analysis.Options{
					Name:     filepath.Base(path),
					Fidelity: fidelity,
					Renderer: render.New(),
					Logger:   logger().WithField("file", filepath.Base(path)),
				})
				if err != nil {
					return describeInputError(path, err)
				}
				reports[i] = rep
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		total := len(files)
		used := map[string]int{}
		for i, path := range files {
			rep := reports[i]
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] %s: %d samples, highest risk %s\n",
					i+1, total, filepath.Base(path), rep.GlobalInsights.TotalCountries, rep.GlobalInsights.HighestRiskCountry)
			}
			written := false
			if abOutputDir != "" {
				target := filepath.Join(abOutputDir, reportFileName(path, abFormat, used))
				if err := writeReport(rep, outputOptions{Format: abFormat, OutputPath: target, Quiet: abQuiet, Writer: out}); err != nil {
					return err
				}
				written = true
			}
			if s != nil {
				run, err := s.AddRun(rep, path)
				if err != nil {
					return err
				}
				if !abQuiet {
					fmt.Fprintf(out, "✓ Saved run %s to study '%s'\n", run.ID, s.Name)
				}
				written = true
			}
			if !written && !abQuiet {
				if err := writeReport(rep, outputOptions{Format: abFormat, Writer: out}); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths, dropping duplicates.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			for _, f := range dirInputs(m) {
				if _, ok := seen[f]; ok {
					continue
				}
				seen[f] = struct{}{}
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}

// dirInputs expands a directory to the readable tables directly inside it;
// any other path is returned as is.
func dirInputs(path string) []string {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return []string{path}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && ingest.Supported(e.Name()) {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	return out
}

// reportFileName derives a unique report name for path, suffixing
// repeated basenames with __2, __3 and so on.
func reportFileName(path, format string, used map[string]int) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext := ".report.md"
	if strings.EqualFold(format, "json") {
		ext = ".report.json"
	}
	used[stem]++
	if n := used[stem]; n > 1 {
		return fmt.Sprintf("%s__%d%s", stem, n, ext)
	}
	return stem + ext
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVarP(&abStudy, "study", "s", "", "study name to save reports into")
	analyzeBatchCmd.Flags().StringVar(&abOutputDir, "output-dir", "", "directory to write one report per input")
	analyzeBatchCmd.Flags().StringVarP(&abFormat, "format", "f", "markdown", "report format: markdown|json")
	analyzeBatchCmd.Flags().StringVar(&abFidelity, "fidelity", "", "full|basic (default from config)")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 0, "files analyzed concurrently (default from config)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	bindIngestFlags(analyzeBatchCmd, &abIngest)
}
