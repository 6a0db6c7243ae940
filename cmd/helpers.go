package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/ingest"
	"github.com/KaramelBytes/microlens-cli/internal/study"
	"github.com/KaramelBytes/microlens-cli/internal/table"
	"github.com/KaramelBytes/microlens-cli/internal/utils"
)

// ingestFlags are the input-shaping flags shared by analyze and analyze-batch.
type ingestFlags struct {
	label      string
	columns    []string
	infer      bool
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
}

func bindIngestFlags(c *cobra.Command, f *ingestFlags) {
	c.Flags().StringVar(&f.label, "label", "", "label column name (default from config, Region)")
	c.Flags().StringSliceVar(&f.columns, "columns", nil, "comma-separated numeric columns (default from config)")
	c.Flags().BoolVar(&f.infer, "infer-schema", false, "treat every non-label header as a numeric column")
	c.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	c.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	c.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	c.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	c.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// options resolves the flags on top of the configured schema.
func (f ingestFlags) options() (ingest.Options, error) {
	opt := ingest.Options{Schema: cfg.Schema(), SheetName: f.sheetName, SheetIndex: f.sheetIndex}
	if f.label != "" {
		opt.Schema.Label = f.label
	}
	if len(f.columns) > 0 {
		opt.Schema.Columns = f.columns
	}
	if f.infer {
		opt.Schema.Infer = true
		opt.Schema.Columns = nil
	}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

// resolveFidelity picks the flag value, then the configured default.
func resolveFidelity(flag string) (analysis.Fidelity, error) {
	if flag == "" && cfg != nil {
		flag = cfg.DefaultFidelity
	}
	return analysis.ParseFidelity(flag)
}

func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "markdown", "md", "text", "json":
		return nil
	}
	return fmt.Errorf("unsupported --format: %s (use markdown|json)", format)
}

// formatReport renders rep as markdown or indented JSON.
func formatReport(rep *analysis.Report, format string) ([]byte, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if strings.EqualFold(format, "json") {
		return utils.PrettyJSON(rep)
	}
	return []byte(rep.Markdown()), nil
}

type outputOptions struct {
	Format     string
	OutputPath string
	Quiet      bool
	Writer     io.Writer
}

// writeReport prints the report, or writes it to OutputPath when one is given.
func writeReport(rep *analysis.Report, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	content, err := formatReport(rep, opts.Format)
	if err != nil {
		return err
	}
	if opts.OutputPath == "" {
		_, err := fmt.Fprintln(w, string(content))
		return err
	}
	if err := utils.SafeWriteFile(opts.OutputPath, content); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "✓ Wrote analysis to %s\n", opts.OutputPath)
	}
	return nil
}

// writePlot decodes the report's embedded PNG into path.
func writePlot(rep *analysis.Report, path string) error {
	if !rep.Diagnostics.Visualization.OK() {
		return fmt.Errorf("no plot available (%s: %s)", rep.Diagnostics.Visualization.Status, rep.Diagnostics.Visualization.Reason)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(rep.VisualizationURL, prefix) {
		return errors.New("visualization is not an embedded PNG")
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(rep.VisualizationURL, prefix))
	if err != nil {
		return fmt.Errorf("decode plot: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// studiesDir returns the configured studies directory, ensuring it exists.
func studiesDir() (string, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.StudiesDir
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".microlens", "studies")
	}
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = strings.TrimPrefix(dir, "~")
		dir = strings.TrimPrefix(dir, string(os.PathSeparator))
		dir = strings.TrimPrefix(dir, "/")
		dir = filepath.Join(home, dir)
	}
	dir = filepath.Clean(dir)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// openStudy loads an existing study by name.
func openStudy(name string) (*study.Study, error) {
	root, err := studiesDir()
	if err != nil {
		return nil, err
	}
	s, err := study.Open(root, name)
	if errors.Is(err, study.ErrNotFound) {
		return nil, fmt.Errorf("study %q does not exist; run 'microlens init %s' first", name, name)
	}
	return s, err
}

// describeInputError adds a hint for schema mismatches.
func describeInputError(path string, err error) error {
	if errors.Is(err, table.ErrMissingColumn) || errors.Is(err, table.ErrUnknownColumn) {
		return fmt.Errorf("%s: %w (use --columns, --label or --infer-schema to match the file header)", filepath.Base(path), err)
	}
	return fmt.Errorf("%s: %w", filepath.Base(path), err)
}
