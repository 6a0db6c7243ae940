package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/microlens-cli/internal/config"
	"github.com/KaramelBytes/microlens-cli/internal/exposure"
)

func TestIngestFlagsOptions(t *testing.T) {
	cfg = nil

	opt, err := ingestFlags{}.options()
	require.NoError(t, err)
	assert.Equal(t, "Region", opt.Schema.Label)
	assert.Equal(t, exposure.DefaultColumns(), opt.Schema.Columns)

	opt, err = ingestFlags{label: "Site", columns: []string{"A", "B"}, delimiter: "tab", decimal: "comma", thousands: "space"}.options()
	require.NoError(t, err)
	assert.Equal(t, "Site", opt.Schema.Label)
	assert.Equal(t, []string{"A", "B"}, opt.Schema.Columns)
	assert.Equal(t, '\t', opt.Delimiter)
	assert.Equal(t, ',', opt.DecimalSeparator)
	assert.Equal(t, ' ', opt.ThousandsSeparator)

	opt, err = ingestFlags{infer: true, columns: []string{"ignored"}}.options()
	require.NoError(t, err)
	assert.True(t, opt.Schema.Infer)
	assert.Empty(t, opt.Schema.Columns)

	for _, bad := range []ingestFlags{{delimiter: "|"}, {decimal: "x"}, {thousands: "_"}} {
		_, err := bad.options()
		assert.Error(t, err)
	}
}

func TestIngestFlagsUseConfiguredSchema(t *testing.T) {
	cfg = &cfgpkg.Global{SchemaLabel: "Country", SchemaColumns: []string{"Fish"}}
	defer func() { cfg = nil }()

	opt, err := ingestFlags{}.options()
	require.NoError(t, err)
	assert.Equal(t, "Country", opt.Schema.Label)
	assert.Equal(t, []string{"Fish"}, opt.Schema.Columns)
}

func TestResolveFidelity(t *testing.T) {
	cfg = nil
	f, err := resolveFidelity("")
	require.NoError(t, err)
	assert.Equal(t, analysis.FidelityFull, f)

	cfg = &cfgpkg.Global{DefaultFidelity: "basic"}
	defer func() { cfg = nil }()
	f, err = resolveFidelity("")
	require.NoError(t, err)
	assert.Equal(t, analysis.FidelityBasic, f)

	f, err = resolveFidelity("full")
	require.NoError(t, err)
	assert.Equal(t, analysis.FidelityFull, f)
}

func TestWriteReportFormats(t *testing.T) {
	rep := &analysis.Report{Name: "x.csv", Fidelity: analysis.FidelityBasic}

	var buf bytes.Buffer
	require.NoError(t, writeReport(rep, outputOptions{Format: "json", Writer: &buf}))
	assert.Contains(t, buf.String(), `"name": "x.csv"`)

	buf.Reset()
	require.NoError(t, writeReport(rep, outputOptions{Writer: &buf}))
	assert.Contains(t, buf.String(), "[EXPOSURE SUMMARY]")

	dir := t.TempDir()
	path := filepath.Join(dir, "out.md")
	buf.Reset()
	require.NoError(t, writeReport(rep, outputOptions{OutputPath: path, Writer: &buf}))
	assert.Contains(t, buf.String(), "Wrote analysis")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "[EXPOSURE SUMMARY]"))
	// rewriting goes through a temp file and leaves nothing else behind
	require.NoError(t, writeReport(rep, outputOptions{OutputPath: path, Format: "json", Quiet: true, Writer: &buf}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Error(t, writeReport(rep, outputOptions{Format: "yaml", Writer: &buf}))
}

func TestWritePlotRequiresImage(t *testing.T) {
	rep := &analysis.Report{Diagnostics: analysis.Diagnostics{Visualization: analysis.Outcome{Status: analysis.StatusSkipped, Reason: "basic fidelity"}}}
	err := writePlot(rep, filepath.Join(t.TempDir(), "p.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "basic fidelity")
}

func TestReportFileName(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "metrics.report.md", reportFileName("d1/metrics.csv", "markdown", used))
	assert.Equal(t, "metrics__2.report.md", reportFileName("d2/metrics.csv", "markdown", used))
	assert.Equal(t, "other.report.json", reportFileName("other.xlsx", "json", used))
}

func TestExpandInputsDedupes(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.csv"), "x")
	b := writeFile(t, filepath.Join(dir, "b.csv"), "x")
	got := expandInputs([]string{filepath.Join(dir, "*.csv"), a, filepath.Join(dir, "missing.csv")})
	assert.Equal(t, []string{a, b}, got)
}

func TestExpandInputsDirectory(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.csv"), "x")
	b := writeFile(t, filepath.Join(dir, "b.xlsx"), "x")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))

	got := expandInputs([]string{dir, a})
	assert.Equal(t, []string{a, b}, got)
}

func TestSetConfigValue(t *testing.T) {
	c := &cfgpkg.Global{}
	require.NoError(t, setConfigValue(c, "schema_columns", "Fish, Water,"))
	assert.Equal(t, []string{"Fish", "Water"}, c.SchemaColumns)
	require.NoError(t, setConfigValue(c, "default_fidelity", "BASIC"))
	assert.Equal(t, "basic", c.DefaultFidelity)
	require.NoError(t, setConfigValue(c, "batch_jobs", "8"))
	assert.Equal(t, 8, c.BatchJobs)
	require.NoError(t, setConfigValue(c, "server_rate_limit", "2.5"))
	assert.Equal(t, 2.5, c.ServerRateLimit)

	for _, kv := range [][2]string{
		{"unknown", "x"},
		{"batch_jobs", "-1"},
		{"log_format", "xml"},
		{"default_fidelity", "extreme"},
		{"schema_columns", " , "},
	} {
		assert.Error(t, setConfigValue(c, kv[0], kv[1]), kv[0])
	}
}

func TestServerConfigDefaults(t *testing.T) {
	cfg = nil
	sc, err := serverConfig()
	require.NoError(t, err)
	assert.Equal(t, 5000, sc.Port)
	assert.Equal(t, analysis.FidelityFull, sc.Fidelity)
	assert.Equal(t, "Region", sc.Schema.Label)

	cfg = &cfgpkg.Global{ServerPort: 8080, DefaultFidelity: "basic", CacheSize: 2}
	defer func() { cfg = nil }()
	sc, err = serverConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, sc.Port)
	assert.Equal(t, analysis.FidelityBasic, sc.Fidelity)
	assert.Equal(t, 2, sc.CacheSize)
}
