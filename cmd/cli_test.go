package cmd

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/study"
)

const quickCSV = `Region,Seafood_Intake,Bottled_Water_Intake,Salt_Intake,Sugar_Intake,Packaged_Food_Intake
Japan,85,180,25,8,220
China,280,420,65,18,380
Norway,60,120,15,5,140
USA,120,250,35,12,290
Brazil,95,200,30,10,260
India,220,380,55,15,350
`

// resetCLIState clears flag-bound globals that persist across Execute calls.
func resetCLIState() {
	anaStudy, anaOutputPath, anaFormat, anaFidelity, anaPlotPath = "", "", "markdown", "", ""
	anaIngest = ingestFlags{sheetIndex: 1}
	abStudy, abOutputDir, abFormat, abFidelity, abJobs, abQuiet = "", "", "markdown", "", 0, false
	abIngest = ingestFlags{sheetIndex: 1}
	listStudies, listRuns, listStudyName = false, false, ""
	initDescription = ""
	stFormat, stOutput = "markdown", ""
	sourcesJSON = false
}

// execCmd executes the root command with args and returns its output.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCLIState()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

// isolateHome points HOME at a temp dir so studies and config stay local.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg = nil
	return home
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestCLI_Init_Analyze_ListAndReport(t *testing.T) {
	home := isolateHome(t)
	data := writeFile(t, filepath.Join(home, "quick.csv"), quickCSV)

	runCmd(t, "init", "pilot", "-d", "pilot study")
	if _, err := execCmd(t, "init", "pilot"); err == nil {
		t.Fatalf("expected duplicate init to fail")
	}

	out := runCmd(t, "analyze", data, "--study", "pilot")
	if !strings.Contains(out, "Saved run") {
		t.Fatalf("expected save confirmation, got %q", out)
	}

	out = runCmd(t, "list", "--studies")
	if !strings.Contains(out, "- pilot") {
		t.Fatalf("study not listed: %q", out)
	}
	out = runCmd(t, "list", "--runs", "--study", "pilot")
	if !strings.Contains(out, "quick.csv") {
		t.Fatalf("run not listed: %q", out)
	}

	dir, err := studiesDir()
	if err != nil {
		t.Fatal(err)
	}
	s, err := study.Open(dir, "pilot")
	if err != nil {
		t.Fatalf("open study: %v", err)
	}
	runs := s.ListRuns()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	out = runCmd(t, "study", "report", "pilot", runs[0].ID, "--format", "json")
	var rep analysis.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, out)
	}
	if rep.GlobalInsights.HighestRiskCountry != "China" || rep.GlobalInsights.LowestRiskCountry != "Norway" {
		t.Fatalf("unexpected insights: %+v", rep.GlobalInsights)
	}

	out = runCmd(t, "study", "show", "pilot")
	if !strings.Contains(out, "Runs: 1") {
		t.Fatalf("unexpected show output: %q", out)
	}
	runCmd(t, "study", "remove-run", "pilot", runs[0].ID)
	out = runCmd(t, "list", "--runs", "--study", "pilot")
	if !strings.Contains(out, "(no runs)") {
		t.Fatalf("expected no runs after removal: %q", out)
	}
}

func TestCLI_AnalyzeToStdout(t *testing.T) {
	home := isolateHome(t)
	data := writeFile(t, filepath.Join(home, "quick.csv"), quickCSV)

	out := runCmd(t, "analyze", data)
	for _, want := range []string{"[EXPOSURE SUMMARY]", "[COUNTRY ANALYSIS]", "[POPULATION CLUSTERS]", "China"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}

	out = runCmd(t, "analyze", data, "--fidelity", "basic")
	if strings.Contains(out, "[POPULATION CLUSTERS]") {
		t.Fatalf("basic fidelity should not cluster:\n%s", out)
	}
}

func TestCLI_AnalyzeJSONOutputAndPlot(t *testing.T) {
	home := isolateHome(t)
	data := writeFile(t, filepath.Join(home, "quick.csv"), quickCSV)
	outPath := filepath.Join(home, "report.json")
	plotPath := filepath.Join(home, "plot.png")

	runCmd(t, "analyze", data, "--format", "json", "--output", outPath, "--plot", plotPath)

	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep analysis.Report
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(rep.PopulationClusters) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(rep.PopulationClusters))
	}

	f, err := os.Open(plotPath)
	if err != nil {
		t.Fatalf("open plot: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Fatalf("plot is not a PNG: %v", err)
	}
}

func TestCLI_AnalyzeInferSchema(t *testing.T) {
	home := isolateHome(t)
	data := writeFile(t, filepath.Join(home, "custom.csv"), "Site;Fish;Water\nA;1,5;10\nB;2,5;20\nC;3,5;15\n")

	if _, err := execCmd(t, "analyze", data); err == nil || !strings.Contains(err.Error(), "--infer-schema") {
		t.Fatalf("expected schema hint, got %v", err)
	}

	out := runCmd(t, "analyze", data, "--label", "Site", "--infer-schema", "--decimal", "comma", "--format", "json")
	var rep analysis.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rep.GlobalInsights.TotalCountries != 3 || rep.GlobalInsights.HighestRiskCountry != "B" {
		t.Fatalf("unexpected insights: %+v", rep.GlobalInsights)
	}
}

func TestCLI_AnalyzeRejects(t *testing.T) {
	home := isolateHome(t)
	data := writeFile(t, filepath.Join(home, "quick.csv"), quickCSV)

	cases := [][]string{
		{"analyze", data, "--format", "yaml"},
		{"analyze", data, "--fidelity", "extreme"},
		{"analyze", data, "--delimiter", "|"},
		{"analyze", data, "--study", "missing"},
		{"analyze", filepath.Join(home, "nope.csv")},
		{"list"},
		{"list", "--runs"},
	}
	for _, args := range cases {
		if _, err := execCmd(t, args...); err == nil {
			t.Errorf("expected %v to fail", args)
		}
	}
}

func TestCLI_Sources(t *testing.T) {
	isolateHome(t)
	out := runCmd(t, "sources")
	if !strings.Contains(out, "Seafood (Seafood_Intake)") {
		t.Fatalf("unexpected sources output:\n%s", out)
	}
	out = runCmd(t, "sources", "--json")
	var sources []map[string]string
	if err := json.Unmarshal([]byte(out), &sources); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sources) != 5 {
		t.Fatalf("expected 5 food sources, got %d", len(sources))
	}
}
