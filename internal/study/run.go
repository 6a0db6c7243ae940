package study

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/utils"
)

const runsDir = "runs"

// Run is a saved analysis report inside a study.
type Run struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Fidelity    string    `json:"fidelity"`
	Samples     int       `json:"samples"`
	Clusters    int       `json:"clusters"`
	Patterns    int       `json:"patterns"`
	HighestRisk string    `json:"highest_risk"`
	GlobalAvg   float64   `json:"global_avg_intake"`
	ReportPath  string    `json:"report_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddRun stores rep under runs/<id>.json and records it in the manifest.
func (s *Study) AddRun(rep *analysis.Report, source string) (*Run, error) {
	if rep == nil {
		return nil, fmt.Errorf("add run: nil report")
	}
	id := uuid.New().String()
	rel := filepath.Join(runsDir, id+".json")
	if err := utils.EnsureDir(filepath.Join(s.rootDir, runsDir)); err != nil {
		return nil, fmt.Errorf("ensure runs dir: %w", err)
	}
	b, err := utils.PrettyJSON(rep)
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(filepath.Join(s.rootDir, rel), b); err != nil {
		return nil, err
	}
	r := &Run{
		ID:          id,
		Source:      source,
		Fidelity:    string(rep.Fidelity),
		Samples:     rep.GlobalInsights.TotalCountries,
		Clusters:    len(rep.PopulationClusters),
		Patterns:    len(rep.ConsumptionPatterns),
		HighestRisk: rep.GlobalInsights.HighestRiskCountry,
		GlobalAvg:   rep.GlobalInsights.GlobalAvgIntake,
		ReportPath:  rel,
		CreatedAt:   time.Now(),
	}
	s.Runs[id] = r
	if err := s.Save(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadReport reads a saved run's report back from disk.
func (s *Study) LoadReport(id string) (*analysis.Report, error) {
	r, ok := s.Runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	b, err := os.ReadFile(filepath.Join(s.rootDir, r.ReportPath))
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	var rep analysis.Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	return &rep, nil
}

// RemoveRun deletes a run and its report file.
func (s *Study) RemoveRun(id string) error {
	r, ok := s.Runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err := os.Remove(filepath.Join(s.rootDir, r.ReportPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run: %w", err)
	}
	delete(s.Runs, id)
	return s.Save()
}
