package analysis

import (
	"fmt"
	"strings"
)

// Markdown renders a compact text report for the terminal or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	g := r.GlobalInsights
	b.WriteString("[EXPOSURE SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Samples: %d (fidelity %s)\n", g.TotalCountries, r.Fidelity))
	b.WriteString(fmt.Sprintf("Global average intake: %.1f\n", g.GlobalAvgIntake))
	b.WriteString(fmt.Sprintf("Highest risk: %s; lowest risk: %s\n", g.HighestRiskCountry, g.LowestRiskCountry))
	b.WriteString(fmt.Sprintf("Most problematic food: %s; safest food: %s\n", g.MostProblematicFood, g.SafestFood))
	d := r.ResearchSummary.RiskDistribution
	b.WriteString(fmt.Sprintf("Risk distribution: high %d, moderate %d, low %d\n", d.HighRisk, d.ModerateRisk, d.LowRisk))

	if len(r.CountryAnalyses) > 0 {
		b.WriteString("\n[COUNTRY ANALYSIS]\n")
		b.WriteString("| Country | Total | Average | Risk | Top source |\n")
		b.WriteString("| --- | --- | --- | --- | --- |\n")
		for _, e := range r.CountryAnalyses {
			top := ""
			if len(e.FoodBreakdown) > 0 {
				top = fmt.Sprintf("%s (%.1f)", e.FoodBreakdown[0].FoodSource, e.FoodBreakdown[0].IntakeLevel)
			}
			b.WriteString(fmt.Sprintf("| %s | %.1f | %.1f | %s | %s |\n", safeVal(e.Country), e.TotalIntake, e.AverageIntake, e.RiskLevel, top))
		}
	}

	if len(r.FoodSourceAnalysis) > 0 {
		b.WriteString("\n[FOOD SOURCES]\n")
		for _, f := range r.FoodSourceAnalysis {
			b.WriteString(fmt.Sprintf("- %s: mean %.1f (min %.1f, max %.1f), %s; %d above 75th percentile\n",
				f.FoodSource, f.GlobalAverage, f.LowestExposure, f.HighestExposure, f.RiskLevel, f.CountriesAtRisk))
			if f.MainConcern != "" {
				b.WriteString(fmt.Sprintf("  • concern: %s\n", f.MainConcern))
			}
		}
	}

	if len(r.PopulationClusters) > 0 {
		b.WriteString("\n[POPULATION CLUSTERS]\n")
		for _, c := range r.PopulationClusters {
			b.WriteString(fmt.Sprintf("- #%d %s (n=%d, mean total %.1f): %s\n",
				c.ClusterID, c.RiskCategory, c.SampleCount, c.AverageIntake, strings.Join(c.Countries, ", ")))
			b.WriteString(fmt.Sprintf("  • %s\n", c.PolicyRecommendation))
		}
	}

	if len(r.ConsumptionPatterns) > 0 {
		b.WriteString("\n[CONSUMPTION PATTERNS]\n")
		maxp := 10
		if len(r.ConsumptionPatterns) < maxp {
			maxp = len(r.ConsumptionPatterns)
		}
		for _, p := range r.ConsumptionPatterns[:maxp] {
			b.WriteString(fmt.Sprintf("- %s → %s: confidence %s, support %s, lift %.2f\n",
				p.HighConsumptionIn, p.OftenLeadsToHigh, p.Confidence, p.Support, p.Lift))
		}
		if rest := len(r.ConsumptionPatterns) - maxp; rest > 0 {
			b.WriteString(fmt.Sprintf("- … %d more\n", rest))
		}
	}

	var notes []string
	for _, c := range []struct {
		name string
		o    Outcome
	}{
		{"clustering", r.Diagnostics.Clustering},
		{"projection", r.Diagnostics.Projection},
		{"mining", r.Diagnostics.Mining},
		{"visualization", r.Diagnostics.Visualization},
	} {
		if c.o.Status == StatusDegenerate || c.o.Status == StatusFailed {
			notes = append(notes, fmt.Sprintf("%s %s: %s", c.name, c.o.Status, c.o.Reason))
		}
	}
	if len(notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
