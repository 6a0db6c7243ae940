package analysis

import (
	"fmt"
	"sort"

	"github.com/KaramelBytes/microlens-cli/internal/exposure"
	"github.com/KaramelBytes/microlens-cli/internal/table"
)

// Report is the serialized analysis record. Numbers are rounded to one decimal.
type Report struct {
	Name                string            `json:"name,omitempty"`
	Fidelity            Fidelity          `json:"fidelity"`
	GlobalInsights      GlobalInsights    `json:"global_insights"`
	CountryAnalyses     []EntityAnalysis  `json:"country_analyses"`
	PopulationClusters  []ClusterSummary  `json:"population_clusters"`
	FoodSourceAnalysis  []FoodSourceStats `json:"food_source_analysis"`
	ConsumptionPatterns []Pattern         `json:"consumption_patterns"`
	VisualizationURL    string            `json:"visualization_url"`
	Projection          *ProjectionRecord `json:"projection,omitempty"`
	ResearchSummary     ResearchSummary   `json:"research_summary"`
	Diagnostics         Diagnostics       `json:"diagnostics"`
}

type GlobalInsights struct {
	TotalCountries      int     `json:"total_countries"`
	GlobalAvgIntake     float64 `json:"global_avg_intake"`
	HighestRiskCountry  string  `json:"highest_risk_country"`
	LowestRiskCountry   string  `json:"lowest_risk_country"`
	MostProblematicFood string  `json:"most_problematic_food"`
	SafestFood          string  `json:"safest_food"`
}

// EntityAnalysis is the per-row risk assessment.
type EntityAnalysis struct {
	Country         string                    `json:"country"`
	SampleID        int                       `json:"sample_id"`
	TotalIntake     float64                   `json:"total_intake"`
	AverageIntake   float64                   `json:"average_intake"`
	RiskLevel       exposure.RiskBand         `json:"risk_level"`
	Color           string                    `json:"color"`
	Recommendations exposure.Recommendations `json:"recommendations"`
	FoodBreakdown   []FoodIntake              `json:"food_breakdown"`
}

type FoodIntake struct {
	FoodSource  string            `json:"food_source"`
	IntakeLevel float64           `json:"intake_level"`
	RiskLevel   exposure.RiskBand `json:"risk_level"`
	Color       string            `json:"color"`
}

type ClusterSummary struct {
	ClusterID            int      `json:"cluster_id"`
	RiskCategory         string   `json:"risk_category"`
	Description          string   `json:"description"`
	HealthImpact         string   `json:"health_impact"`
	PolicyRecommendation string   `json:"policy_recommendation"`
	AverageIntake        float64  `json:"average_intake"`
	Countries            []string `json:"countries"`
	SampleCount          int      `json:"sample_count"`
}

type FoodSourceStats struct {
	ID              string            `json:"id"`
	FoodSource      string            `json:"food_source"`
	GlobalAverage   float64           `json:"global_average"`
	HighestExposure float64           `json:"highest_exposure"`
	LowestExposure  float64           `json:"lowest_exposure"`
	RiskLevel       exposure.RiskBand `json:"risk_level"`
	Color           string            `json:"color"`
	CountriesAtRisk int               `json:"countries_at_risk"`
	MainConcern     string            `json:"main_concern"`
	GlobalSolution  string            `json:"global_solution"`
	CountryAction   string            `json:"country_action"`
}

// Pattern is the presentation form of a Rule.
type Pattern struct {
	HighConsumptionIn string  `json:"high_consumption_in"`
	OftenLeadsToHigh  string  `json:"often_leads_to_high"`
	Confidence        string  `json:"confidence"`
	Support           string  `json:"support"`
	Lift              float64 `json:"lift"`
	Implication       string  `json:"implication"`
}

type ProjectionRecord struct {
	Points            []Point    `json:"points"`
	ExplainedVariance [2]float64 `json:"explained_variance"`
}

type ResearchSummary struct {
	TotalSamples     int              `json:"total_samples"`
	RiskDistribution RiskDistribution `json:"risk_distribution"`
}

type RiskDistribution struct {
	HighRisk     int `json:"high_risk"`
	ModerateRisk int `json:"moderate_risk"`
	LowRisk      int `json:"low_risk"`
}

// Total is the number of classified entities.
func (d RiskDistribution) Total() int { return d.HighRisk + d.ModerateRisk + d.LowRisk }

// Diagnostics carries the per-component outcomes of a run.
type Diagnostics struct {
	Clustering    Outcome `json:"clustering"`
	Projection    Outcome `json:"projection"`
	Mining        Outcome `json:"mining"`
	Visualization Outcome `json:"visualization"`
}

// Failed reports whether any component fell back after a fault or cancellation.
func (d Diagnostics) Failed() bool {
	for _, o := range []Outcome{d.Clustering, d.Projection, d.Mining, d.Visualization} {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}

// assembly gathers the component outputs; clustering, projection and mining are
// nil at basic fidelity.
type assembly struct {
	name          string
	fidelity      Fidelity
	table         *table.Table
	clustering    *Clustering
	projection    *Projection
	mining        *Mining
	visualization string
	diagnostics   Diagnostics
}

// assemble is pure aggregation over the table and component results.
func assemble(a assembly) *Report {
	t := a.table
	rep := &Report{
		Name:                a.name,
		Fidelity:            a.fidelity,
		CountryAnalyses:     entityAnalyses(t),
		PopulationClusters:  []ClusterSummary{},
		FoodSourceAnalysis:  foodSourceStats(t),
		ConsumptionPatterns: []Pattern{},
		VisualizationURL:    a.visualization,
		Diagnostics:         a.diagnostics,
	}
	rep.GlobalInsights = globalInsights(t)
	if a.clustering != nil {
		for _, c := range a.clustering.Clusters {
			rep.PopulationClusters = append(rep.PopulationClusters, ClusterSummary{
				ClusterID:            c.ID,
				RiskCategory:         c.Category.String(),
				Description:          c.Category.Description(),
				HealthImpact:         c.Category.HealthImpact(),
				PolicyRecommendation: c.Category.PolicyRecommendation(),
				AverageIntake:        round1(c.AverageIntake),
				Countries:            append([]string(nil), c.Labels...),
				SampleCount:          len(c.Members),
			})
		}
	}
	if a.mining != nil {
		for _, r := range a.mining.Rules {
			rep.ConsumptionPatterns = append(rep.ConsumptionPatterns, Pattern{
				HighConsumptionIn: displayNames(r.Antecedent),
				OftenLeadsToHigh:  displayNames(r.Consequent),
				Confidence:        percent(r.Confidence),
				Support:           percent(r.Support),
				Lift:              round2(r.Lift),
				Implication:       r.Implication(),
			})
		}
	}
	if a.projection != nil && len(a.projection.Points) > 0 {
		rep.Projection = &ProjectionRecord{
			Points:            a.projection.Points,
			ExplainedVariance: a.projection.ExplainedVariance,
		}
	}
	rep.ResearchSummary = ResearchSummary{TotalSamples: t.Len()}
	for _, e := range rep.CountryAnalyses {
		switch e.RiskLevel.Bucket() {
		case exposure.BucketHigh:
			rep.ResearchSummary.RiskDistribution.HighRisk++
		case exposure.BucketModerate:
			rep.ResearchSummary.RiskDistribution.ModerateRisk++
		default:
			rep.ResearchSummary.RiskDistribution.LowRisk++
		}
	}
	return rep
}

// entityAnalyses classifies each row and sorts descending by total intake,
// stable on input order.
func entityAnalyses(t *table.Table) []EntityAnalysis {
	type ranked struct {
		total float64
		e     EntityAnalysis
	}
	rows := make([]ranked, t.Len())
	for i, r := range t.Rows {
		total := t.Total(i)
		band, rec := exposure.ClassifyEntity(r.Values)
		breakdown := make([]FoodIntake, len(t.Columns))
		order := make([]int, len(t.Columns))
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool { return r.Values[order[a]] > r.Values[order[b]] })
		for k, j := range order {
			v := r.Values[j]
			fb := exposure.Classify(v)
			breakdown[k] = FoodIntake{
				FoodSource:  exposure.DisplayName(t.Columns[j]),
				IntakeLevel: round1(v),
				RiskLevel:   fb,
				Color:       fb.Color(),
			}
		}
		rows[i] = ranked{total: total, e: EntityAnalysis{
			Country:         t.Label(i),
			SampleID:        i + 1,
			TotalIntake:     round1(total),
			AverageIntake:   round1(total / float64(len(t.Columns))),
			RiskLevel:       band,
			Color:           band.Color(),
			Recommendations: rec,
			FoodBreakdown:   breakdown,
		}}
	}
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].total > rows[b].total })
	out := make([]EntityAnalysis, len(rows))
	for i, r := range rows {
		out[i] = r.e
	}
	return out
}

func globalInsights(t *table.Table) GlobalInsights {
	g := GlobalInsights{TotalCountries: t.Len()}
	if t.Len() == 0 {
		return g
	}
	totals := t.Totals()
	hi, lo := 0, 0
	var sum float64
	for i, v := range totals {
		sum += v
		if v > totals[hi] {
			hi = i
		}
		if v < totals[lo] {
			lo = i
		}
	}
	g.GlobalAvgIntake = round1(sum / float64(len(totals)))
	g.HighestRiskCountry = t.Label(hi)
	g.LowestRiskCountry = t.Label(lo)

	best, worst := 0, 0
	means := columnMeans(t)
	for j, m := range means {
		if m > means[worst] {
			worst = j
		}
		if m < means[best] {
			best = j
		}
	}
	g.MostProblematicFood = exposure.DisplayName(t.Columns[worst])
	g.SafestFood = exposure.DisplayName(t.Columns[best])
	return g
}

func columnMeans(t *table.Table) []float64 {
	means := make([]float64, len(t.Columns))
	if t.Len() == 0 {
		return means
	}
	for j := range t.Columns {
		var s float64
		for _, r := range t.Rows {
			s += r.Values[j]
		}
		means[j] = s / float64(t.Len())
	}
	return means
}

// foodSourceStats summarizes each column, sorted descending by mean.
func foodSourceStats(t *table.Table) []FoodSourceStats {
	means := columnMeans(t)
	order := make([]int, len(t.Columns))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return means[order[a]] > means[order[b]] })

	out := make([]FoodSourceStats, 0, len(order))
	for _, j := range order {
		col := t.Column(j)
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		var atRisk int
		var hi, lo float64
		if len(sorted) > 0 {
			p75 := quantile(sorted, 0.75)
			for _, v := range col {
				if v > p75 {
					atRisk++
				}
			}
			lo, hi = sorted[0], sorted[len(sorted)-1]
		}
		src, _ := exposure.Lookup(t.Columns[j])
		band := exposure.Classify(means[j])
		out = append(out, FoodSourceStats{
			ID:              src.ID,
			FoodSource:      src.Name,
			GlobalAverage:   round1(means[j]),
			HighestExposure: round1(hi),
			LowestExposure:  round1(lo),
			RiskLevel:       band,
			Color:           band.Color(),
			CountriesAtRisk: atRisk,
			MainConcern:     src.MainRisk,
			GlobalSolution:  src.GlobalSolution,
			CountryAction:   src.CountryAction,
		})
	}
	return out
}

func percent(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }
