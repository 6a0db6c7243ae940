// Package analysis implements the intake analysis pipeline: standardization,
// clustering, projection, pattern mining and report assembly.
package analysis

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/microlens-cli/internal/logging"
	"github.com/KaramelBytes/microlens-cli/internal/table"
)

// Fidelity selects how much of the pipeline runs.
type Fidelity string

const (
	// FidelityFull runs every component.
	FidelityFull Fidelity = "full"
	// FidelityBasic skips clustering, projection, mining and rendering.
	FidelityBasic Fidelity = "basic"
)

// ParseFidelity accepts "full" or "basic"; empty means full.
func ParseFidelity(s string) (Fidelity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return FidelityFull, nil
	case "basic":
		return FidelityBasic, nil
	}
	return "", fmt.Errorf("unknown fidelity %q (expected full or basic)", s)
}

// Renderer draws projected points into an encoded image reference.
type Renderer interface {
	Render(points []Point, clusters []Cluster) (string, error)
	Placeholder() string
}

// Options configures one Analyze call.
type Options struct {
	Name     string
	Fidelity Fidelity
	Renderer Renderer
	Logger   *logging.Logger
}

// AnalysisError reports a fault that escaped every component fallback.
type AnalysisError struct {
	Err   error
	Stack string
}

func (e *AnalysisError) Error() string { return fmt.Sprintf("analysis failed: %v", e.Err) }
func (e *AnalysisError) Unwrap() error { return e.Err }

// Analyze runs the pipeline over a validated table. Input problems return a
// *table.InputError before any component runs; degenerate or faulty components
// are recorded in Report.Diagnostics and never abort the report.
func Analyze(ctx context.Context, t *table.Table, opt Options) (rep *Report, err error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	log := opt.Logger
	if log == nil {
		log = logging.Nop()
	}
	fidelity := opt.Fidelity
	if fidelity == "" {
		fidelity = FidelityFull
	}
	log = log.WithFields(map[string]interface{}{"rows": t.Len(), "columns": len(t.Columns), "fidelity": string(fidelity)})
	log.Debug("analysis started")

	defer func() {
		if r := recover(); r != nil {
			rep = nil
			err = &AnalysisError{Err: fmt.Errorf("%v", r), Stack: string(debug.Stack())}
			log.WithError(err).Error("analysis aborted")
		}
	}()

	a := assembly{name: opt.Name, fidelity: fidelity, table: t}
	if fidelity == FidelityBasic {
		reason := "basic fidelity"
		a.diagnostics = Diagnostics{
			Clustering:    skipped(reason),
			Projection:    skipped(reason),
			Mining:        skipped(reason),
			Visualization: skipped(reason),
		}
		rep = assemble(a)
		log.Debug("analysis finished")
		return rep, nil
	}

	labels := t.Labels()
	std := Standardize(mat.NewDense(t.Len(), len(t.Columns), t.Values()))

	clustering := ClusterRows(std, t.Totals(), labels)
	a.clustering = &clustering
	a.diagnostics.Clustering = clustering.Outcome
	logOutcome(log, "clustering", clustering.Outcome)

	projection := Project(std, clustering.Assignments, labels)
	a.projection = &projection
	a.diagnostics.Projection = projection.Outcome
	logOutcome(log, "projection", projection.Outcome)

	mining := MineRules(ctx, t)
	a.mining = &mining
	a.diagnostics.Mining = mining.Outcome
	logOutcome(log, "mining", mining.Outcome)

	a.visualization, a.diagnostics.Visualization = visualize(opt.Renderer, projection, clustering.Clusters)
	logOutcome(log, "visualization", a.diagnostics.Visualization)

	rep = assemble(a)
	log.WithField("clusters", len(rep.PopulationClusters)).
		WithField("patterns", len(rep.ConsumptionPatterns)).
		Debug("analysis finished")
	return rep, nil
}

// visualize renders the projection, falling back to the placeholder image when
// there is nothing to plot or the renderer fails.
func visualize(r Renderer, p Projection, clusters []Cluster) (url string, out Outcome) {
	if r == nil {
		return "", skipped("no renderer configured")
	}
	if len(p.Points) == 0 {
		return r.Placeholder(), degenerate("nothing to plot: %s", p.Outcome.Reason)
	}
	defer func() {
		if rec := recover(); rec != nil {
			url, out = r.Placeholder(), failed("render fault: %v", rec)
		}
	}()
	url, err := r.Render(p.Points, clusters)
	if err != nil {
		return r.Placeholder(), failed("render: %v", err)
	}
	return url, okOutcome()
}

func logOutcome(log *logging.Logger, component string, o Outcome) {
	l := log.WithField("component", component).WithField("status", string(o.Status))
	switch o.Status {
	case StatusOK, StatusSkipped:
		l.Debug("component finished")
	default:
		l.WithField("reason", o.Reason).Warn("component degraded")
	}
}
