package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Point is one row projected onto the first two principal components.
type Point struct {
	PC1     float64 `json:"pc1"`
	PC2     float64 `json:"pc2"`
	Cluster int     `json:"cluster_id"`
	Label   string  `json:"label"`
}

// Projection is the Projector result.
type Projection struct {
	Points []Point
	// ExplainedVariance is the share of total variance on PC1 and PC2.
	ExplainedVariance [2]float64
	Outcome           Outcome
}

// Project reduces the standardized matrix to two principal components. Fewer
// than two rows is degenerate and yields no points; a missing second component
// (a single feature column) projects to 0.
func Project(std *Standardized, assign []int, labels []string) (res Projection) {
	n := std.Rows()
	if n < 2 {
		return Projection{Outcome: degenerate("projection needs at least 2 rows, got %d", n)}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Projection{Outcome: failed("projection fault: %v", r)}
		}
	}()

	var pc stat.PC
	if ok := pc.PrincipalComponents(std.Z, nil); !ok {
		return Projection{Outcome: failed("principal component decomposition did not converge")}
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	d, nc := vecs.Dims()
	keep := 2
	if nc < keep {
		keep = nc
	}
	var proj mat.Dense
	proj.Mul(std.Z, vecs.Slice(0, d, 0, keep))

	res = Projection{Points: make([]Point, n), Outcome: okOutcome()}
	for i := 0; i < n; i++ {
		p := Point{PC1: proj.At(i, 0), Label: labels[i]}
		if keep > 1 {
			p.PC2 = proj.At(i, 1)
		}
		if i < len(assign) {
			p.Cluster = assign[i]
		}
		res.Points[i] = p
	}
	if total := floats.Sum(vars); total > 0 {
		for c := 0; c < keep; c++ {
			res.ExplainedVariance[c] = vars[c] / total
		}
	}
	if keep < 2 {
		res.Outcome = degenerate("only %d principal component available", keep)
	}
	return res
}
