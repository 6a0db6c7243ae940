package analysis

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// MaxClusters caps k; the engine uses min(MaxClusters, rows).
	MaxClusters = 3

	kmeansSeed     = 42
	kmeansRestarts = 10
	kmeansMaxIter  = 300
)

// Bounds on a cluster's mean aggregate intake separating the population categories.
const (
	ModeratePopulationBound = 400.0
	HighPopulationBound     = 800.0
)

// RiskCategory is the population-level label derived for a cluster.
type RiskCategory int

const (
	LowRiskPopulation RiskCategory = iota
	ModerateRiskPopulation
	HighRiskPopulation
)

// CategorizeCluster maps a cluster's mean raw aggregate intake to its category.
func CategorizeCluster(meanTotal float64) RiskCategory {
	switch {
	case meanTotal < ModeratePopulationBound:
		return LowRiskPopulation
	case meanTotal < HighPopulationBound:
		return ModerateRiskPopulation
	default:
		return HighRiskPopulation
	}
}

func (c RiskCategory) String() string {
	switch c {
	case LowRiskPopulation:
		return "Low Risk Population"
	case ModerateRiskPopulation:
		return "Moderate Risk Population"
	case HighRiskPopulation:
		return "High Risk Population"
	}
	return fmt.Sprintf("RiskCategory(%d)", int(c))
}

func (c RiskCategory) Description() string {
	switch c {
	case ModerateRiskPopulation:
		return "Countries/regions with moderate exposure levels requiring attention."
	case HighRiskPopulation:
		return "Countries/regions with concerning exposure levels needing urgent action."
	}
	return "Countries/regions with relatively low microplastic exposure across food sources."
}

func (c RiskCategory) HealthImpact() string {
	switch c {
	case ModerateRiskPopulation:
		return "Potential long-term health risks, preventive measures recommended."
	case HighRiskPopulation:
		return "Significant health risks, immediate intervention required."
	}
	return "Minimal immediate health concerns, maintain current practices."
}

func (c RiskCategory) PolicyRecommendation() string {
	switch c {
	case ModerateRiskPopulation:
		return "Implement targeted interventions and strengthen regulations."
	case HighRiskPopulation:
		return "Emergency response protocols and comprehensive policy reform."
	}
	return "Continue monitoring and share best practices globally."
}

// Cluster is one non-empty group of rows.
type Cluster struct {
	ID            int
	Category      RiskCategory
	AverageIntake float64 // mean raw aggregate intake of the members
	Members       []int   // row indices in input order
	Labels        []string
}

// Clustering is the Cluster Engine result. Assignments[i] is the cluster id of row i.
type Clustering struct {
	K           int
	Assignments []int
	Clusters    []Cluster
	Inertia     float64
	Outcome     Outcome
}

// kmeans is the partitioning step of ClusterRows; tests replace it to inject faults.
var kmeans = KMeans

// ClusterRows partitions the standardized rows into min(MaxClusters, n) groups
// and characterizes each from the raw totals. A fault inside the engine
// degrades to a single cluster holding every row.
func ClusterRows(std *Standardized, totals []float64, labels []string) (res Clustering) {
	n := std.Rows()
	k := MaxClusters
	if n < k {
		k = n
	}
	defer func() {
		if r := recover(); r != nil {
			assign := make([]int, n)
			res = Clustering{
				K:           1,
				Assignments: assign,
				Clusters:    characterize(assign, totals, labels),
				Outcome:     failed("clustering fault: %v", r),
			}
		}
	}()
	assign, inertia := kmeans(std.Z, k, kmeansSeed)
	res = Clustering{
		K:           k,
		Assignments: assign,
		Clusters:    characterize(assign, totals, labels),
		Inertia:     inertia,
		Outcome:     okOutcome(),
	}
	if n < MaxClusters {
		res.Outcome = degenerate("only %d rows, k reduced to %d", n, k)
	}
	return res
}

func characterize(assign []int, totals []float64, labels []string) []Cluster {
	var clusters []Cluster
	for i, id := range assign {
		for id >= len(clusters) {
			clusters = append(clusters, Cluster{ID: len(clusters)})
		}
		c := &clusters[id]
		c.Members = append(c.Members, i)
		c.Labels = append(c.Labels, labels[i])
		c.AverageIntake += totals[i]
	}
	for i := range clusters {
		c := &clusters[i]
		c.AverageIntake /= float64(len(c.Members))
		c.Category = CategorizeCluster(c.AverageIntake)
	}
	return clusters
}

// KMeans runs Lloyd's algorithm with k-means++ seeding, keeping the lowest
// inertia of kmeansRestarts runs. Ties in assignment go to the lower centroid
// index. Returned ids are renumbered in order of first appearance, so only
// non-empty clusters carry ids and identical inputs yield identical ids.
func KMeans(x *mat.Dense, k int, seed uint64) ([]int, float64) {
	n, _ := x.Dims()
	if n == 0 || k <= 0 {
		return nil, 0
	}
	if k > n {
		k = n
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	var best []int
	bestInertia := math.Inf(1)
	for run := 0; run < kmeansRestarts; run++ {
		assign, inertia := lloyd(rows, seedCentroids(rows, k, rng))
		if inertia < bestInertia || best == nil {
			best, bestInertia = assign, inertia
		}
	}
	return relabel(best), bestInertia
}

// seedCentroids implements k-means++: the first centroid is uniform, later ones
// are drawn with probability proportional to squared distance from the nearest
// chosen centroid.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(rows[rng.IntN(n)]))
	d2 := make([]float64, n)
	for len(centroids) < k {
		for i, r := range rows {
			d2[i] = nearestSq(r, centroids)
		}
		sum := floats.Sum(d2)
		next := 0
		if sum > 0 {
			target := rng.Float64() * sum
			acc := 0.0
			for i, d := range d2 {
				acc += d
				if acc >= target && d > 0 {
					next = i
					break
				}
			}
		} else {
			next = rng.IntN(n)
		}
		centroids = append(centroids, clone(rows[next]))
	}
	return centroids
}

func lloyd(rows [][]float64, centroids [][]float64) ([]int, float64) {
	n, k := len(rows), len(centroids)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	counts := make([]int, k)
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, r := range rows {
			c := nearest(r, centroids)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		recompute(rows, assign, centroids, counts)
		for c := range centroids {
			if counts[c] > 0 {
				continue
			}
			// Re-seed an empty cluster from the point farthest from its centroid,
			// taken only from clusters that keep at least one member.
			far, farD := -1, 0.0
			for i, r := range rows {
				if counts[assign[i]] < 2 {
					continue
				}
				if d := sqDist(r, centroids[assign[i]]); d > farD {
					far, farD = i, d
				}
			}
			if far < 0 {
				continue
			}
			counts[assign[far]]--
			assign[far] = c
			counts[c] = 1
			copy(centroids[c], rows[far])
		}
	}
	recompute(rows, assign, centroids, counts)
	var inertia float64
	for i, r := range rows {
		inertia += sqDist(r, centroids[assign[i]])
	}
	return assign, inertia
}

// recompute sets every non-empty centroid to the mean of its members.
func recompute(rows [][]float64, assign []int, centroids [][]float64, counts []int) {
	for c := range centroids {
		counts[c] = 0
	}
	for _, a := range assign {
		counts[a]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] = 0
		}
	}
	for i, r := range rows {
		if counts[assign[i]] > 0 {
			floats.Add(centroids[assign[i]], r)
		}
	}
	for c := range centroids {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), centroids[c])
		}
	}
}

func relabel(assign []int) []int {
	ids := map[int]int{}
	out := make([]int, len(assign))
	for i, a := range assign {
		id, ok := ids[a]
		if !ok {
			id = len(ids)
			ids[a] = id
		}
		out[i] = id
	}
	return out
}

func nearest(r []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centroids {
		if d := sqDist(r, ctr); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func nearestSq(r []float64, centroids [][]float64) float64 {
	return sqDist(r, centroids[nearest(r, centroids)])
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
