package analysis

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minStd is the smallest standard deviation treated as non-zero variance.
const minStd = 1e-10

// Standardized is the z-scored feature matrix shared by clustering and projection.
type Standardized struct {
	Z     *mat.Dense
	Means []float64
	// Stds are sample standard deviations, 1 for constant columns.
	Stds []float64
}

// Standardize rescales each column of x to zero mean and unit sample variance.
// Columns without variance (and every column when x has a single row) keep
// std=1, so their values become x-mean.
func Standardize(x mat.Matrix) *Standardized {
	r, c := x.Dims()
	s := &Standardized{
		Z:     mat.NewDense(r, c, nil),
		Means: make([]float64, c),
		Stds:  make([]float64, c),
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		std := 1.0
		if r > 1 {
			if sd := stat.StdDev(col, nil); sd > minStd {
				std = sd
			}
		}
		s.Means[j] = mean
		s.Stds[j] = std
		for i, v := range col {
			s.Z.Set(i, j, (v-mean)/std)
		}
	}
	return s
}

// Inverse maps the standardized matrix back to the original scale.
func (s *Standardized) Inverse() *mat.Dense {
	r, c := s.Z.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return v*s.Stds[j] + s.Means[j]
	}, s.Z)
	return out
}

// Rows is the number of standardized rows.
func (s *Standardized) Rows() int {
	r, _ := s.Z.Dims()
	return r
}
