// Package forest implements the ranking model: a bootstrap aggregated ensemble
// of CART regression trees.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/spigell/internship-recommender/internal/apperr"
)

var ErrEmptyTrainingSet = errors.New("forest: empty training set")

const (
	DefaultTrees           = 200
	DefaultMinSamplesSplit = 2
	DefaultMinSamplesLeaf  = 1
	DefaultSeed            = 42
)

type Params struct {
	Trees int `json:"trees"`
	// MaxDepth of zero grows every tree until its leaves are pure.
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	Seed            uint64 `json:"seed"`
	// Workers bounds parallel tree construction. Zero means GOMAXPROCS.
	Workers int `json:"-"`
}

func DefaultParams() Params {
	return Params{
		Trees:           DefaultTrees,
		MinSamplesSplit: DefaultMinSamplesSplit,
		MinSamplesLeaf:  DefaultMinSamplesLeaf,
		Seed:            DefaultSeed,
	}
}

func (p Params) validate() error {
	switch {
	case p.Trees <= 0:
		return apperr.Newf(apperr.ErrInvalidInput, "trees must be positive, got %d", p.Trees)
	case p.MaxDepth < 0:
		return apperr.Newf(apperr.ErrInvalidInput, "max depth must not be negative, got %d", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return apperr.Newf(apperr.ErrInvalidInput, "min samples split must be at least 2, got %d", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return apperr.Newf(apperr.ErrInvalidInput, "min samples leaf must be at least 1, got %d", p.MinSamplesLeaf)
	case p.Workers < 0:
		return apperr.Newf(apperr.ErrInvalidInput, "workers must not be negative, got %d", p.Workers)
	}
	return nil
}

// Forest is an immutable trained ensemble. It is safe for concurrent Predict calls.
type Forest struct {
	Features int    `json:"features"`
	Params   Params `json:"params"`
	Trees    []Tree `json:"trees"`
}

// Fit trains a forest on the feature table x and targets y.
func Fit(x [][]float64, y []float64, params Params) (*Forest, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "%d rows but %d targets", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return nil, apperr.New(apperr.ErrInvalidInput, "rows have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return nil, apperr.Newf(apperr.ErrInvalidInput, "row %d has %d features, want %d", i, len(row), width)
		}
		if !finite(row...) || !finite(y[i]) {
			return nil, apperr.Newf(apperr.ErrInvalidInput, "row %d holds a non finite value", i)
		}
	}

	workers := params.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, params.Trees)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			// Each tree owns its stream so the result does not depend on scheduling.
			rng := rand.New(rand.NewPCG(params.Seed, uint64(i)))
			b := &builder{x: x, y: y, width: width, params: params}
			trees[i] = b.build(bootstrap(rng, len(x)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	return &Forest{Features: width, Params: params, Trees: trees}, nil
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// Predict returns the mean tree output for every row, in row order.
func (f *Forest) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != f.Features {
			return nil, apperr.Newf(apperr.ErrInvalidInput, "row %d has %d features, want %d", i, len(row), f.Features)
		}
		var sum float64
		for t := range f.Trees {
			sum += f.Trees[t].predict(row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// Len returns the number of trees.
func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Trees)
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
