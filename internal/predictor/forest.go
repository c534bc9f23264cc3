package predictor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestConfig controls random forest fitting.
type ForestConfig struct {
	Trees          int
	MaxDepth       int // 0 = grow until leaves are pure or minimal
	MinSamplesLeaf int
	MaxFeatures    int // features tried per split, 0 = all
	Seed           uint64
	Workers        int // trees fitted concurrently, 0 = GOMAXPROCS
}

// DefaultForestConfig returns 300 fully grown trees on all features.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:          300,
		MinSamplesLeaf: 1,
		Seed:           42,
	}
}

// Forest averages bootstrap-trained regression trees.
type Forest struct {
	Trees []*Tree `json:"trees"`
}

func (f *Forest) Algorithm() string { return AlgorithmForest }

// Predict returns the mean of all tree predictions.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

func (f *Forest) validate(nf int) error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i, t := range f.Trees {
		if t == nil {
			return fmt.Errorf("tree %d is empty", i)
		}
		if err := t.validate(nf); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// FitForest fits cfg.Trees trees in parallel. Tree t draws its bootstrap
// sample and feature subsets from its own PCG stream (Seed, t+1), so the
// result does not depend on the number of workers or their scheduling.
func FitForest(ctx context.Context, X [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if len(X) == 0 {
		return nil, errors.New("forest: no training rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("forest: %d rows but %d labels", len(X), len(y))
	}
	if cfg.Trees < 1 {
		return nil, fmt.Errorf("forest: need at least one tree, got %d", cfg.Trees)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	params := treeParams{
		maxDepth:       cfg.MaxDepth,
		minSamplesLeaf: cfg.MinSamplesLeaf,
		maxFeatures:    cfg.MaxFeatures,
	}

	trees := make([]*Tree, cfg.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(t)+1))
			idx := make([]int, len(X))
			for i := range idx {
				idx[i] = rng.IntN(len(X))
			}
			trees[t] = fitTree(X, y, idx, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest: %w", err)
	}
	return &Forest{Trees: trees}, nil
}
