package predictor

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// MLP is a feed-forward network over z-scored inputs. Callers pass raw
// feature rows; scaling happens inside Predict.
type MLP struct {
	Network *Network  `json:"network"`
	XMean   []float64 `json:"x_mean"`
	XStd    []float64 `json:"x_std"`
	YMean   float64   `json:"y_mean"`
	YStd    float64   `json:"y_std"`
}

func (m *MLP) Algorithm() string { return AlgorithmMLP }

func (m *MLP) Predict(x []float64) float64 {
	return m.Network.Infer(m.scale(x))[0]*m.YStd + m.YMean
}

func (m *MLP) scale(x []float64) []float64 {
	z := make([]float64, len(x))
	for i, v := range x {
		z[i] = (v - m.XMean[i]) / m.XStd[i]
	}
	return z
}

// FitMLP trains a network with layers [len(x), cfg.Hidden..., 1] and returns
// it with the per-epoch training loss in scaled units.
func FitMLP(X [][]float64, y []float64, cfg MLPConfig) (*MLP, []float64, error) {
	if len(X) == 0 {
		return nil, nil, errors.New("mlp: no training rows")
	}
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("mlp: %d rows but %d labels", len(X), len(y))
	}
	if cfg.BatchSize < 1 || cfg.Epochs < 1 {
		return nil, nil, fmt.Errorf("mlp: batch size %d and epochs %d must be positive", cfg.BatchSize, cfg.Epochs)
	}

	nf := len(X[0])
	m := &MLP{XMean: make([]float64, nf), XStd: make([]float64, nf)}
	col := make([]float64, len(X))
	for f := 0; f < nf; f++ {
		for i := range X {
			col[i] = X[i][f]
		}
		m.XMean[f], m.XStd[f] = zscoreParams(col)
	}
	m.YMean, m.YStd = zscoreParams(y)

	trainX := make([][]float64, len(X))
	trainY := make([][]float64, len(X))
	for i := range X {
		trainX[i] = m.scale(X[i])
		trainY[i] = []float64{(y[i] - m.YMean) / m.YStd}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	sizes := append(append([]int{nf}, cfg.Hidden...), 1)
	m.Network = NewNetwork(sizes, rng)
	losses := m.Network.Train(trainX, trainY, nil, nil, cfg, rng)
	return m, losses, nil
}

// zscoreParams returns mean and population std, with std forced to 1 for
// constant columns.
func zscoreParams(xs []float64) (mean, std float64) {
	mean, std = stat.PopMeanStdDev(xs, nil)
	if std < 1e-10 {
		std = 1
	}
	return mean, std
}

// validate checks that a decoded MLP can score nf-wide rows: scaling vectors
// of width nf, positive scales and a layer chain from nf inputs to one output.
func (m *MLP) validate(nf int) error {
	if m.Network == nil || len(m.Network.Layers) == 0 {
		return errors.New("mlp: no network")
	}
	if len(m.XMean) != nf || len(m.XStd) != nf {
		return fmt.Errorf("mlp: scaling has %d means and %d stds, need %d", len(m.XMean), len(m.XStd), nf)
	}
	for i, sd := range m.XStd {
		if !(sd > 0) || math.IsInf(sd, 0) {
			return fmt.Errorf("mlp: input %d has scale %v", i, sd)
		}
	}
	if !(m.YStd > 0) || math.IsInf(m.YStd, 0) {
		return fmt.Errorf("mlp: target scale %v", m.YStd)
	}
	in := nf
	for i, l := range m.Network.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Biases) {
			return fmt.Errorf("mlp: layer %d has %d weight rows and %d biases", i, len(l.Weights), len(l.Biases))
		}
		for j, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("mlp: layer %d row %d has %d inputs, need %d", i, j, len(row), in)
			}
		}
		in = len(l.Weights)
	}
	if in != 1 {
		return fmt.Errorf("mlp: network has %d outputs, need 1", in)
	}
	return nil
}
