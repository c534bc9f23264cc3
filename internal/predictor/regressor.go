package predictor

// Algorithm names stored in artifacts.
const (
	AlgorithmForest = "random_forest"
	AlgorithmMLP    = "mlp"
)

// Regressor maps one raw feature row to a point estimate. Implementations
// must be safe for concurrent Predict calls once fitted.
type Regressor interface {
	Predict(x []float64) float64
	Algorithm() string
}
