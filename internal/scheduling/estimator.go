package scheduling

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Estimator is a learned model that proposes the base wait for a slot. It must
// return exactly one finite positive value to be used.
type Estimator interface {
	Estimate(fv FeatureVector) ([]float64, error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(fv FeatureVector) ([]float64, error)

func (f EstimatorFunc) Estimate(fv FeatureVector) ([]float64, error) { return f(fv) }

// LinearEstimator scores bias + sum(weights[i] * features[i]).
type LinearEstimator struct {
	Bias    float64   `yaml:"bias"`
	Weights []float64 `yaml:"weights"`
}

func NewLinearEstimator(bias float64, weights []float64) (*LinearEstimator, error) {
	e := &LinearEstimator{Bias: bias, Weights: append([]float64(nil), weights...)}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadLinearEstimator reads bias and weights from a YAML file.
func LoadLinearEstimator(path string) (*LinearEstimator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scheduling: read estimator: %w", err)
	}
	var e LinearEstimator
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("scheduling: parse estimator: %w", err)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (e *LinearEstimator) validate() error {
	if len(e.Weights) != NumFeatures {
		return fmt.Errorf("scheduling: estimator expects %d weights, got %d", NumFeatures, len(e.Weights))
	}
	if math.IsNaN(e.Bias) || math.IsInf(e.Bias, 0) {
		return errors.New("scheduling: estimator bias must be finite")
	}
	for i, w := range e.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("scheduling: estimator weight %s must be finite", FeatureNames[i])
		}
	}
	return nil
}

func (e *LinearEstimator) Estimate(fv FeatureVector) ([]float64, error) {
	if len(e.Weights) != NumFeatures {
		return nil, fmt.Errorf("scheduling: estimator shape mismatch: %d weights", len(e.Weights))
	}
	sum := e.Bias
	for i, w := range e.Weights {
		sum += w * fv.Values[i]
	}
	return []float64{sum}, nil
}
