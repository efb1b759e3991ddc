package scorer

import (
	"fmt"
	"math"
	"os"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/diewo77/quote-optimizer/internal/features"
	"gopkg.in/yaml.v3"
)

// Range is the training range of a feature, used for min-max scaling.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// scale mirrors a fitted min-max scaler: a zero-width range only shifts.
func (r Range) scale(x float64) float64 {
	span := r.Max - r.Min
	if span == 0 {
		return x - r.Min
	}
	return (x - r.Min) / span
}

// Logistic is a logistic regression exported with its feature scaler.
//
//	version: 2025-03-01
//	features: [unit_price, delivery_days, ...]
//	intercept: -0.4
//	coefficients: [-1.2, -0.8, ...]
//	scaler:
//	  unit_price: {min: 0.5, max: 40}
type Logistic struct {
	ModelVersion string           `yaml:"version"`
	Features     []string         `yaml:"features"`
	Intercept    float64          `yaml:"intercept"`
	Coefficients []float64        `yaml:"coefficients"`
	Scaler       map[string]Range `yaml:"scaler"`

	weights [features.Count]float64
	ranges  [features.Count]Range
}

// LoadLogistic reads and checks a model artifact.
func LoadLogistic(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	return ParseLogistic(data)
}

func ParseLogistic(data []byte) (*Logistic, error) {
	var m Logistic
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.resolve(); err != nil {
		return nil, err
	}
	return &m, nil
}

// resolve maps the artifact's feature order onto the vector layout. Every
// contract feature must be present and every artifact feature derivable.
func (m *Logistic) resolve() error {
	if len(m.Coefficients) != len(m.Features) {
		return fmt.Errorf("model has %d coefficients for %d features", len(m.Coefficients), len(m.Features))
	}

	seen := make(map[int]bool, len(m.Features))
	for i, name := range m.Features {
		pos := features.Index(name)
		if pos < 0 {
			return &apperrors.FeatureContractError{Feature: name, Reason: "model expects a feature that cannot be derived"}
		}
		if seen[pos] {
			return fmt.Errorf("model lists feature %s twice", name)
		}
		seen[pos] = true
		m.weights[pos] = m.Coefficients[i]

		if features.IsBinary(pos) {
			continue
		}
		r, ok := m.Scaler[name]
		if !ok {
			return fmt.Errorf("model has no scaler range for %s", name)
		}
		m.ranges[pos] = r
	}

	for pos, name := range features.Names {
		if !seen[pos] {
			return &apperrors.FeatureContractError{Feature: name, Reason: "absent from model artifact"}
		}
	}
	return nil
}

func (m *Logistic) Version() string { return m.ModelVersion }

// Score returns sigmoid(intercept + w·x) for every vector, non-binary
// features scaled with their training range first.
func (m *Logistic) Score(vectors []features.Vector) ([]float64, error) {
	out := make([]float64, len(vectors))
	for i, v := range vectors {
		z := m.Intercept
		for pos := 0; pos < features.Count; pos++ {
			x := v[pos]
			if !features.IsBinary(pos) {
				x = m.ranges[pos].scale(x)
			}
			z += m.weights[pos] * x
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
