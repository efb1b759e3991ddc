// Package scorer applies a trained win-probability model to feature vectors.
package scorer

import "github.com/diewo77/quote-optimizer/internal/features"

// Scorer maps feature vectors to win probabilities in [0,1], one per vector.
type Scorer interface {
	Score(vectors []features.Vector) ([]float64, error)
}

// Versioned is implemented by scorers that can name the model they apply.
type Versioned interface {
	Version() string
}

// Func adapts a plain function to the Scorer interface.
type Func func(vectors []features.Vector) ([]float64, error)

func (f Func) Score(vectors []features.Vector) ([]float64, error) {
	return f(vectors)
}

// VersionOf returns the model version of s, or "" when s does not expose one.
func VersionOf(s Scorer) string {
	if v, ok := s.(Versioned); ok {
		return v.Version()
	}
	return ""
}
