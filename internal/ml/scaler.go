// Package ml holds the exported model artifacts and the inference math.
// Trained models are exported from the training pipeline as JSON (coefficient
// vectors plus preprocessing parameters) so that inference needs no Python
// runtime. Artifacts are immutable once loaded and safe for concurrent use.
package ml

import (
	"fmt"

	"raincast/internal/types"
)

// StandardScaler standardizes a feature vector using the per-column mean and
// scale fitted at training time: z[i] = (x[i] - mean[i]) / scale[i].
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Width returns the number of feature columns the scaler was fitted on.
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}

// Validate checks internal consistency: mean and scale must have the same
// non-zero length and no scale entry may be zero.
func (s *StandardScaler) Validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler has no columns")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean has %d columns but scale has %d", len(s.Mean), len(s.Scale))
	}
	for i, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("scaler scale[%d] is zero", i)
		}
	}
	return nil
}

// Transform standardizes the vector. The input length must match the fitted
// width; a mismatch means the feature layout and the artifact disagree and is
// reported as internal_feature_mismatch.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeInternalFeatureMismatch,
			fmt.Sprintf("feature vector has %d columns but scaler expects %d", len(x), len(s.Mean)),
			nil,
			map[string]any{"got": len(x), "want": len(s.Mean)},
		)
	}

	z := make([]float64, len(x))
	for i := range x {
		z[i] = (x[i] - s.Mean[i]) / s.Scale[i]
	}
	return z, nil
}
