package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"raincast/internal/types"
)

// Artifact file names inside an artifact directory. The export pipeline
// writes one directory per prediction task.
const (
	scalerFileName    = "scaler.json"
	modelFileName     = "model.json"
	thresholdFileName = "threshold.txt"
)

// ArtifactSet is one prediction task's loaded artifacts: the fitted scaler,
// the model, and (for classifiers) the decision threshold. Once constructed
// it is immutable and safe for concurrent use.
type ArtifactSet struct {
	Scaler    *StandardScaler
	Model     Model
	Threshold float64
}

// LoadArtifactSet reads and validates the artifact directory for one task.
//
// expectWidth is the column count of the task's feature layout; the scaler
// and model must both agree with it. When withThreshold is true a
// threshold.txt file holding a decimal in [0, 1] is also required.
//
// All failures are reported as internal_model_load: a broken artifact is a
// deployment fault, not a client error.
func LoadArtifactSet(dir string, expectWidth int, withThreshold bool) (*ArtifactSet, error) {
	scaler, err := loadScaler(filepath.Join(dir, scalerFileName))
	if err != nil {
		return nil, loadError(dir, err)
	}

	model, err := loadModel(filepath.Join(dir, modelFileName))
	if err != nil {
		return nil, loadError(dir, err)
	}

	if scaler.Width() != expectWidth {
		return nil, loadError(dir, fmt.Errorf(
			"scaler has %d columns but the feature layout produces %d", scaler.Width(), expectWidth))
	}
	if model.Width() != expectWidth {
		return nil, loadError(dir, fmt.Errorf(
			"model has %d columns but the feature layout produces %d", model.Width(), expectWidth))
	}

	set := &ArtifactSet{Scaler: scaler, Model: model}

	if withThreshold {
		threshold, err := loadThreshold(filepath.Join(dir, thresholdFileName))
		if err != nil {
			return nil, loadError(dir, err)
		}
		set.Threshold = threshold
	}

	return set, nil
}

func loadScaler(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler artifact: %w", err)
	}

	var scaler StandardScaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, fmt.Errorf("decode scaler artifact: %w", err)
	}
	if err := scaler.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scaler artifact: %w", err)
	}
	return &scaler, nil
}

func loadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return UnmarshalModel(data)
}

func loadThreshold(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read threshold artifact: %w", err)
	}

	threshold, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse threshold artifact: %w", err)
	}
	if threshold < 0 || threshold > 1 {
		return 0, fmt.Errorf("threshold must be between 0 and 1, got %v", threshold)
	}
	return threshold, nil
}

func loadError(dir string, err error) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeInternalModelLoad,
		"model artifacts are missing or invalid",
		err,
		map[string]any{"dir": dir},
	)
}
