package ml

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Model is the common surface of all loaded models. Concrete capabilities
// (probability vs value output) are expressed by ProbabilityScorer and
// ValueScorer; callers assert the capability they need.
type Model interface {
	// Kind returns the model kind identifier from the artifact.
	Kind() string
	// Width returns the number of input columns the model was trained on.
	Width() int
}

// ProbabilityScorer is a classifier that outputs a probability in [0, 1].
type ProbabilityScorer interface {
	Model
	ProbabilityOf(x []float64) (float64, error)
}

// ValueScorer is a regressor that outputs a continuous value.
type ValueScorer interface {
	Model
	ValueOf(x []float64) (float64, error)
}

// Model kind identifiers as written by the export pipeline.
const (
	KindLogisticRegression = "logistic_regression"
	KindLinearRegression   = "linear_regression"
)

// modelFile is the on-disk JSON shape of an exported linear model.
type modelFile struct {
	Kind         string    `json:"kind"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// modelBuilders maps a kind identifier to its constructor. Adding a new
// exported model kind means registering it here.
var modelBuilders = map[string]func(modelFile) (Model, error){
	KindLogisticRegression: func(f modelFile) (Model, error) {
		return &LogisticRegression{coefficients: f.Coefficients, intercept: f.Intercept}, nil
	},
	KindLinearRegression: func(f modelFile) (Model, error) {
		return &LinearRegression{coefficients: f.Coefficients, intercept: f.Intercept}, nil
	},
}

// UnmarshalModel decodes an exported model artifact and constructs the
// concrete model for its kind.
func UnmarshalModel(data []byte) (Model, error) {
	var file modelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if len(file.Coefficients) == 0 {
		return nil, fmt.Errorf("model artifact has no coefficients")
	}

	build, ok := modelBuilders[file.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported model kind %q", file.Kind)
	}
	return build(file)
}

// LogisticRegression is a binary classifier scoring
// sigmoid(w.x + b) as the positive-class probability.
type LogisticRegression struct {
	coefficients []float64
	intercept    float64
}

var _ ProbabilityScorer = (*LogisticRegression)(nil)

func (m *LogisticRegression) Kind() string { return KindLogisticRegression }

func (m *LogisticRegression) Width() int { return len(m.coefficients) }

// ProbabilityOf returns the positive-class probability for the standardized
// feature vector.
func (m *LogisticRegression) ProbabilityOf(x []float64) (float64, error) {
	if err := checkWidth(len(x), len(m.coefficients)); err != nil {
		return 0, err
	}
	logit := floats.Dot(m.coefficients, x) + m.intercept
	return 1 / (1 + math.Exp(-logit)), nil
}

// LinearRegression is a regressor scoring w.x + b.
type LinearRegression struct {
	coefficients []float64
	intercept    float64
}

var _ ValueScorer = (*LinearRegression)(nil)

func (m *LinearRegression) Kind() string { return KindLinearRegression }

func (m *LinearRegression) Width() int { return len(m.coefficients) }

// ValueOf returns the predicted value for the standardized feature vector.
// The raw output may be negative; clamping is the caller's policy.
func (m *LinearRegression) ValueOf(x []float64) (float64, error) {
	if err := checkWidth(len(x), len(m.coefficients)); err != nil {
		return 0, err
	}
	return floats.Dot(m.coefficients, x) + m.intercept, nil
}

func checkWidth(got, want int) error {
	if got != want {
		return fmt.Errorf("input has %d columns but model expects %d", got, want)
	}
	return nil
}
