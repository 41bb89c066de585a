// Package features turns a daily weather record into the fixed-order numeric
// vectors the trained models expect. Each prediction task has its own Spec;
// the derivation order inside a Spec is part of the model contract and must
// match the column order used at training time.
package features

import (
	"fmt"
	"math"

	"raincast/internal/types"
)

// DerivationKind selects how a single feature value is computed from the
// source record.
type DerivationKind string

const (
	// KindDirect copies the source field value unchanged.
	KindDirect DerivationKind = "direct"
	// KindWindSin is the sine of the wind direction angle. Circular encoding
	// keeps 0 and 360 degrees adjacent.
	KindWindSin DerivationKind = "wind_direction_sin"
	// KindWindCos is the cosine of the wind direction angle.
	KindWindCos DerivationKind = "wind_direction_cos"
	// KindRainCodeIndicator is 1 when the day's weather code signals moderate
	// or heavy rain (WMO codes 63 and 65), else 0.
	KindRainCodeIndicator DerivationKind = "is_weather_code_63_or_65"
	// KindSeasonSin is the sine of the cyclical month angle, derived from the
	// record's date rather than any weather variable.
	KindSeasonSin DerivationKind = "season_sin"
	// KindSeasonCos is the cosine of the cyclical month angle.
	KindSeasonCos DerivationKind = "season_cos"
)

// Derivation describes one feature column: its trained name, how it is
// computed, and the source field it reads (unused for seasonal kinds).
type Derivation struct {
	Name  string
	Kind  DerivationKind
	Field types.Field
}

// Spec is an ordered feature layout for one prediction task. Version tracks
// the training run the layout belongs to; artifacts exported from a different
// run may reorder or drop columns.
type Spec struct {
	Name        string
	Version     string
	Derivations []Derivation
}

// Width returns the number of feature columns the Spec produces. Model and
// scaler artifacts are checked against this at load time.
func (s *Spec) Width() int {
	return len(s.Derivations)
}

// Build computes the feature vector for the record, in Spec order. A missing
// source field or an unknown derivation kind yields an AppError with code
// internal_feature_mismatch; partial vectors are never returned.
func (s *Spec) Build(record *types.WeatherRecord) ([]float64, error) {
	vector := make([]float64, len(s.Derivations))
	for i, d := range s.Derivations {
		value, err := s.derive(d, record)
		if err != nil {
			return nil, err
		}
		vector[i] = value
	}
	return vector, nil
}

func (s *Spec) derive(d Derivation, record *types.WeatherRecord) (float64, error) {
	switch d.Kind {
	case KindDirect:
		v, ok := record.Value(d.Field)
		if !ok {
			return 0, s.missingField(d)
		}
		return v, nil

	case KindWindSin, KindWindCos:
		degrees, ok := record.Value(d.Field)
		if !ok {
			return 0, s.missingField(d)
		}
		radians := degrees * math.Pi / 180
		if d.Kind == KindWindSin {
			return math.Sin(radians), nil
		}
		return math.Cos(radians), nil

	case KindRainCodeIndicator:
		code, ok := record.Value(d.Field)
		if !ok {
			return 0, s.missingField(d)
		}
		if code == 63 || code == 65 {
			return 1, nil
		}
		return 0, nil

	case KindSeasonSin, KindSeasonCos:
		// Cyclical month encoding: January maps to angle 0, so December and
		// January stay adjacent.
		month := float64(record.Date.Month())
		angle := 2 * math.Pi * (month - 1) / 12
		if d.Kind == KindSeasonSin {
			return math.Sin(angle), nil
		}
		return math.Cos(angle), nil

	default:
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeInternalFeatureMismatch,
			fmt.Sprintf("unknown derivation kind %q in feature spec %q", d.Kind, s.Name),
			nil,
			map[string]any{"feature": d.Name, "spec": s.Name},
		)
	}
}

func (s *Spec) missingField(d Derivation) error {
	return types.NewAppErrorWithDetails(
		types.ErrCodeInternalFeatureMismatch,
		fmt.Sprintf("feature %q requires weather field %q which is absent from the record", d.Name, d.Field),
		nil,
		map[string]any{"feature": d.Name, "field": string(d.Field), "spec": s.Name},
	)
}

// RainFeatures returns the 14-column layout for the rain classifier,
// in training column order.
func RainFeatures() *Spec {
	return &Spec{
		Name:    "rain_or_not",
		Version: "2024-10",
		Derivations: []Derivation{
			{Name: "temperature_2m_max", Kind: KindDirect, Field: types.FieldTemperatureMax},
			{Name: "temperature_2m_min", Kind: KindDirect, Field: types.FieldTemperatureMin},
			{Name: "apparent_temperature_max", Kind: KindDirect, Field: types.FieldApparentTempMax},
			{Name: "apparent_temperature_min", Kind: KindDirect, Field: types.FieldApparentTempMin},
			{Name: "daylight_duration", Kind: KindDirect, Field: types.FieldDaylightDuration},
			{Name: "shortwave_radiation_sum", Kind: KindDirect, Field: types.FieldShortwaveRadiationSum},
			{Name: "et0_fao_evapotranspiration", Kind: KindDirect, Field: types.FieldEvapotranspiration},
			{Name: "wind_speed_10m_max", Kind: KindDirect, Field: types.FieldWindSpeedMax},
			{Name: "wind_gusts_10m_max", Kind: KindDirect, Field: types.FieldWindGustsMax},
			{Name: "wind_direction_sin", Kind: KindWindSin, Field: types.FieldWindDirectionDominant},
			{Name: "wind_direction_cos", Kind: KindWindCos, Field: types.FieldWindDirectionDominant},
			{Name: "is_weather_code_63_or_65", Kind: KindRainCodeIndicator, Field: types.FieldWeatherCode},
			{Name: "season_sin", Kind: KindSeasonSin},
			{Name: "season_cos", Kind: KindSeasonCos},
		},
	}
}

// PrecipitationFeatures returns the 13-column layout for the precipitation
// regressor, in training column order.
func PrecipitationFeatures() *Spec {
	return &Spec{
		Name:    "precipitation_fall",
		Version: "2024-10",
		Derivations: []Derivation{
			{Name: "precipitation_sum", Kind: KindDirect, Field: types.FieldPrecipitationSum},
			{Name: "precipitation_hours", Kind: KindDirect, Field: types.FieldPrecipitationHours},
			{Name: "temperature_2m_max", Kind: KindDirect, Field: types.FieldTemperatureMax},
			{Name: "temperature_2m_min", Kind: KindDirect, Field: types.FieldTemperatureMin},
			{Name: "apparent_temperature_max", Kind: KindDirect, Field: types.FieldApparentTempMax},
			{Name: "apparent_temperature_min", Kind: KindDirect, Field: types.FieldApparentTempMin},
			{Name: "sunshine_duration", Kind: KindDirect, Field: types.FieldSunshineDuration},
			{Name: "daylight_duration", Kind: KindDirect, Field: types.FieldDaylightDuration},
			{Name: "wind_direction_sin", Kind: KindWindSin, Field: types.FieldWindDirectionDominant},
			{Name: "wind_direction_cos", Kind: KindWindCos, Field: types.FieldWindDirectionDominant},
			{Name: "is_weather_code_63_or_65", Kind: KindRainCodeIndicator, Field: types.FieldWeatherCode},
			{Name: "season_sin", Kind: KindSeasonSin},
			{Name: "season_cos", Kind: KindSeasonCos},
		},
	}
}
