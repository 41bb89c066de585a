// Package types defines the shared domain model for the raincast service:
// calendar dates, daily weather records, prediction response contracts, and
// the application error taxonomy.
package types

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format for calendar dates throughout the API.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component. It marshals to and
// from JSON as "YYYY-MM-DD". The zero value is the zero time.
type Date struct {
	time.Time
}

// NewDate constructs a Date for the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its calendar day in the time's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string. A malformed string yields an
// AppError with code validation_invalid_date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, NewAppError(
			ErrCodeValidationInvalidDate,
			"invalid date format: '"+s+"', use YYYY-MM-DD (example: 2024-09-15)",
			err,
		)
	}
	return Date{t}, nil
}

// AddDays returns the date n calendar days later. This is calendar
// arithmetic, not wall-clock arithmetic, so it is DST-safe.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as a "YYYY-MM-DD" JSON string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" JSON string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Field identifies a daily weather variable. Values match the upstream
// archive API variable names, which are also the column names the models
// were trained against.
type Field string

const (
	FieldWeatherCode           Field = "weather_code"
	FieldTemperatureMax        Field = "temperature_2m_max"
	FieldTemperatureMin        Field = "temperature_2m_min"
	FieldApparentTempMax       Field = "apparent_temperature_max"
	FieldApparentTempMin       Field = "apparent_temperature_min"
	FieldPrecipitationSum      Field = "precipitation_sum"
	FieldPrecipitationHours    Field = "precipitation_hours"
	FieldWindSpeedMax          Field = "wind_speed_10m_max"
	FieldWindGustsMax          Field = "wind_gusts_10m_max"
	FieldWindDirectionDominant Field = "wind_direction_10m_dominant"
	FieldShortwaveRadiationSum Field = "shortwave_radiation_sum"
	FieldEvapotranspiration    Field = "et0_fao_evapotranspiration"
	FieldDaylightDuration      Field = "daylight_duration"
	FieldSunshineDuration      Field = "sunshine_duration"
)

// DailyFields is the fixed set of daily variables requested from the archive,
// in request order. It is the superset of every feature spec's inputs.
var DailyFields = []Field{
	FieldWeatherCode,
	FieldTemperatureMax,
	FieldTemperatureMin,
	FieldApparentTempMax,
	FieldApparentTempMin,
	FieldPrecipitationSum,
	FieldPrecipitationHours,
	FieldWindSpeedMax,
	FieldWindGustsMax,
	FieldWindDirectionDominant,
	FieldShortwaveRadiationSum,
	FieldEvapotranspiration,
	FieldDaylightDuration,
	FieldSunshineDuration,
}

// WeatherRecord holds one day's observed weather at the fixed location.
// Variables are pointers so that absence is distinguishable from zero; a nil
// field means the upstream archive had no value. Records are constructed
// fresh per request and discarded after feature extraction.
type WeatherRecord struct {
	Date Date

	WeatherCode           *float64
	TemperatureMax        *float64
	TemperatureMin        *float64
	ApparentTempMax       *float64
	ApparentTempMin       *float64
	PrecipitationSum      *float64
	PrecipitationHours    *float64
	WindSpeedMax          *float64
	WindGustsMax          *float64
	WindDirectionDominant *float64
	ShortwaveRadiationSum *float64
	Evapotranspiration    *float64
	DaylightDuration      *float64
	SunshineDuration      *float64
}

// Value returns the value of the named field and whether it is present.
func (r *WeatherRecord) Value(f Field) (float64, bool) {
	var p *float64
	switch f {
	case FieldWeatherCode:
		p = r.WeatherCode
	case FieldTemperatureMax:
		p = r.TemperatureMax
	case FieldTemperatureMin:
		p = r.TemperatureMin
	case FieldApparentTempMax:
		p = r.ApparentTempMax
	case FieldApparentTempMin:
		p = r.ApparentTempMin
	case FieldPrecipitationSum:
		p = r.PrecipitationSum
	case FieldPrecipitationHours:
		p = r.PrecipitationHours
	case FieldWindSpeedMax:
		p = r.WindSpeedMax
	case FieldWindGustsMax:
		p = r.WindGustsMax
	case FieldWindDirectionDominant:
		p = r.WindDirectionDominant
	case FieldShortwaveRadiationSum:
		p = r.ShortwaveRadiationSum
	case FieldEvapotranspiration:
		p = r.Evapotranspiration
	case FieldDaylightDuration:
		p = r.DaylightDuration
	case FieldSunshineDuration:
		p = r.SunshineDuration
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetValue assigns the named field. Unknown fields are ignored.
func (r *WeatherRecord) SetValue(f Field, v float64) {
	switch f {
	case FieldWeatherCode:
		r.WeatherCode = &v
	case FieldTemperatureMax:
		r.TemperatureMax = &v
	case FieldTemperatureMin:
		r.TemperatureMin = &v
	case FieldApparentTempMax:
		r.ApparentTempMax = &v
	case FieldApparentTempMin:
		r.ApparentTempMin = &v
	case FieldPrecipitationSum:
		r.PrecipitationSum = &v
	case FieldPrecipitationHours:
		r.PrecipitationHours = &v
	case FieldWindSpeedMax:
		r.WindSpeedMax = &v
	case FieldWindGustsMax:
		r.WindGustsMax = &v
	case FieldWindDirectionDominant:
		r.WindDirectionDominant = &v
	case FieldShortwaveRadiationSum:
		r.ShortwaveRadiationSum = &v
	case FieldEvapotranspiration:
		r.Evapotranspiration = &v
	case FieldDaylightDuration:
		r.DaylightDuration = &v
	case FieldSunshineDuration:
		r.SunshineDuration = &v
	}
}

// RainPrediction is the response body for the rain endpoint.
type RainPrediction struct {
	InputDate  Date        `json:"input_date"`
	Prediction RainOutlook `json:"prediction"`
}

// RainOutlook is the prediction payload for a single target day.
type RainOutlook struct {
	Date     Date `json:"date"`
	WillRain bool `json:"will_rain"`
}

// PrecipitationPrediction is the response body for the precipitation endpoint.
type PrecipitationPrediction struct {
	InputDate  Date                `json:"input_date"`
	Prediction PrecipitationWindow `json:"prediction"`
}

// PrecipitationWindow is the prediction payload for a multi-day window.
// PrecipitationFall is a decimal string with one fractional digit, per the
// API contract.
type PrecipitationWindow struct {
	StartDate         Date   `json:"start_date"`
	EndDate           Date   `json:"end_date"`
	PrecipitationFall string `json:"precipitation_fall"`
}
