package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"raincast/internal/config"
	"raincast/internal/types"
)

// Fetcher retrieves one day of historical observations for the fixed service
// location from the archive API. It owns date validation: the request date
// must fall strictly before "today" in the configured timezone, because the
// archive holds only past observations.
type Fetcher struct {
	client    *Client
	baseURL   string
	latitude  float64
	longitude float64
	timezone  string
	location  *time.Location
	logger    *slog.Logger
	now       func() time.Time // injectable for tests
}

// FetcherOption is a functional option for configuring a Fetcher.
type FetcherOption func(*Fetcher)

// WithNowFunc overrides the clock used for future-date validation.
// Intended for testing.
func WithNowFunc(fn func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.now = fn
	}
}

// WithClient overrides the resilient HTTP client. Intended for testing.
func WithClient(c *Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a Fetcher from the weather configuration. It fails if
// the configured timezone cannot be resolved.
func NewFetcher(cfg config.WeatherConfig, logger *slog.Logger, opts ...FetcherOption) (*Fetcher, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	retryPolicy := DefaultRetryPolicy()
	retryPolicy.MaxRetries = cfg.MaxRetries

	f := &Fetcher{
		client: NewClient(
			&http.Client{Timeout: cfg.RequestTimeout},
			"weather-archive",
			retryPolicy,
			cfg.UserAgent,
		),
		baseURL:   cfg.BaseURL,
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		timezone:  cfg.Timezone,
		location:  loc,
		logger:    logger,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Location returns the timezone used for calendar-day validation.
func (f *Fetcher) Location() *time.Location {
	return f.location
}

// Fetch retrieves the daily weather record for the given date. The date must
// be strictly before today in the configured timezone; today and future dates
// are rejected without any network call.
//
// A response with missing or null values for any requested variable is
// treated as data-unavailable and fails the whole fetch. Predictions must
// never run on partial inputs.
func (f *Fetcher) Fetch(ctx context.Context, date types.Date) (*types.WeatherRecord, error) {
	if err := f.validateDate(date); err != nil {
		return nil, err
	}

	reqURL, err := f.buildURL(date)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build archive request URL",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create archive request",
			err,
		)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("archive fetch failed",
			slog.String("date", date.String()),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to read archive response body",
			err,
		)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, f.mapAPIError(resp.StatusCode, body, date)
	}

	record, err := parseDailyRecord(body, date)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("archive fetch succeeded",
		slog.String("date", date.String()),
		slog.Duration("duration", time.Since(start)),
	)

	return record, nil
}

// validateDate rejects today and future dates. "Today" is the current
// calendar day in the configured timezone, so a date that is already
// yesterday in UTC may still be today in Sydney and must be rejected.
func (f *Fetcher) validateDate(date types.Date) error {
	today := types.DateOf(f.now().In(f.location))
	if !date.Before(today) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationFutureDate,
			fmt.Sprintf("date must be in the past: historical weather is only available before %s", today),
			nil,
			map[string]any{
				"date":     date.String(),
				"timezone": f.timezone,
			},
		)
	}
	return nil
}

// buildURL constructs the archive request for a single-day window with the
// full set of daily variables.
func (f *Fetcher) buildURL(date types.Date) (string, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", err
	}

	daily := make([]string, len(types.DailyFields))
	for i, field := range types.DailyFields {
		daily[i] = string(field)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(f.latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(f.longitude, 'f', -1, 64))
	q.Set("start_date", date.String())
	q.Set("end_date", date.String())
	q.Set("daily", strings.Join(daily, ","))
	q.Set("timezone", f.timezone)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// mapAPIError translates non-200 archive responses. The archive returns 400
// with a reason string for out-of-range or malformed date windows, which from
// the service's perspective means no data exists for that date.
func (f *Fetcher) mapAPIError(status int, body []byte, date types.Date) error {
	var payload struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusBadRequest {
		return types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundWeatherData,
			fmt.Sprintf("no weather data available for %s", date),
			fmt.Errorf("archive rejected request: %s", payload.Reason),
			map[string]any{"date": date.String()},
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamWeather,
		fmt.Sprintf("weather archive returned unexpected status %d", status),
		fmt.Errorf("archive error: %s", payload.Reason),
	)
}

// parseDailyRecord decodes the archive's parallel-array daily block into a
// WeatherRecord. Every requested variable must be present with a non-null
// first element, otherwise the record is rejected as unavailable.
func parseDailyRecord(body []byte, date types.Date) (*types.WeatherRecord, error) {
	var payload struct {
		Daily map[string]json.RawMessage `json:"daily"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			"failed to decode archive response",
			err,
		)
	}

	if payload.Daily == nil {
		return nil, dataUnavailable(date, "response contained no daily block")
	}

	record := &types.WeatherRecord{Date: date}
	for _, field := range types.DailyFields {
		raw, ok := payload.Daily[string(field)]
		if !ok {
			return nil, dataUnavailable(date, fmt.Sprintf("variable %q missing from response", field))
		}

		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamWeather,
				fmt.Sprintf("failed to decode archive variable %q", field),
				err,
			)
		}
		if len(values) == 0 || values[0] == nil {
			return nil, dataUnavailable(date, fmt.Sprintf("variable %q has no value for the requested day", field))
		}

		record.SetValue(field, *values[0])
	}

	return record, nil
}

// dataUnavailable builds the standard error for absent or partial archive
// data. Partial data fails closed: a record missing any variable is useless
// for feature extraction.
func dataUnavailable(date types.Date, reason string) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeNotFoundWeatherData,
		fmt.Sprintf("no weather data available for %s", date),
		fmt.Errorf("%s", reason),
		map[string]any{"date": date.String()},
	)
}
