package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincast/internal/config"
	"raincast/internal/types"
)

// fixedNow is "now" for every test: mid-afternoon Sydney time on 2024-09-20.
var fixedNow = time.Date(2024, 9, 20, 15, 0, 0, 0, time.UTC)

func testWeatherConfig(baseURL string) config.WeatherConfig {
	return config.WeatherConfig{
		BaseURL:        baseURL,
		Latitude:       -33.8678,
		Longitude:      151.2073,
		Timezone:       "Australia/Sydney",
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
		UserAgent:      "raincast-test/1.0",
	}
}

func newTestFetcher(t *testing.T, baseURL string, opts ...FetcherOption) *Fetcher {
	t.Helper()

	cfg := testWeatherConfig(baseURL)
	noSleep := WithSleepFunc(func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	})
	client := NewClient(
		&http.Client{Timeout: cfg.RequestTimeout},
		fmt.Sprintf("test-%s", t.Name()),
		RetryPolicy{MaxRetries: cfg.MaxRetries, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond},
		cfg.UserAgent,
		noSleep,
	)

	allOpts := append([]FetcherOption{
		WithClient(client),
		WithNowFunc(func() time.Time { return fixedNow }),
	}, opts...)

	fetcher, err := NewFetcher(cfg, slog.New(slog.DiscardHandler), allOpts...)
	require.NoError(t, err)
	return fetcher
}

// archiveBody builds a valid single-day archive response with every daily
// variable present. Overrides replace individual variable arrays.
func archiveBody(date string, overrides map[string]any) []byte {
	daily := map[string]any{
		"time": []string{date},
	}
	for i, field := range types.DailyFields {
		daily[string(field)] = []any{float64(i) + 0.5}
	}
	for k, v := range overrides {
		daily[k] = v
	}

	body, _ := json.Marshal(map[string]any{"daily": daily})
	return body
}

func TestFetch_Success(t *testing.T) {
	var capturedQuery atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		w.Write(archiveBody("2024-09-15", map[string]any{
			"temperature_2m_max": []any{25.0},
			"precipitation_sum":  []any{5.2},
		}))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	date := types.NewDate(2024, time.September, 15)
	record, err := fetcher.Fetch(context.Background(), date)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "2024-09-15", record.Date.String())

	tempMax, ok := record.Value(types.FieldTemperatureMax)
	require.True(t, ok)
	assert.Equal(t, 25.0, tempMax)

	precipSum, ok := record.Value(types.FieldPrecipitationSum)
	require.True(t, ok)
	assert.Equal(t, 5.2, precipSum)

	// Every requested variable must be populated.
	for _, field := range types.DailyFields {
		_, present := record.Value(field)
		assert.True(t, present, "field %s should be present", field)
	}

	query := capturedQuery.Load().(url.Values)
	assert.Equal(t, "-33.8678", query.Get("latitude"))
	assert.Equal(t, "151.2073", query.Get("longitude"))
	assert.Equal(t, "2024-09-15", query.Get("start_date"))
	assert.Equal(t, "2024-09-15", query.Get("end_date"))
	assert.Equal(t, "Australia/Sydney", query.Get("timezone"))
	assert.Len(t, strings.Split(query.Get("daily"), ","), len(types.DailyFields))
}

func TestFetch_FutureDateRejectedWithoutNetworkCall(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(archiveBody("2024-09-25", nil))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	for _, date := range []types.Date{
		types.NewDate(2024, time.September, 20), // today in Sydney
		types.NewDate(2024, time.September, 25),
		types.NewDate(2030, time.January, 1),
	} {
		_, err := fetcher.Fetch(context.Background(), date)
		require.Error(t, err, "date %s should be rejected", date)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationFutureDate, appErr.Code)
		assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus())
	}

	assert.Equal(t, int64(0), hits.Load(), "future dates must not reach the archive")
}

func TestFetch_TodayInSydneyRejectedEvenWhenUTCIsYesterday(t *testing.T) {
	// 2024-09-20 15:00 UTC is already 2024-09-21 in Sydney (UTC+10), so
	// 2024-09-20 itself must be accepted but 2024-09-21 rejected.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archiveBody("2024-09-20", nil))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 20))
	assert.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 21))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationFutureDate, appErr.Code)
}

func TestFetch_MissingVariableFailsClosed(t *testing.T) {
	body := archiveBody("2024-09-15", nil)
	var payload map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &payload))
	delete(payload["daily"], "wind_gusts_10m_max")
	trimmed, err := json.Marshal(payload)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(trimmed)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err = fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 15))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundWeatherData, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus())
}

func TestFetch_NullVariableFailsClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archiveBody("2024-09-15", map[string]any{
			"sunshine_duration": []any{nil},
		}))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 15))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundWeatherData, appErr.Code)
}

func TestFetch_EmptyDailyBlockFailsClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"latitude":-33.8678,"longitude":151.2073}`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 15))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundWeatherData, appErr.Code)
}

func TestFetch_ArchiveBadRequestMapsToNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":true,"reason":"Parameter 'start_date' is out of allowed range"}`))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), types.NewDate(1900, time.January, 1))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundWeatherData, appErr.Code)
}

func TestFetch_RateLimitedMapsTo429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 15))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, appErr.HTTPStatus())
}

func TestFetch_ServerErrorRetriesThenMapsTo502(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 15))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())

	// Initial attempt plus MaxRetries.
	assert.Equal(t, int64(3), hits.Load())
}

func TestFetch_TransientServerErrorRecovers(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(archiveBody("2024-09-15", nil))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	record, err := fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 15))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(2), hits.Load())
}

func TestFetch_SetsUserAgent(t *testing.T) {
	var gotAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent.Store(r.Header.Get("User-Agent"))
		w.Write(archiveBody("2024-09-15", nil))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), types.NewDate(2024, time.September, 15))
	require.NoError(t, err)
	assert.Equal(t, "raincast-test/1.0", gotAgent.Load())
}

func TestFetch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, types.NewDate(2024, time.September, 15))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
}

func TestNewFetcher_InvalidTimezone(t *testing.T) {
	cfg := testWeatherConfig("https://example.invalid")
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err := NewFetcher(cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestComputeBackoff_RetryAfterSeconds(t *testing.T) {
	client := NewClient(nil, "backoff-test", RetryPolicy{
		MaxRetries: 2,
		MinWait:    100 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}, "")

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3"}}}
	assert.Equal(t, 3*time.Second, client.computeBackoff(0, resp))

	// Retry-After beyond MaxWait is clamped.
	resp.Header.Set("Retry-After", "300")
	assert.Equal(t, 5*time.Second, client.computeBackoff(0, resp))
}

func TestComputeBackoff_ExponentialWithinBounds(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, MinWait: 100 * time.Millisecond, MaxWait: 1 * time.Second}
	client := NewClient(nil, "backoff-bounds-test", policy, "")

	for attempt := 0; attempt < 5; attempt++ {
		wait := client.computeBackoff(attempt, nil)
		assert.GreaterOrEqual(t, wait, policy.MinWait)
		assert.LessOrEqual(t, wait, policy.MaxWait)
	}
}
