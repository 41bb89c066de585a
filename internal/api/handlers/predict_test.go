package handlers_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raincast/internal/api/handlers"
	"raincast/internal/config"
	"raincast/internal/core"
	"raincast/internal/types"
)

type stubPredictor struct {
	rain      *types.RainPrediction
	precip    *types.PrecipitationPrediction
	rainErr   error
	precipErr error
}

func (s *stubPredictor) PredictRain(_ context.Context, _ types.Date) (*types.RainPrediction, error) {
	if s.rainErr != nil {
		return nil, s.rainErr
	}
	return s.rain, nil
}

func (s *stubPredictor) PredictPrecipitation(_ context.Context, _ types.Date) (*types.PrecipitationPrediction, error) {
	if s.precipErr != nil {
		return nil, s.precipErr
	}
	return s.precip, nil
}

func newTestServer(t *testing.T, predictor handlers.Predictor) *core.Server {
	t.Helper()

	cfg := &config.Config{
		Environment: "local",
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
		},
	}

	server, err := core.NewServer(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	predictHandler := handlers.NewPredictHandler(predictor, server.Logger)
	metaHandler := handlers.NewMetaHandler(cfg)
	server.RouteRegistrars = []func(chi.Router){
		predictHandler.RegisterRoutes,
		metaHandler.RegisterRoutes,
	}
	server.MountRoutes()
	return server
}

func doRequest(t *testing.T, server *core.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleRain_Success(t *testing.T) {
	predictor := &stubPredictor{
		rain: &types.RainPrediction{
			InputDate: types.NewDate(2024, time.September, 15),
			Prediction: types.RainOutlook{
				Date:     types.NewDate(2024, time.September, 22),
				WillRain: true,
			},
		},
	}
	server := newTestServer(t, predictor)

	rec := doRequest(t, server, "/predict/rain/?date=2024-09-15")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{
		"input_date": "2024-09-15",
		"prediction": {"date": "2024-09-22", "will_rain": true}
	}`, rec.Body.String())
}

func TestHandlePrecipitation_Success(t *testing.T) {
	predictor := &stubPredictor{
		precip: &types.PrecipitationPrediction{
			InputDate: types.NewDate(2024, time.September, 15),
			Prediction: types.PrecipitationWindow{
				StartDate:         types.NewDate(2024, time.September, 16),
				EndDate:           types.NewDate(2024, time.September, 18),
				PrecipitationFall: "5.2",
			},
		},
	}
	server := newTestServer(t, predictor)

	rec := doRequest(t, server, "/predict/precipitation/fall/?date=2024-09-15")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"input_date": "2024-09-15",
		"prediction": {
			"start_date": "2024-09-16",
			"end_date": "2024-09-18",
			"precipitation_fall": "5.2"
		}
	}`, rec.Body.String())
}

func TestHandleRain_MissingDate(t *testing.T) {
	server := newTestServer(t, &stubPredictor{})

	rec := doRequest(t, server, "/predict/rain/")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_missing_date", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestHandleRain_MalformedDate(t *testing.T) {
	server := newTestServer(t, &stubPredictor{})

	for _, raw := range []string{"15-09-2024", "2024/09/15", "yesterday", "2024-13-01"} {
		rec := doRequest(t, server, "/predict/rain/?date="+raw)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "input %q", raw)

		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "validation_invalid_date", body.Error.Code)
	}
}

func TestHandlers_ServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        *types.AppError
		wantStatus int
	}{
		{
			name:       "future date",
			err:        types.NewAppError(types.ErrCodeValidationFutureDate, "date must be in the past", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no data",
			err:        types.NewAppError(types.ErrCodeNotFoundWeatherData, "no weather data", nil),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "rate limited",
			err:        types.NewAppError(types.ErrCodeUpstreamRateLimited, "rate limited", nil),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "archive down",
			err:        types.NewAppError(types.ErrCodeUpstreamWeather, "archive unavailable", nil),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "artifacts broken",
			err:        types.NewAppError(types.ErrCodeInternalModelLoad, "artifacts missing", nil),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(t, &stubPredictor{rainErr: tc.err, precipErr: tc.err})

			for _, path := range []string{
				"/predict/rain/?date=2024-09-15",
				"/predict/precipitation/fall/?date=2024-09-15",
			} {
				rec := doRequest(t, server, path)
				assert.Equal(t, tc.wantStatus, rec.Code, "path %s", path)

				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, string(tc.err.Code), body.Error.Code)
			}
		})
	}
}

func TestHandleRoot(t *testing.T) {
	server := newTestServer(t, &stubPredictor{})

	rec := doRequest(t, server, "/")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Project   string `json:"project"`
		Location  string `json:"location"`
		Endpoints []struct {
			Path string `json:"path"`
		} `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Weather Prediction API", body.Project)
	assert.Contains(t, body.Location, "Sydney")

	paths := make([]string, 0, len(body.Endpoints))
	for _, e := range body.Endpoints {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "/predict/rain/")
	assert.Contains(t, paths, "/predict/precipitation/fall/")
	assert.Contains(t, paths, "/health/")
}

func TestRouting_UnknownPath(t *testing.T) {
	server := newTestServer(t, &stubPredictor{})

	rec := doRequest(t, server, "/predict/rain")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
