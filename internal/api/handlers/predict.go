// Package handlers implements the HTTP endpoints. Handlers stay thin: they
// parse and validate request input, call the prediction service, and
// translate results or AppErrors into JSON responses.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"raincast/internal/core"
	"raincast/internal/types"
)

// Predictor is the service surface the prediction endpoints depend on.
type Predictor interface {
	PredictRain(ctx context.Context, date types.Date) (*types.RainPrediction, error)
	PredictPrecipitation(ctx context.Context, date types.Date) (*types.PrecipitationPrediction, error)
}

// PredictHandler serves the two prediction endpoints.
type PredictHandler struct {
	predictor Predictor
	logger    *slog.Logger
}

// NewPredictHandler creates a PredictHandler.
func NewPredictHandler(predictor Predictor, logger *slog.Logger) *PredictHandler {
	return &PredictHandler{predictor: predictor, logger: logger}
}

// RegisterRoutes mounts the prediction endpoints. Paths keep their trailing
// slash; that is part of the public contract.
func (h *PredictHandler) RegisterRoutes(r chi.Router) {
	r.Get("/predict/rain/", h.HandleRain)
	r.Get("/predict/precipitation/fall/", h.HandlePrecipitation)
}

// HandleRain handles GET /predict/rain/?date=YYYY-MM-DD. It answers whether
// rain is expected on the day one week after the given date.
func (h *PredictHandler) HandleRain(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.predictor.PredictRain(r.Context(), date)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, result)
}

// HandlePrecipitation handles GET /predict/precipitation/fall/?date=YYYY-MM-DD.
// It estimates cumulative rainfall over the three days after the given date.
func (h *PredictHandler) HandlePrecipitation(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.predictor.PredictPrecipitation(r.Context(), date)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, result)
}

// dateParam extracts and parses the required date query parameter.
func dateParam(r *http.Request) (types.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return types.Date{}, types.NewAppError(
			types.ErrCodeValidationMissingDate,
			"missing required query parameter 'date' (format: YYYY-MM-DD)",
			nil,
		)
	}
	return types.ParseDate(raw)
}
